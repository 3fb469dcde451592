package search

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"davietech/config"
	"davietech/model"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goccy/go-json"
)

// Document is the indexed form of a product. Prices are numbers so range
// queries work.
type Document struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	OfferID       *uint    `json:"offer_id,omitempty"`
	Stock         int      `json:"stock"`
}

func NewDocument(p model.Product) Document {
	d := Document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		OfferID:     p.OfferID,
		Stock:       p.Stock,
	}
	if p.OriginalPrice.Valid {
		op := p.OriginalPrice.Decimal.InexactFloat64()
		d.OriginalPrice = &op
	}
	return d
}

type Client struct {
	es     *elasticsearch.Client
	index  string
	logger *slog.Logger
}

func Connect(cfg config.ElasticsearchConfig, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return New(es, cfg.Index, logger), nil
}

func New(es *elasticsearch.Client, index string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{es: es, index: index, logger: logger}
}

func (c *Client) IndexProduct(ctx context.Context, p model.Product) error {
	doc, err := json.Marshal(NewDocument(p))
	if err != nil {
		return err
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(doc),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index product %d: %s", p.ID, res.String())
	}
	c.logger.Debug("indexed product", "product_id", p.ID)
	return nil
}

// Search runs a full-text query over product names and descriptions.
func (c *Client) Search(ctx context.Context, q string) ([]Document, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"name^2", "description"},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search products: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]Document, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}
