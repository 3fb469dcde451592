package offer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"davietech/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidDiscount = errors.New("discount percent must be between 0 and 100")

var hundred = decimal.NewFromInt(100)

// Discount returns price reduced by percent, rounded half-up to cents.
func Discount(price, percent decimal.Decimal) decimal.Decimal {
	return price.Mul(hundred.Sub(percent)).Div(hundred).Round(2)
}

func validPercent(p decimal.Decimal) bool {
	return p.GreaterThan(decimal.Zero) && p.LessThan(hundred)
}

// Indexer keeps the search index in step with catalogue prices.
type Indexer interface {
	IndexProduct(ctx context.Context, p model.Product) error
}

type Broadcaster interface {
	Broadcast(ev model.ChangeEvent) int
}

type Service struct {
	db      *gorm.DB
	indexer Indexer
	hub     Broadcaster
	logger  *slog.Logger
}

// NewService builds the offer service. indexer may be nil.
func NewService(db *gorm.DB, indexer Indexer, hub Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, indexer: indexer, hub: hub, logger: logger}
}

// Apply discounts every product linked to the offer and activates it.
// Re-applying an active offer prices from the remembered original, so
// discounts never compound.
func (s *Service) Apply(ctx context.Context, offerID uint) ([]model.Product, error) {
	var updated []model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		offer, err := lockOffer(tx, offerID)
		if err != nil {
			return err
		}
		if !validPercent(offer.DiscountPercent) {
			return fmt.Errorf("%w: %s", ErrInvalidDiscount, offer.DiscountPercent)
		}

		products, err := linkedProducts(tx, offerID)
		if err != nil {
			return err
		}
		for _, p := range products {
			original := p.Price
			if p.OriginalPrice.Valid {
				original = p.OriginalPrice.Decimal
			}
			p.OriginalPrice = decimal.NewNullDecimal(original)
			p.Price = Discount(original, offer.DiscountPercent)

			err := tx.Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
				"price":          p.Price,
				"original_price": p.OriginalPrice,
			}).Error
			if err != nil {
				return fmt.Errorf("discount product %d: %w", p.ID, err)
			}
			updated = append(updated, p)
		}

		return tx.Model(&model.Offer{}).Where("id = ?", offerID).Update("active", true).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("offer applied", "offer_id", offerID, "products", len(updated))
	s.afterCommit(ctx, offerID, updated)
	return updated, nil
}

// Remove restores the remembered prices and deactivates the offer.
func (s *Service) Remove(ctx context.Context, offerID uint) ([]model.Product, error) {
	var updated []model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockOffer(tx, offerID); err != nil {
			return err
		}

		products, err := linkedProducts(tx, offerID)
		if err != nil {
			return err
		}
		for _, p := range products {
			if !p.OriginalPrice.Valid {
				continue
			}
			p.Price = p.OriginalPrice.Decimal
			p.OriginalPrice = decimal.NullDecimal{}

			err := tx.Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
				"price":          p.Price,
				"original_price": gorm.Expr("NULL"),
			}).Error
			if err != nil {
				return fmt.Errorf("restore product %d: %w", p.ID, err)
			}
			updated = append(updated, p)
		}

		return tx.Model(&model.Offer{}).Where("id = ?", offerID).Update("active", false).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("offer removed", "offer_id", offerID, "products", len(updated))
	s.afterCommit(ctx, offerID, updated)
	return updated, nil
}

func lockOffer(tx *gorm.DB, id uint) (*model.Offer, error) {
	var o model.Offer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func linkedProducts(tx *gorm.DB, offerID uint) ([]model.Product, error) {
	var products []model.Product
	if err := tx.Where("offer_id = ?", offerID).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) afterCommit(ctx context.Context, offerID uint, products []model.Product) {
	if s.indexer != nil {
		for _, p := range products {
			if err := s.indexer.IndexProduct(ctx, p); err != nil {
				s.logger.Warn("failed to reindex product", "product_id", p.ID, "error", err)
			}
		}
	}
	s.hub.Broadcast(model.ChangeEvent{Type: model.EventProducts})
	s.hub.Broadcast(model.ChangeEvent{Type: model.EventOffers, ID: strconv.FormatUint(uint64(offerID), 10)})
}
