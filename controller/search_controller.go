package controller

import (
	"context"
	"log/slog"
	"time"

	"davietech/search"

	"github.com/gofiber/fiber/v2"
)

type ProductSearcher interface {
	Search(ctx context.Context, q string) ([]search.Document, error)
}

type SearchController struct {
	Searcher ProductSearcher
	Logger   *slog.Logger
}

func NewSearchController(searcher ProductSearcher, logger *slog.Logger) *SearchController {
	return &SearchController{Searcher: searcher, Logger: logger}
}

func (sc *SearchController) Search(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return c.Status(400).JSON(fiber.Map{"error": "query parameter 'q' is required"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	docs, err := sc.Searcher.Search(ctx, q)
	if err != nil {
		sc.Logger.Error("search failed", "query", q, "error", err)
		return c.Status(500).JSON(fiber.Map{"error": "search failed"})
	}
	return c.JSON(docs)
}
