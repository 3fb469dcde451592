package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"davietech/model"
	"davietech/mpesa"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidOrder = errors.New("invalid order")

type Cache interface {
	Orders(ctx context.Context) ([]model.Order, bool)
	SetOrders(ctx context.Context, orders []model.Order) error
	InvalidateOrders(ctx context.Context) error
}

type Broadcaster interface {
	Broadcast(ev model.ChangeEvent) int
}

type CheckoutItem struct {
	ProductID uint `json:"product_id"`
	Qty       int  `json:"qty"`
}

type CheckoutRequest struct {
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Notes         string              `json:"notes"`
	Items         []CheckoutItem      `json:"items"`
}

type Service struct {
	db     *gorm.DB
	cache  Cache
	hub    Broadcaster
	logger *slog.Logger
}

// NewService builds the order service. cache may be nil.
func NewService(db *gorm.DB, cache Cache, hub Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, cache: cache, hub: hub, logger: logger}
}

// Checkout prices the cart from current product prices and creates a
// pending order with its items in one transaction.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*model.Order, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidOrder)
	}
	phone, err := mpesa.NormalizePhone(req.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	method := req.PaymentMethod
	if method == "" {
		method = model.MethodMpesa
	}
	if method != model.MethodMpesa && method != model.MethodCashOnDelivery {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidOrder, method)
	}
	if len(req.Items) == 0 {
		return nil, model.ErrEmptyOrder
	}

	qty := make(map[uint]int, len(req.Items))
	ids := make([]uint, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
		}
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Qty
	}

	order := &model.Order{
		CustomerName:  name,
		CustomerPhone: phone,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: method,
		Notes:         strings.TrimSpace(req.Notes),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []model.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uint]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(ids))
		for _, id := range ids {
			p, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: %d", model.ErrProductNotFound, id)
			}
			items = append(items, model.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Qty:       qty[id],
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(qty[id]))))
		}
		order.Total = total

		if err := tx.Omit("Items").Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created", "order_id", order.ID, "total", order.Total.StringFixed(2), "method", method)
	s.changed(ctx, order.ID)
	return order, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]model.Order, error) {
	if s.cache != nil {
		if orders, ok := s.cache.Orders(ctx); ok {
			return orders, nil
		}
	}

	orders := []model.Order{}
	err := s.db.WithContext(ctx).Preload("Items").Order("created_at DESC").Order("id DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetOrders(ctx, orders); err != nil {
			s.logger.Warn("failed to cache orders", "error", err)
		}
	}
	return orders, nil
}

// UpdateStatus moves an order through fulfilment.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	res := s.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrOrderNotFound
	}

	s.logger.Info("order status updated", "order_id", id, "status", status)
	s.changed(ctx, id)
	return s.Get(ctx, id)
}

func (s *Service) changed(ctx context.Context, id uint) {
	if s.cache != nil {
		if err := s.cache.InvalidateOrders(ctx); err != nil {
			s.logger.Warn("failed to invalidate order cache", "error", err)
		}
	}
	s.hub.Broadcast(model.ChangeEvent{Type: model.EventOrders, ID: strconv.FormatUint(uint64(id), 10)})
}
