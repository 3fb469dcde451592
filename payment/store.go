package payment

import (
	"context"
	"errors"
	"time"

	"davietech/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settlement is the outcome of one provider result applied to an order and,
// when correlated exactly, to its pending payment.
type Settlement struct {
	OrderID    uint
	PendingID  uint // zero when matched by amount and phone
	Notes      string
	Receipt    string
	ResultCode int
	ResultDesc string
	Payload    []byte
	At         time.Time
}

type Store interface {
	GetOrder(ctx context.Context, id uint) (*model.Order, error)
	CreatePendingPayment(ctx context.Context, p *model.PendingPayment) error
	PendingByCheckoutID(ctx context.Context, checkoutRequestID string) (*model.PendingPayment, error)
	MatchPendingOrder(ctx context.Context, amount decimal.Decimal, phone string) (*model.Order, error)
	MarkPaid(ctx context.Context, s Settlement) error
	MarkFailed(ctx context.Context, s Settlement) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetOrder(ctx context.Context, id uint) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *GormStore) CreatePendingPayment(ctx context.Context, p *model.PendingPayment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) PendingByCheckoutID(ctx context.Context, checkoutRequestID string) (*model.PendingPayment, error) {
	if checkoutRequestID == "" {
		return nil, model.ErrPaymentNotFound
	}
	var p model.PendingPayment
	err := s.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MatchPendingOrder finds the newest pending mobile-money order for phone whose
// total, rounded up to whole shillings as the STK push charges it, equals
// amount. Ties on created_at go to the higher id.
func (s *GormStore) MatchPendingOrder(ctx context.Context, amount decimal.Decimal, phone string) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).
		Where("payment_status = ? AND payment_method = ? AND CEIL(total) = ? AND customer_phone = ?",
			model.PaymentPending, model.MethodMpesa, amount, phone).
		Order("created_at DESC").
		Order("id DESC").
		Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *GormStore) MarkPaid(ctx context.Context, st Settlement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).Where("id = ?", st.OrderID).Updates(map[string]interface{}{
			"payment_status": model.PaymentPaid,
			"status":         model.OrderProcessing,
			"notes":          st.Notes,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrOrderNotFound
		}

		if st.PendingID == 0 {
			return nil
		}
		return tx.Model(&model.PendingPayment{}).Where("id = ?", st.PendingID).Updates(map[string]interface{}{
			"status":           model.PaymentPaid,
			"receipt_number":   st.Receipt,
			"result_code":      st.ResultCode,
			"result_desc":      st.ResultDesc,
			"callback_payload": datatypes.JSON(st.Payload),
			"paid_at":          st.At,
		}).Error
	})
}

// MarkFailed records a failed result. A paid order is never downgraded.
func (s *GormStore) MarkFailed(ctx context.Context, st Settlement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.PendingPayment{}).Where("id = ?", st.PendingID).Updates(map[string]interface{}{
			"status":           model.PaymentFailed,
			"result_code":      st.ResultCode,
			"result_desc":      st.ResultDesc,
			"callback_payload": datatypes.JSON(st.Payload),
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&model.Order{}).
			Where("id = ? AND payment_status = ?", st.OrderID, model.PaymentPending).
			Update("payment_status", model.PaymentFailed).Error
	})
}
