package kafka

import (
	"log/slog"
	"strconv"

	"davietech/model"

	"github.com/goccy/go-json"
)

// OrderUpdatedEvent is published by fulfilment when it moves an order along.
type OrderUpdatedEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		OrderID uint   `json:"order_id"`
		Status  string `json:"status"`
	} `json:"data"`
}

type Broadcaster interface {
	Broadcast(ev model.ChangeEvent) int
}

// OrderUpdatedHandler tells live clients to refetch orders when another
// service changes one.
func OrderUpdatedHandler(hub Broadcaster, logger *slog.Logger) func([]byte) {
	return func(msg []byte) {
		var event OrderUpdatedEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			logger.Warn("invalid order.updated payload", "error", err)
			return
		}
		if event.Data.OrderID == 0 {
			logger.Warn("order.updated without order id", "payload", string(msg))
			return
		}

		n := hub.Broadcast(model.ChangeEvent{Type: model.EventOrders, ID: strconv.FormatUint(uint64(event.Data.OrderID), 10)})
		logger.Debug("order.updated fanned out", "order_id", event.Data.OrderID, "clients", n)
	}
}
