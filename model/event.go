package model

// Change event types pushed to live clients.
const (
	EventConnected = "connected"
	EventOrders    = "orders"
	EventPayments  = "payments"
	EventProducts  = "products"
	EventOffers    = "offers"
)

// ChangeEvent is an ephemeral notification telling clients to refetch.
type ChangeEvent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}
