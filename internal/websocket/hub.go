// Package websocket fans out live sales alerts to connected admin dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"storefront/internal/checkout"
)

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

type SalesAlert struct {
	OrderID     string          `json:"order_id"`
	BundleID    string          `json:"bundle_id"`
	BundleTitle string          `json:"bundle_title"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Email       string          `json:"email"`
}

type Hub struct {
	Clients        map[*Client]bool
	Register       chan *Client
	Unregister     chan *Client
	BroadcastAlert chan SalesAlert
	done           chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:        make(map[*Client]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		BroadcastAlert: make(chan SalesAlert, 64),
		done:           make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.Clients {
				delete(h.Clients, client)
				close(client.Send)
			}
			return

		case client := <-h.Register:
			h.Clients[client] = true
			slog.Info("admin live feed connected", "user_id", client.UserID, "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				slog.Info("admin live feed disconnected", "user_id", client.UserID)
			}

		case alert := <-h.BroadcastAlert:
			jsonData, err := json.Marshal(alert)
			if err != nil {
				slog.Error("failed to marshal sales alert", "order_id", alert.OrderID, "error", err)
				continue
			}
			for client := range h.Clients {
				select {
				case client.Send <- jsonData:
				default:
					// Slow consumer.
					close(client.Send)
					delete(h.Clients, client)
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// OrderPaid implements checkout.Listener. It never blocks the confirmation.
func (h *Hub) OrderPaid(ctx context.Context, ev checkout.PaidEvent) error {
	alert := SalesAlert{
		OrderID:     ev.Order.ID,
		BundleID:    ev.Order.BundleID,
		BundleTitle: ev.BundleTitle,
		Amount:      ev.Order.Amount,
		Currency:    ev.Order.Currency,
		Email:       ev.Order.Email,
	}
	select {
	case h.BroadcastAlert <- alert:
	default:
		slog.WarnContext(ctx, "sales alert dropped, hub is backed up", "order_id", ev.Order.ID)
	}
	return nil
}
