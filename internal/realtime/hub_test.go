package realtime

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/soukdz/souk/internal/orders"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestShouldSend_Filters(t *testing.T) {
	h := NewHub(testLogger())
	event := &Event{
		Type: "order.disputed",
		Data: OrderView{
			OrderID:       "ord_a1",
			BuyerID:       "usr_b1",
			SellerID:      "usr_s1",
			TotalPriceDzd: 5000,
		},
	}

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"all events", Subscription{AllEvents: true}, true},
		{"matching type", Subscription{EventTypes: []string{"order.disputed"}}, true},
		{"other type", Subscription{EventTypes: []string{"order.created"}}, false},
		{"matching order", Subscription{OrderIDs: []string{"ord_a1"}}, true},
		{"other order", Subscription{OrderIDs: []string{"ord_zz"}}, false},
		{"buyer watch", Subscription{UserIDs: []string{"usr_b1"}}, true},
		{"seller watch", Subscription{UserIDs: []string{"usr_s1"}}, true},
		{"stranger watch", Subscription{UserIDs: []string{"usr_x"}}, false},
		{"above min total", Subscription{MinTotalDzd: 1000}, true},
		{"below min total", Subscription{MinTotalDzd: 10000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{sub: tt.sub}
			if got := h.shouldSend(client, event); got != tt.want {
				t.Errorf("shouldSend = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderEventBroadcast(t *testing.T) {
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	order := &orders.Order{
		ID:            "ord_a1b2c3d4e5f60718",
		BuyerID:       "usr_b1",
		SellerID:      "usr_s1",
		ItemTitle:     "Kabyle rug",
		Status:        orders.StatusPending,
		EscrowStatus:  orders.EscrowPendingReceipt,
		TotalPriceDzd: 1250,
	}
	h.OrderEvent("order.created", order)

	// The event is drained by the hub loop even with no clients connected.
	deadline := time.After(2 * time.Second)
	for h.totalEvents.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("event was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
