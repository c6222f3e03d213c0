package bots

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"matchbook/engine"
)

func quote(price, qty string) engine.Quote {
	return engine.Quote{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestMidPrice(t *testing.T) {
	cases := []struct {
		name string
		view engine.BookView
		want string
	}{
		{
			name: "both sides",
			view: engine.BookView{
				Bids: []engine.Quote{quote("100", "1")},
				Asks: []engine.Quote{quote("101", "1")},
			},
			want: "100.5",
		},
		{
			name: "half tick mid",
			view: engine.BookView{
				Bids: []engine.Quote{quote("100.00", "1")},
				Asks: []engine.Quote{quote("100.01", "1")},
			},
			want: "100.005",
		},
		{
			name: "bid only",
			view: engine.BookView{Bids: []engine.Quote{quote("99.95", "2")}},
			want: "99.95",
		},
		{
			name: "ask only",
			view: engine.BookView{Asks: []engine.Quote{quote("100.05", "2")}},
			want: "100.05",
		},
		{
			name: "empty book",
			view: engine.BookView{},
			want: "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := midPrice(tc.view)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"midPrice = %s, want %s", got, tc.want)
		})
	}
}
