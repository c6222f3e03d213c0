package engine

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func BenchmarkBookThroughput(b *testing.B) {
	book := NewBook()
	rng := rand.New(rand.NewSource(42))

	orders := make([]Order, b.N)
	for i := 0; i < b.N; i++ {
		orders[i] = randomBenchOrder(rng, i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	matched := 0
	for i := 0; i < b.N; i++ {
		trades, err := book.Submit(orders[i])
		if err != nil {
			b.Fatalf("submit failed: %v", err)
		}
		matched += len(trades)
	}
	b.StopTimer()

	if elapsed := b.Elapsed(); elapsed > 0 {
		b.ReportMetric(float64(matched)/elapsed.Seconds(), "trades/sec")
	}
}

func BenchmarkBookSubmitCancel(b *testing.B) {
	book := NewBook()
	rng := rand.New(rand.NewSource(42))

	orders := make([]Order, b.N)
	for i := 0; i < b.N; i++ {
		orders[i] = randomBenchOrder(rng, i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := book.Submit(orders[i]); err != nil {
			b.Fatalf("submit failed: %v", err)
		}
		if i%4 == 3 {
			_ = book.Cancel("bench-" + strconv.Itoa(rng.Intn(i+1)))
		}
	}
}

func randomBenchOrder(rng *rand.Rand, idx int) Order {
	side := Side(rng.Intn(2))
	tick := decimal.New(1, -2) // 0.01
	base := int64(10_000)
	width := int64(100)

	var ticks int64
	if side == Buy {
		ticks = base + rng.Int63n(width)
	} else {
		ticks = base - rng.Int63n(width)
	}

	return Order{
		ID:       "bench-" + strconv.Itoa(idx),
		Side:     side,
		Price:    tick.Mul(decimal.NewFromInt(ticks)),
		Quantity: decimal.NewFromInt(rng.Int63n(5) + 1),
	}
}
