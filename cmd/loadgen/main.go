package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"matchbook/engine"
)

func main() {
	totalOrders := flag.Int("orders", 500000, "number of orders to submit")
	priceLevels := flag.Int64("price-levels", 200, "unique price levels around the base")
	tickFlag := flag.String("tick", "0.01", "tick size for limit prices")
	baseFlag := flag.String("base-price", "100.00", "price the random flow centers on")
	cancelEvery := flag.Int("cancel-every", 0, "cancel a random resting order every N submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write heap profile to file")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	tick, err := decimal.NewFromString(*tickFlag)
	if err != nil || !tick.IsPositive() {
		fmt.Fprintf(os.Stderr, "bad tick size %q\n", *tickFlag)
		os.Exit(1)
	}
	base, err := decimal.NewFromString(*baseFlag)
	if err != nil || !base.IsPositive() {
		fmt.Fprintf(os.Stderr, "bad base price %q\n", *baseFlag)
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	book := engine.NewBook()

	var trades int64
	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		order := nextRandomOrder(rng, i, base, *priceLevels, tick)
		fills, err := book.Submit(order)
		if err != nil {
			fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
			continue
		}
		trades += int64(len(fills))
		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := rng.Intn(i)
			_ = book.Cancel("lg-" + strconv.Itoa(target))
		}
	}
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err == nil {
			defer f.Close()
			_ = pprof.WriteHeapProfile(f)
		}
	}

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	tradesPerSec := float64(trades) / elapsed.Seconds()

	fmt.Printf("submitted %d orders in %s (%.0f orders/s)\n", *totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec)
	fmt.Printf("matched %d trades (%.0f trades/s)\n", trades, tradesPerSec)
	fmt.Printf("resting orders: %d\n", book.Len())
	if bid, ok := book.BestBid(); ok {
		fmt.Printf("best bid: %s x %s\n", bid.Price, bid.Quantity)
	}
	if ask, ok := book.BestAsk(); ok {
		fmt.Printf("best ask: %s x %s\n", ask.Price, ask.Quantity)
	}
}

// nextRandomOrder prices buys above the base and sells below it so the
// two flows keep crossing and the matcher stays busy.
func nextRandomOrder(rng *rand.Rand, id int, base decimal.Decimal, width int64, tick decimal.Decimal) engine.Order {
	side := engine.Side(rng.Intn(2))
	offset := tick.Mul(decimal.NewFromInt(rng.Int63n(width)))

	var price decimal.Decimal
	if side == engine.Buy {
		price = base.Add(offset)
	} else {
		price = base.Sub(offset)
		if !price.IsPositive() {
			price = tick
		}
	}

	return engine.Order{
		ID:       "lg-" + strconv.Itoa(id),
		Side:     side,
		Price:    price,
		Quantity: decimal.NewFromInt(rng.Int63n(5) + 1),
	}
}
