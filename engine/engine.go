package engine

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type requestType int

const (
	requestSubmit requestType = iota
	requestCancel
	requestSnapshot
	requestStop
)

type bookRequest struct {
	typ   requestType
	order Order
	id    string
	resp  chan error
	fills chan []Trade
	view  chan BookView
}

// Engine serializes access to a Book through a single worker loop, so
// concurrent callers never interleave book mutations. Executed trades
// and depth updates are also published on streams for subscribers.
type Engine struct {
	cfg      Config
	book     *Book
	reqCh    chan bookRequest
	trades   chan Trade
	updates  chan BookView
	done     chan struct{}
	stopOnce sync.Once
}

// NewEngine wraps a fresh book and launches the worker loop.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:     cfg,
		book:    NewBook(),
		reqCh:   make(chan bookRequest),
		trades:  make(chan Trade, 16),
		updates: make(chan BookView, 16),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) send(req bookRequest) error {
	select {
	case e.reqCh <- req:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// SubmitOrder routes an order through the worker loop and returns the
// trades it produced, in execution order.
func (e *Engine) SubmitOrder(order Order) ([]Trade, error) {
	resp := make(chan error, 1)
	fills := make(chan []Trade, 1)
	if err := e.send(bookRequest{typ: requestSubmit, order: order, resp: resp, fills: fills}); err != nil {
		return nil, err
	}
	return <-fills, <-resp
}

// CancelOrder removes a resting order by id.
func (e *Engine) CancelOrder(id string) error {
	resp := make(chan error, 1)
	if err := e.send(bookRequest{typ: requestCancel, id: id, resp: resp}); err != nil {
		return err
	}
	return <-resp
}

// Snapshot returns the current depth view of the book.
func (e *Engine) Snapshot() (BookView, error) {
	resp := make(chan error, 1)
	view := make(chan BookView, 1)
	if err := e.send(bookRequest{typ: requestSnapshot, resp: resp, view: view}); err != nil {
		return BookView{}, err
	}
	return <-view, <-resp
}

// Trades exposes the stream of executed trades. Consumers must drain
// it while the engine runs; it is closed by Stop.
func (e *Engine) Trades() <-chan Trade {
	return e.trades
}

// BookUpdates exposes the stream of depth updates published after
// every successful submit or cancel. Slow consumers miss updates
// rather than stalling the engine; the channel is closed by Stop.
func (e *Engine) BookUpdates() <-chan BookView {
	return e.updates
}

// Symbol returns the instrument this engine trades.
func (e *Engine) Symbol() string {
	return e.cfg.Symbol
}

// TickSize returns the configured price increment; zero means the
// alignment check is disabled.
func (e *Engine) TickSize() decimal.Decimal {
	return e.cfg.TickSize
}

// Stop terminates the worker loop and closes the outbound streams.
// Requests issued after Stop fail with ErrStopped.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.reqCh <- bookRequest{typ: requestStop}
	})
}

func (e *Engine) run() {
	for req := range e.reqCh {
		switch req.typ {
		case requestSubmit:
			trades, err := e.processSubmit(req.order)
			req.fills <- trades
			req.resp <- err
			if err == nil {
				for _, trade := range trades {
					e.trades <- trade
				}
				e.publishView()
			}
		case requestCancel:
			err := e.book.Cancel(req.id)
			req.resp <- err
			if err == nil {
				e.publishView()
			}
		case requestSnapshot:
			req.view <- e.book.Depth(e.cfg.SnapshotDepth)
			req.resp <- nil
		case requestStop:
			close(e.done)
			close(e.trades)
			close(e.updates)
			return
		}
	}
}

func (e *Engine) processSubmit(order Order) ([]Trade, error) {
	if !e.cfg.TickSize.IsZero() && !order.Price.Mod(e.cfg.TickSize).IsZero() {
		return nil, fmt.Errorf("%w: price %s does not align to tick size %s",
			ErrInvalidOrder, order.Price, e.cfg.TickSize)
	}
	return e.book.Submit(order)
}

func (e *Engine) publishView() {
	select {
	case e.updates <- e.book.Depth(e.cfg.SnapshotDepth):
	default:
	}
}
