package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"matchbook/engine"
)

const (
	defaultListenAddr = ":8080"
	defaultSymbol     = "MBK"
	defaultTickSize   = "0.01"
	defaultDepth      = 10
)

type server struct {
	engine     *engine.Engine
	validate   *validator.Validate
	tradeHub   *hub[engine.Trade]
	bookHub    *hub[engine.BookView]
	upgrader   websocket.Upgrader
	authToken  string
	corsOrigin string
}

type orderRequest struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type orderResponse struct {
	OrderID   string          `json:"orderId"`
	Status    string          `json:"status"`
	Remaining decimal.Decimal `json:"remaining"`
	Trades    []publicTrade   `json:"trades,omitempty"`
}

type cancelResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type publicTrade struct {
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	TakerOrderID string          `json:"takerOrderId"`
	MakerOrderID string          `json:"makerOrderId"`
	Side         string          `json:"side"`
	ExecutedAt   time.Time       `json:"executedAt"`
}

type publicQuote struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type bookResponse struct {
	Symbol string        `json:"symbol"`
	Bids   []publicQuote `json:"bids"`
	Asks   []publicQuote `json:"asks"`
}

type bestResponse struct {
	Symbol  string       `json:"symbol"`
	BestBid *publicQuote `json:"bestBid,omitempty"`
	BestAsk *publicQuote `json:"bestAsk,omitempty"`
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using process environment")
	}
	if level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	listenAddr := getEnv("LISTEN_ADDR", defaultListenAddr)
	symbol := getEnv("SYMBOL", defaultSymbol)
	tickSize := parseDecimalEnv("TICK_SIZE", defaultTickSize)
	depth := int(parseIntEnv("SNAPSHOT_DEPTH", defaultDepth))
	authToken := os.Getenv("AUTH_TOKEN")
	corsOrigin := getEnv("CORS_ORIGIN", "*")

	eng := engine.NewEngine(engine.Config{Symbol: symbol, TickSize: tickSize, SnapshotDepth: depth})
	srv := &http.Server{Addr: listenAddr, Handler: newServer(eng, authToken, corsOrigin).routes()}

	go func() {
		log.Infof("listening on %s for symbol %s (tick %s)", listenAddr, symbol, tickSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	eng.Stop()
}

func newServer(eng *engine.Engine, authToken, corsOrigin string) *server {
	s := &server{
		engine:     eng,
		validate:   newValidator(),
		tradeHub:   newHub[engine.Trade](),
		bookHub:    newHub[engine.BookView](),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		authToken:  authToken,
		corsOrigin: corsOrigin,
	}

	go s.consumeTrades()
	go s.consumeBookUpdates()
	return s
}

// newValidator teaches the validator to treat decimal fields as their
// numeric value so numeric tags like gt apply.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if value, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := value.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withCORS, s.withAuth)
	r.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete, http.MethodOptions)
	r.HandleFunc("/book", s.handleBook).Methods(http.MethodGet)
	r.HandleFunc("/book/best", s.handleBest).Methods(http.MethodGet)
	r.HandleFunc("/ws/trades", s.handleTradeStream).Methods(http.MethodGet)
	r.HandleFunc("/ws/book", s.handleBookStream).Methods(http.MethodGet)
	return r
}

func (s *server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": formatValidationErrors(err),
		})
		return
	}
	if req.Symbol != "" && !strings.EqualFold(req.Symbol, s.engine.Symbol()) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown symbol %s", req.Symbol))
		return
	}
	side, err := engine.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	trades, err := s.engine.SubmitOrder(engine.Order{
		ID:       req.ID,
		Side:     side,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	remaining := req.Quantity
	for _, trade := range trades {
		remaining = remaining.Sub(trade.Quantity)
	}

	writeJSON(w, http.StatusAccepted, orderResponse{
		OrderID:   req.ID,
		Status:    orderStatus(remaining, trades),
		Remaining: remaining,
		Trades:    toPublicTrades(trades),
	})
}

func (s *server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.CancelOrder(id); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{OrderID: id, Status: "canceled"})
}

func (s *server) handleBook(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{
		Symbol: s.engine.Symbol(),
		Bids:   toPublicQuotes(view.Bids),
		Asks:   toPublicQuotes(view.Asks),
	})
}

func (s *server) handleBest(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := bestResponse{Symbol: s.engine.Symbol()}
	if bid, ok := view.BestBid(); ok {
		resp.BestBid = &publicQuote{Price: bid.Price, Quantity: bid.Quantity}
	}
	if ask, ok := view.BestAsk(); ok {
		resp.BestAsk = &publicQuote{Price: ask.Price, Quantity: ask.Quantity}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)
	log.Debugf("trade stream client connected (%d subscribers)", s.tradeHub.Len())

	for trade := range sub.ch {
		msg := outboundMessage{Type: "trade", Data: toPublicTrade(trade)}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.bookHub.Subscribe(32)
	defer s.bookHub.Unsubscribe(sub)
	log.Debugf("book stream client connected (%d subscribers)", s.bookHub.Len())

	for view := range sub.ch {
		msg := outboundMessage{Type: "book", Data: bookResponse{
			Symbol: s.engine.Symbol(),
			Bids:   toPublicQuotes(view.Bids),
			Asks:   toPublicQuotes(view.Asks),
		}}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *server) consumeTrades() {
	for trade := range s.engine.Trades() {
		s.tradeHub.Broadcast(trade)
	}
	s.tradeHub.Close()
}

func (s *server) consumeBookUpdates() {
	for view := range s.engine.BookUpdates() {
		s.bookHub.Broadcast(view)
	}
	s.bookHub.Close()
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidOrder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func orderStatus(remaining decimal.Decimal, trades []engine.Trade) string {
	switch {
	case remaining.IsZero():
		return "filled"
	case len(trades) > 0:
		return "partially_filled"
	default:
		return "accepted"
	}
}

func formatValidationErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fmt.Sprintf("failed on '%s' validation", fe.Tag())
		}
		return fields
	}
	fields["request"] = err.Error()
	return fields
}

func toPublicTrades(trades []engine.Trade) []publicTrade {
	if len(trades) == 0 {
		return nil
	}
	out := make([]publicTrade, 0, len(trades))
	for _, trade := range trades {
		out = append(out, toPublicTrade(trade))
	}
	return out
}

func toPublicTrade(trade engine.Trade) publicTrade {
	return publicTrade{
		Price:        trade.Price,
		Quantity:     trade.Quantity,
		TakerOrderID: trade.TakerID,
		MakerOrderID: trade.MakerID,
		Side:         trade.TakerSide.String(),
		ExecutedAt:   trade.Timestamp,
	}
}

func toPublicQuotes(quotes []engine.Quote) []publicQuote {
	out := make([]publicQuote, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, publicQuote{Price: q.Price, Quantity: q.Quantity})
	}
	return out
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warnf("invalid %s value %s: %v, falling back to %d", key, value, err, defaultValue)
		return defaultValue
	}
	return parsed
}

func parseDecimalEnv(key, defaultValue string) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		log.Warnf("invalid %s value %s: %v, falling back to %s", key, value, err, defaultValue)
		return decimal.RequireFromString(defaultValue)
	}
	return parsed
}
