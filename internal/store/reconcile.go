package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	applogger "TradeDeck/pkg/logger"
)

// ErrUnknownOrder signals a push event that referenced an order the store
// has never seen. The caller must force a refetch rather than trust a
// partial insert: an update-only event cannot supply every required field.
var ErrUnknownOrder = errors.New("store: order not present")

// ErrOrderConflict signals a push event whose version is ahead of the
// local order but whose status is unreachable from the local one: an
// intermediate event was lost. The caller must force a refetch; the local
// copy is known to be behind.
var ErrOrderConflict = errors.New("store: order event conflicts with local state")

// Collection names used in change notifications and metrics labels.
const (
	CollectionPositions = "positions"
	CollectionOrders    = "orders"
)

// Change describes a store mutation delivered to subscribers.
type Change struct {
	Collection string
	Kind       string // "fetch", "push", "optimistic"
}

// FetchToken tags an in-flight fetch so a late result can be recognized as
// stale. Issued by BeginFetch, consumed by ApplyFetch.
type FetchToken struct {
	collection string
	seq        uint64
	stamp      uint64
}

type collection struct {
	loaded   bool
	stamp    uint64 // bumped on every applied mutation
	fetchSeq uint64 // issued fetch counter, for logging
}

// Store is the process-wide reconciliation state for one signed-in
// session: the authoritative-as-known set of open positions and recent
// orders. Three triggers mutate it concurrently (refetch, push events,
// optimistic updates); the fetch-token stamps keep a slow fetch from
// clobbering a newer push.
type Store struct {
	mu sync.Mutex

	positions map[string]*models.Position // keyed by stock code
	orders    map[string]*models.Order    // keyed by order id

	quotes map[string]decimal.Decimal // last seen price per watched symbol

	posCol collection
	ordCol collection

	subs    map[uint64]func(Change)
	nextSub uint64
	closed  bool

	logger  *applogger.Logger
	metrics drepo.Metrics
}

// New creates an empty reconciliation store.
func New(logger *applogger.Logger, metrics drepo.Metrics) *Store {
	return &Store{
		positions: make(map[string]*models.Position),
		orders:    make(map[string]*models.Order),
		quotes:    make(map[string]decimal.Decimal),
		subs:      make(map[uint64]func(Change)),
		logger:    logger,
		metrics:   metrics,
	}
}

// Subscribe registers a change listener and returns its unsubscribe
// function. Listeners run synchronously after the mutation commits and
// must not block. Teardown is mandatory: a consumer leaving its view calls
// the returned function, or Close drops everything at session end.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close tears the session state down: collections cleared, subscribers
// dropped, further mutations ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.positions = make(map[string]*models.Position)
	s.orders = make(map[string]*models.Order)
	s.quotes = make(map[string]decimal.Decimal)
	s.subs = make(map[uint64]func(Change))
	s.posCol = collection{}
	s.ordCol = collection{}
}

func (s *Store) notifyLocked(c Change) {
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	// release the lock before running handlers so a handler reading the
	// store cannot deadlock
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
	s.mu.Lock()
}

// --- fetch lifecycle ---

// BeginPositionsFetch tags a positions refetch about to be issued.
func (s *Store) BeginPositionsFetch() FetchToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posCol.fetchSeq++
	return FetchToken{collection: CollectionPositions, seq: s.posCol.fetchSeq, stamp: s.posCol.stamp}
}

// BeginOrdersFetch tags an orders refetch about to be issued.
func (s *Store) BeginOrdersFetch() FetchToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ordCol.fetchSeq++
	return FetchToken{collection: CollectionOrders, seq: s.ordCol.fetchSeq, stamp: s.ordCol.stamp}
}

// ApplyPositionsFetch replaces the positions collection with a server
// snapshot. Returns false when the result is stale: any mutation applied
// after the token was issued wins over the slower fetch. Last-known quotes
// are re-applied so a price tick that raced the fetch is never lost.
func (s *Store) ApplyPositionsFetch(tok FetchToken, rows []*models.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if tok.stamp != s.posCol.stamp {
		s.metrics.RecordEventDiscarded("positions_fetch", "stale")
		s.logger.Debug("stale positions fetch discarded",
			applogger.Uint64("fetch_seq", tok.seq))
		return false
	}

	next := make(map[string]*models.Position, len(rows))
	for _, p := range rows {
		if p == nil || p.StockCode == "" {
			continue
		}
		// a fully closed position is evicted, not kept at qty 0
		if p.Quantity <= 0 {
			continue
		}
		cp := *p
		if q, ok := s.quotes[cp.StockCode]; ok {
			cp.ApplyPrice(q)
		}
		next[cp.StockCode] = &cp
	}
	s.positions = next
	s.posCol.loaded = true
	s.posCol.stamp++
	s.metrics.RecordOpenPositions(len(next))

	s.notifyLocked(Change{Collection: CollectionPositions, Kind: "fetch"})
	return true
}

// ApplyOrdersFetch replaces the orders collection with a server snapshot.
// Placeholder orders are reconciled away: a server row with the same id
// replaces the local pending record outright.
func (s *Store) ApplyOrdersFetch(tok FetchToken, rows []*models.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if tok.stamp != s.ordCol.stamp {
		s.metrics.RecordEventDiscarded("orders_fetch", "stale")
		s.logger.Debug("stale orders fetch discarded",
			applogger.Uint64("fetch_seq", tok.seq))
		return false
	}

	next := make(map[string]*models.Order, len(rows))
	for _, o := range rows {
		if o == nil || o.ID == "" {
			continue
		}
		cp := *o
		cp.ClientRef = ""
		next[cp.ID] = &cp
	}
	// carry over placeholders the snapshot has not caught up with yet;
	// they stay until the first matching event or snapshot replaces them
	for id, o := range s.orders {
		if o.IsPlaceholder() {
			if _, ok := next[id]; !ok {
				next[id] = o
			}
		}
	}
	s.orders = next
	s.ordCol.loaded = true
	s.ordCol.stamp++

	s.notifyLocked(Change{Collection: CollectionOrders, Kind: "fetch"})
	return true
}

// ApplyOrdersPartialFetch upserts a scoped snapshot (one recipe's orders)
// without dropping records outside its scope. Same staleness rules as a
// full fetch.
func (s *Store) ApplyOrdersPartialFetch(tok FetchToken, rows []*models.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if tok.stamp != s.ordCol.stamp {
		s.metrics.RecordEventDiscarded("orders_fetch", "stale")
		s.logger.Debug("stale scoped orders fetch discarded",
			applogger.Uint64("fetch_seq", tok.seq))
		return false
	}

	for _, o := range rows {
		if o == nil || o.ID == "" {
			continue
		}
		cp := *o
		cp.ClientRef = ""
		s.orders[cp.ID] = &cp
	}
	s.ordCol.loaded = true
	s.ordCol.stamp++

	s.notifyLocked(Change{Collection: CollectionOrders, Kind: "fetch"})
	return true
}

// --- push events ---

// ApplyOrderUpdate merges a push event into the orders collection and
// reports whether it was applied. Server wins: status, filled quantity
// and fill price are overwritten in place. Stale versions and unversioned
// status regressions are discarded so replays after a channel reconnect
// are no-ops. An unknown order id returns ErrUnknownOrder; a versioned
// event whose status is unreachable from the local one returns
// ErrOrderConflict. Both mean the caller must schedule a forced refetch.
func (s *Store) ApplyOrderUpdate(e *models.OrderUpdateEvent) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, nil
	}

	o, ok := s.orders[e.OrderID]
	if !ok {
		s.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "unknown_order")
		return false, fmt.Errorf("%w: %s", ErrUnknownOrder, e.OrderID)
	}

	if !o.IsPlaceholder() {
		if e.Version != 0 && e.Version <= o.Version {
			s.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "stale_version")
			return false, nil
		}
		if !o.Status.CanTransition(e.Status) {
			// Past the stale check a versioned event is strictly newer:
			// the local copy is missing an intermediate transition and
			// only a refetch can resolve which side is right.
			if e.Version != 0 {
				s.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "transition_conflict")
				s.logger.Warn("order event skipped a transition",
					applogger.String("order_id", e.OrderID),
					applogger.String("from", string(o.Status)),
					applogger.String("to", string(e.Status)),
					applogger.Uint64("version", e.Version))
				return false, fmt.Errorf("%w: %s %s->%s", ErrOrderConflict, e.OrderID, o.Status, e.Status)
			}
			s.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "illegal_transition")
			s.logger.Warn("order event out of order",
				applogger.String("order_id", e.OrderID),
				applogger.String("from", string(o.Status)),
				applogger.String("to", string(e.Status)))
			return false, nil
		}
	}

	if e.FilledQuantity > o.Quantity && o.Quantity > 0 {
		s.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "overfill")
		return false, nil
	}

	// a placeholder is replaced, never merged
	o.ClientRef = ""
	o.Status = e.Status
	o.FilledQuantity = e.FilledQuantity
	o.AvgFillPrice = e.AvgFillPrice
	if e.Version != 0 {
		o.Version = e.Version
	}
	if e.RecipeID != "" {
		o.RecipeID = e.RecipeID
	}
	s.ordCol.stamp++
	s.metrics.RecordEventApplied(string(models.EventOrderUpdate))

	s.notifyLocked(Change{Collection: CollectionOrders, Kind: "push"})
	return true, nil
}

// ApplyPriceUpdate marks an existing position to the pushed price. A tick
// for a symbol with no position only updates the quote memory; it never
// creates a position. Returns whether a position was touched.
func (s *Store) ApplyPriceUpdate(e *models.PriceUpdateEvent) bool {
	if err := e.Validate(); err != nil {
		s.metrics.RecordEventDiscarded(string(models.EventPriceUpdate), "invalid")
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	s.quotes[e.StockCode] = e.Price
	s.metrics.RecordLastPrice(e.StockCode, e.Price.InexactFloat64())

	p, ok := s.positions[e.StockCode]
	if !ok {
		return false
	}
	p.ApplyPrice(e.Price)
	s.metrics.RecordEventApplied(string(models.EventPriceUpdate))

	s.notifyLocked(Change{Collection: CollectionPositions, Kind: "push"})
	return true
}

// --- optimistic updates ---

// InsertPendingOrder adds the synthetic pending placeholder for a just
// submitted order. It must carry the broker-assigned id from the submit
// response; the first matching order_update or refetch replaces it.
func (s *Store) InsertPendingOrder(o *models.Order) {
	if o == nil || o.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, exists := s.orders[o.ID]; exists {
		// the server event beat us to it; keep the confirmed record
		return
	}
	cp := *o
	cp.Status = models.StatusPending
	s.orders[cp.ID] = &cp
	s.ordCol.stamp++

	s.notifyLocked(Change{Collection: CollectionOrders, Kind: "optimistic"})
}

// --- selectors ---

// PositionsLoaded reports whether the positions collection left EMPTY.
func (s *Store) PositionsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posCol.loaded
}

// OrdersLoaded reports whether the orders collection left EMPTY.
func (s *Store) OrdersLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ordCol.loaded
}

// Positions returns a snapshot of open positions sorted by stock code.
func (s *Store) Positions() []*models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockCode < out[j].StockCode })
	return out
}

// Orders returns a snapshot of the most recent orders, newest first.
// limit <= 0 returns everything.
func (s *Store) Orders(limit int) []*models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Order returns one order by id, or nil.
func (s *Store) Order(id string) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

// Quote returns the last seen price for a symbol, if any tick arrived
// this session.
func (s *Store) Quote(stockCode string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[stockCode]
	return q, ok
}
