package orders

import (
	"context"
	"sync"
	"time"
)

// MemStore implements Store with the same contract as the Postgres
// adapter: per-SKU serialization around WithTx, per-order row locks on
// tx reads, commit-on-success, unique idempotency tokens. Backs tests
// and store-less dev runs.
type MemStore struct {
	mu     sync.Mutex
	skuMu  map[string]*sync.Mutex
	ordMu  map[string]*sync.Mutex
	orders map[string]*Order
	byTok  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		skuMu:  make(map[string]*sync.Mutex),
		ordMu:  make(map[string]*sync.Mutex),
		orders: make(map[string]*Order),
		byTok:  make(map[string]string),
	}
}

func (m *MemStore) skuLock(sku string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skuMu[sku]; !ok {
		m.skuMu[sku] = &sync.Mutex{}
	}
	return m.skuMu[sku]
}

func (m *MemStore) orderLock(orderID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ordMu[orderID]; !ok {
		m.ordMu[orderID] = &sync.Mutex{}
	}
	return m.ordMu[orderID]
}

func (m *MemStore) WithTx(_ context.Context, sku string, fn func(tx Tx) error) error {
	if sku != "" {
		l := m.skuLock(sku)
		l.Lock()
		defer l.Unlock()
	}
	tx := &memTx{st: m}
	defer tx.unlock()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (m *MemStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

type memTx struct {
	st     *MemStore
	writes []*Order
	locked map[string]*sync.Mutex
}

// lockOrder mirrors SELECT ... FOR UPDATE: held until the tx ends.
func (t *memTx) lockOrder(orderID string) {
	if _, held := t.locked[orderID]; held {
		return
	}
	l := t.st.orderLock(orderID)
	l.Lock()
	if t.locked == nil {
		t.locked = make(map[string]*sync.Mutex)
	}
	t.locked[orderID] = l
}

func (t *memTx) unlock() {
	for _, l := range t.locked {
		l.Unlock()
	}
	t.locked = nil
}

func (t *memTx) commit() error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	for _, o := range t.writes {
		if existing, ok := t.st.byTok[o.IdempotencyToken]; o.IdempotencyToken != "" && ok && existing != o.OrderID {
			return &StoreError{Op: "commit", Retryable: true, Err: ErrNotFound}
		}
	}
	now := time.Now().UTC()
	for _, o := range t.writes {
		cp := *o
		if prev, ok := t.st.orders[o.OrderID]; ok {
			cp.CreatedAt = prev.CreatedAt
		} else {
			cp.CreatedAt = now
			o.CreatedAt = now
		}
		cp.UpdatedAt = now
		o.UpdatedAt = now
		t.st.orders[cp.OrderID] = &cp
		if cp.IdempotencyToken != "" {
			t.st.byTok[cp.IdempotencyToken] = cp.OrderID
		}
	}
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	t.writes = append(t.writes, o)
	return nil
}

func (t *memTx) UpdateOrder(_ context.Context, o *Order) error {
	t.st.mu.Lock()
	_, ok := t.st.orders[o.OrderID]
	t.st.mu.Unlock()
	if !ok {
		for _, w := range t.writes {
			if w.OrderID == o.OrderID {
				ok = true
				break
			}
		}
	}
	if !ok {
		return ErrNotFound
	}
	t.writes = append(t.writes, o)
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	// the tx sees its own staged writes first
	for i := len(t.writes) - 1; i >= 0; i-- {
		if t.writes[i].OrderID == orderID {
			cp := *t.writes[i]
			return &cp, nil
		}
	}
	t.lockOrder(orderID)
	return t.st.GetOrder(ctx, orderID)
}

func (t *memTx) GetByIdempotencyToken(_ context.Context, token string) (*Order, error) {
	for i := len(t.writes) - 1; i >= 0; i-- {
		if t.writes[i].IdempotencyToken == token && token != "" {
			cp := *t.writes[i]
			return &cp, nil
		}
	}
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	id, ok := t.st.byTok[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t.st.orders[id]
	return &cp, nil
}

func (t *memTx) ListActiveForSKU(_ context.Context, sku string, horizon time.Time) ([]Order, error) {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	var out []Order
	for _, o := range t.st.orders {
		if o.SKU != sku || !o.Status.Occupying() {
			continue
		}
		if !o.Occupied().End.After(horizon) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}
