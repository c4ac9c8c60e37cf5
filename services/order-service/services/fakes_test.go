package services_test

import (
	"context"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/providers"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
)

// ---- in-memory store ----

type memState struct {
	products  map[uuid.UUID]models.Product
	addresses map[uuid.UUID]models.Address
	cart      []models.CartItem
	orders    []models.Order
	payments  []models.OrderPayment
}

func (s *memState) clone() *memState {
	c := &memState{
		products:  make(map[uuid.UUID]models.Product, len(s.products)),
		addresses: make(map[uuid.UUID]models.Address, len(s.addresses)),
		cart:      append([]models.CartItem(nil), s.cart...),
		payments:  append([]models.OrderPayment(nil), s.payments...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for _, o := range s.orders {
		o.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
		c.orders = append(c.orders, o)
	}
	return c
}

type memDB struct {
	mu    sync.Mutex
	state *memState

	paymentCreateErr error
	orderCreateErr   error
	now              time.Time

	lockedCartReads     int
	unlockedTxCartReads int
}

func newMemDB() *memDB {
	return &memDB{
		state: &memState{
			products:  map[uuid.UUID]models.Product{},
			addresses: map[uuid.UUID]models.Address{},
		},
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// memStore serialises whole transactions on one mutex, which is stricter
// than row locks but gives the same no-oversell guarantee.
type memStore struct {
	db   *memDB
	inTx bool
}

func newMemStore() *memStore { return &memStore{db: newMemDB()} }

func (s *memStore) with(fn func(st *memState) error) error {
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	return fn(s.db.state)
}

func (s *memStore) Carts() repository.CartRepository { return memCarts{s} }
func (s *memStore) Catalog() repository.CatalogRepository { return memCatalog{s} }
func (s *memStore) Inventory() repository.InventoryRepository { return memInventory{s} }
func (s *memStore) Orders() repository.OrderRepository { return memOrders{s} }
func (s *memStore) Payments() repository.PaymentRepository { return memPayments{s} }

func (s *memStore) WithinTransaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	snapshot := s.db.state.clone()
	if err := fn(&memStore{db: s.db, inTx: true}); err != nil {
		s.db.state = snapshot
		return err
	}
	return nil
}

// seeding helpers, called outside transactions

func (s *memStore) addProduct(name, price string, stock int) models.Product {
	p := models.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), StockCount: stock, IsActive: true}
	_ = s.with(func(st *memState) error { st.products[p.ID] = p; return nil })
	return p
}

func (s *memStore) addAddress(userID uuid.UUID) models.Address {
	a := models.Address{ID: uuid.New(), UserID: userID, FullName: "Asha Rao", Line1: "12 MG Road", City: "Pune", Country: "IN"}
	_ = s.with(func(st *memState) error { st.addresses[a.ID] = a; return nil })
	return a
}

func (s *memStore) setCart(userID uuid.UUID, lines ...models.CartLineInput) {
	_ = s.with(func(st *memState) error {
		kept := st.cart[:0]
		for _, c := range st.cart {
			if c.UserID != userID {
				kept = append(kept, c)
			}
		}
		st.cart = kept
		for _, l := range lines {
			st.cart = append(st.cart, models.CartItem{ID: uuid.New(), UserID: userID, ProductID: l.ProductID, Quantity: l.Quantity})
		}
		return nil
	})
}

func (s *memStore) stock(id uuid.UUID) int {
	var n int
	_ = s.with(func(st *memState) error { n = st.products[id].StockCount; return nil })
	return n
}

func (s *memStore) setPrice(id uuid.UUID, price string) {
	_ = s.with(func(st *memState) error {
		p := st.products[id]
		p.Price = decimal.RequireFromString(price)
		st.products[id] = p
		return nil
	})
}

func (s *memStore) cartLen(userID uuid.UUID) int {
	n := 0
	_ = s.with(func(st *memState) error {
		for _, c := range st.cart {
			if c.UserID == userID {
				n++
			}
		}
		return nil
	})
	return n
}

func (s *memStore) orderCount() int {
	var n int
	_ = s.with(func(st *memState) error { n = len(st.orders); return nil })
	return n
}

func (s *memStore) paymentCount() int {
	var n int
	_ = s.with(func(st *memState) error { n = len(st.payments); return nil })
	return n
}

func (s *memStore) putOrder(o models.Order) {
	_ = s.with(func(st *memState) error { st.orders = append(st.orders, o); return nil })
}

func (s *memStore) putPayment(p models.OrderPayment) {
	_ = s.with(func(st *memState) error { st.payments = append(st.payments, p); return nil })
}

// ---- carts ----

type memCarts struct{ s *memStore }

func (r memCarts) withProduct(st *memState, c models.CartItem) models.CartItem {
	if p, ok := st.products[c.ProductID]; ok {
		c.Product = &p
	}
	return c
}

func (r memCarts) ListByUser(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	if r.s.inTx {
		r.s.db.unlockedTxCartReads++
	}
	return r.read(userID)
}

func (r memCarts) LockByUser(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	r.s.db.lockedCartReads++
	return r.read(userID)
}

func (r memCarts) read(userID uuid.UUID) ([]models.CartItem, error) {
	var out []models.CartItem
	err := r.s.with(func(st *memState) error {
		for _, c := range st.cart {
			if c.UserID == userID {
				out = append(out, r.withProduct(st, c))
			}
		}
		return nil
	})
	return out, err
}

func (r memCarts) Upsert(_ context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	var out models.CartItem
	err := r.s.with(func(st *memState) error {
		for i, c := range st.cart {
			if c.UserID == userID && c.ProductID == productID {
				st.cart[i].Quantity += quantity
				out = r.withProduct(st, st.cart[i])
				return nil
			}
		}
		c := models.CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, Quantity: quantity}
		st.cart = append(st.cart, c)
		out = r.withProduct(st, c)
		return nil
	})
	return &out, err
}

func (r memCarts) InsertLines(_ context.Context, userID uuid.UUID, lines []models.CartLineInput) error {
	return r.s.with(func(st *memState) error {
		for _, l := range lines {
			st.cart = append(st.cart, models.CartItem{ID: uuid.New(), UserID: userID, ProductID: l.ProductID, Quantity: l.Quantity})
		}
		return nil
	})
}

func (r memCarts) UpdateQuantity(_ context.Context, userID, lineID uuid.UUID, quantity int) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.s.with(func(st *memState) error {
		for i, c := range st.cart {
			if c.ID == lineID && c.UserID == userID {
				st.cart[i].Quantity = quantity
				item := r.withProduct(st, st.cart[i])
				out = &item
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r memCarts) DeleteLine(_ context.Context, userID, lineID uuid.UUID) error {
	return r.s.with(func(st *memState) error {
		for i, c := range st.cart {
			if c.ID == lineID && c.UserID == userID {
				st.cart = append(st.cart[:i], st.cart[i+1:]...)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r memCarts) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.s.with(func(st *memState) error {
		kept := make([]models.CartItem, 0, len(st.cart))
		for _, c := range st.cart {
			if c.UserID == userID {
				n++
				continue
			}
			kept = append(kept, c)
		}
		st.cart = kept
		return nil
	})
	return n, err
}

// ---- catalog / inventory ----

type memCatalog struct{ s *memStore }

func (r memCatalog) FindProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	var out *models.Product
	err := r.s.with(func(st *memState) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memCatalog) FindProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := map[uuid.UUID]models.Product{}
	err := r.s.with(func(st *memState) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

func (r memCatalog) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return r.FindProducts(ctx, ids)
}

func (r memCatalog) FindAddressForUser(_ context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var out *models.Address
	err := r.s.with(func(st *memState) error {
		a, ok := st.addresses[addressID]
		if !ok || a.UserID != userID {
			return repository.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

type memInventory struct{ s *memStore }

func (r memInventory) TryReserve(_ context.Context, productID uuid.UUID, quantity int) error {
	return r.s.with(func(st *memState) error {
		p, ok := st.products[productID]
		if !ok || p.StockCount < quantity {
			return repository.ErrStockExhausted
		}
		p.StockCount -= quantity
		st.products[productID] = p
		return nil
	})
}

// ---- orders ----

type memOrders struct{ s *memStore }

func (r memOrders) attach(st *memState, o models.Order) models.Order {
	o.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
	for _, p := range st.payments {
		if p.OrderID == o.ID {
			pay := p
			o.Payment = &pay
		}
	}
	return o
}

func (r memOrders) Create(_ context.Context, order *models.Order) error {
	return r.s.with(func(st *memState) error {
		if r.s.db.orderCreateErr != nil {
			return r.s.db.orderCreateErr
		}
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		order.CreatedAt = r.s.db.now.Add(time.Duration(len(st.orders)) * time.Second)
		order.UpdatedAt = order.CreatedAt
		stored := *order
		stored.OrderItems = append([]models.OrderItem(nil), order.OrderItems...)
		stored.Payment, stored.ShippingAddress = nil, nil
		st.orders = append(st.orders, stored)
		return nil
	})
}

func (r memOrders) find(match func(models.Order) bool) (*models.Order, error) {
	var out *models.Order
	err := r.s.with(func(st *memState) error {
		for _, o := range st.orders {
			if match(o) {
				found := r.attach(st, o)
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id })
}

func (r memOrders) FindByIDAndUserID(_ context.Context, id, userID uuid.UUID) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id && o.UserID == userID })
}

func (r memOrders) list(match func(models.Order) bool, page, limit int) ([]models.Order, int64, error) {
	var all []models.Order
	err := r.s.with(func(st *memState) error {
		for _, o := range st.orders {
			if match(o) {
				all = append(all, r.attach(st, o))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, err
}

func (r memOrders) FindByUserID(_ context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	return r.list(func(o models.Order) bool { return o.UserID == userID }, page, limit)
}

func (r memOrders) FindAll(_ context.Context, f repository.OrderFilter, page, limit int) ([]models.Order, int64, error) {
	return r.list(func(o models.Order) bool {
		return (f.Status == "" || o.Status == f.Status) && (f.PaymentMethod == "" || o.PaymentMethod == f.PaymentMethod)
	}, page, limit)
}

func (r memOrders) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	return r.s.with(func(st *memState) error {
		for i, o := range st.orders {
			if o.ID == id && o.Status == from {
				st.orders[i].Status = to
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r memOrders) Stats(_ context.Context) (*repository.OrderStats, error) {
	stats := &repository.OrderStats{TotalRevenue: decimal.Zero, ByStatus: map[models.OrderStatus]int64{}}
	err := r.s.with(func(st *memState) error {
		for _, o := range st.orders {
			stats.TotalOrders++
			stats.ByStatus[o.Status]++
			if o.Status != models.OrderStatusCancelled {
				stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
			}
		}
		return nil
	})
	return stats, err
}

func (r memOrders) DetachAddresses(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.s.with(func(st *memState) error {
		for i, o := range st.orders {
			if o.UserID == userID && o.ShippingAddressID != nil {
				st.orders[i].ShippingAddressID = nil
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memOrders) ReassignOwner(_ context.Context, from, to uuid.UUID) (int64, error) {
	var n int64
	err := r.s.with(func(st *memState) error {
		for i, o := range st.orders {
			if o.UserID == from {
				st.orders[i].UserID = to
				n++
			}
		}
		return nil
	})
	return n, err
}

// ---- payments ----

type memPayments struct{ s *memStore }

func (r memPayments) Create(_ context.Context, p *models.OrderPayment) error {
	return r.s.with(func(st *memState) error {
		if r.s.db.paymentCreateErr != nil {
			return r.s.db.paymentCreateErr
		}
		for _, existing := range st.payments {
			if existing.OrderID == p.OrderID {
				return repository.ErrDuplicate
			}
			if existing.ProviderPaymentID != nil && p.ProviderPaymentID != nil && *existing.ProviderPaymentID == *p.ProviderPaymentID {
				return repository.ErrDuplicate
			}
		}
		p.ID = uuid.New()
		st.payments = append(st.payments, *p)
		return nil
	})
}

func (r memPayments) FindByProviderPaymentID(_ context.Context, id string) (*models.OrderPayment, error) {
	var out *models.OrderPayment
	err := r.s.with(func(st *memState) error {
		for _, p := range st.payments {
			if p.ProviderPaymentID != nil && *p.ProviderPaymentID == id {
				found := p
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r memPayments) LockProviderPayment(context.Context, string) error { return nil }

// ---- gateway ----

type fakeGateway struct {
	mu          sync.Mutex
	secret      string
	createErr   error
	createCalls int
	lastAmount  int64
	fetchErr    error
	method      string
	// paidMinor is reported as the captured amount; zero means unreported.
	paidMinor int64
}

func newFakeGateway() *fakeGateway { return &fakeGateway{secret: "test_secret", method: "upi"} }

func (g *fakeGateway) sign(orderID, paymentID string) string {
	return hex.EncodeToString(providers.Sign(g.secret, orderID, paymentID))
}

func (g *fakeGateway) CreateIntent(_ context.Context, amountMinor int64, currency, receipt string) (*providers.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastAmount = amountMinor
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &providers.PaymentIntent{
		ProviderOrderID: "order_" + receipt,
		AmountMinor:     amountMinor,
		Currency:        currency,
		Receipt:         receipt,
		Status:          "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(_ context.Context, orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature != g.sign(orderID, paymentID) {
		return providers.ErrSignatureMismatch
	}
	return nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*providers.PaymentDetails, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return &providers.PaymentDetails{ProviderPaymentID: paymentID, Status: "captured", Method: g.method, AmountMinor: g.paidMinor}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

// ---- intent cache ----

type memIntentCache struct {
	mu      sync.Mutex
	entries map[string]repository.CachedIntent
	getErr  error
}

func newMemIntentCache() *memIntentCache {
	return &memIntentCache{entries: map[string]repository.CachedIntent{}}
}

func (c *memIntentCache) Get(_ context.Context, userID, key string) (*repository.CachedIntent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.entries[userID+":"+key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *memIntentCache) Put(_ context.Context, userID, key string, intent repository.CachedIntent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID+":"+key] = intent
	return nil
}

// ---- publisher / metrics ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, evt models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingMetrics() *recordingMetrics { return &recordingMetrics{counts: map[string]int{}} }

func (m *recordingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *recordingMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (m *recordingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

var errBoom = errors.New("boom")
