package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// インメモリのTxRepos実装。WithinTxは全体ロック＋スナップショットで
// 本物と同じ「失敗したら全部巻き戻る」を再現する。
type memStore struct {
	mu sync.Mutex

	users      map[int64]model.User
	products   map[int64]model.Product
	carts      map[int64]model.Cart
	cartItems  map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	otps       map[int64]model.OTPEntry
	changeLogs []model.InventoryChangeLog

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[int64]model.User{},
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
		otps:       map[int64]model.OTPEntry{},
	}
}

func (s *memStore) genID() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	users      map[int64]model.User
	products   map[int64]model.Product
	carts      map[int64]model.Cart
	cartItems  map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	otps       map[int64]model.OTPEntry
	changeLogs []model.InventoryChangeLog
	nextID     int64
}

func cloneOrder(o model.Order) model.Order {
	if o.CartID != nil {
		v := *o.CartID
		o.CartID = &v
	}
	if o.GatewayOrderRef != nil {
		v := *o.GatewayOrderRef
		o.GatewayOrderRef = &v
	}
	if o.GatewayPaymentRef != nil {
		v := *o.GatewayPaymentRef
		o.GatewayPaymentRef = &v
	}
	return o
}

func cloneOTP(e model.OTPEntry) model.OTPEntry {
	if e.UserID != nil {
		v := *e.UserID
		e.UserID = &v
	}
	if e.OrderID != nil {
		v := *e.OrderID
		e.OrderID = &v
	}
	return e
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		users:      map[int64]model.User{},
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
		otps:       map[int64]model.OTPEntry{},
		changeLogs: append([]model.InventoryChangeLog(nil), s.changeLogs...),
		nextID:     s.nextID,
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.carts {
		snap.carts[k] = v
	}
	for k, v := range s.cartItems {
		snap.cartItems[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = cloneOrder(v)
	}
	for k, v := range s.orderItems {
		snap.orderItems[k] = v
	}
	for k, v := range s.otps {
		snap.otps[k] = cloneOTP(v)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = snap.users
	s.products = snap.products
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.otps = snap.otps
	s.changeLogs = snap.changeLogs
	s.nextID = snap.nextID
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memRepos{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memRepos struct {
	s *memStore
}

func (r *memRepos) Orders() repo.OrderRepository         { return &memOrderRepo{s: r.s} }
func (r *memRepos) OrderItems() repo.OrderItemRepository { return &memOrderItemRepo{s: r.s} }
func (r *memRepos) Carts() repo.CartRepository           { return &memCartRepo{s: r.s} }
func (r *memRepos) CartItems() repo.CartItemRepository   { return &memCartItemRepo{s: r.s} }
func (r *memRepos) Inventory() repo.InventoryRepository  { return &memInventoryRepo{s: r.s} }
func (r *memRepos) Products() repo.ProductRepository     { return &memProductRepo{s: r.s} }
func (r *memRepos) OTPs() repo.OTPRepository             { return &memOTPRepo{s: r.s} }
func (r *memRepos) Users() repo.UserRepository           { return &memUserRepo{s: r.s} }

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) Create(ctx context.Context, order model.Order) (int64, error) {
	order.ID = r.s.genID()
	order.CreatedAt = time.Now()
	r.s.orders[order.ID] = order
	return order.ID, nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *memOrderRepo) FindByGatewayOrderRef(ctx context.Context, ref string) (model.Order, error) {
	for _, o := range r.s.orders {
		if o.GatewayOrderRef != nil && *o.GatewayOrderRef == ref {
			return cloneOrder(o), nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *memOrderRepo) UpdateStatusIf(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	o, ok := r.s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	r.s.orders[orderID] = o
	return true, nil
}

func (r *memOrderRepo) SetGatewayOrderRef(ctx context.Context, orderID int64, ref string) (bool, error) {
	for id, o := range r.s.orders {
		if id != orderID && o.GatewayOrderRef != nil && *o.GatewayOrderRef == ref {
			return false, repo.ErrConflict
		}
	}
	o, ok := r.s.orders[orderID]
	if !ok || o.Status != model.OrderStatusConfirmed || o.GatewayOrderRef != nil {
		return false, nil
	}
	o.GatewayOrderRef = &ref
	o.Status = model.OrderStatusAwaitingPayment
	r.s.orders[orderID] = o
	return true, nil
}

func (r *memOrderRepo) MarkPaid(ctx context.Context, gatewayOrderRef string, gatewayPaymentRef string) (bool, error) {
	for id, o := range r.s.orders {
		if o.GatewayOrderRef == nil || *o.GatewayOrderRef != gatewayOrderRef {
			continue
		}
		if o.Status != model.OrderStatusAwaitingPayment {
			return false, nil
		}
		o.Status = model.OrderStatusPaid
		o.GatewayPaymentRef = &gatewayPaymentRef
		r.s.orders[id] = o
		return true, nil
	}
	return false, nil
}

type memOrderItemRepo struct{ s *memStore }

func (r *memOrderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = r.s.genID()
		it.OrderID = orderID
		r.s.orderItems[it.ID] = it
	}
	return nil
}

func (r *memOrderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var out []model.OrderItem
	for _, it := range r.s.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memCartRepo struct{ s *memStore }

func (r *memCartRepo) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if _, ok := r.s.users[userID]; !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	for _, c := range r.s.carts {
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return c, nil
		}
	}
	c := model.Cart{
		ID:     r.s.genID(),
		UserID: userID,
		Status: model.CartStatusActive,
	}
	r.s.carts[c.ID] = c
	return c, nil
}

func (r *memCartRepo) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	c, ok := r.s.carts[cartID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *memCartRepo) UpdateStatusIf(ctx context.Context, cartID int64, from, to model.CartStatus) (bool, error) {
	c, ok := r.s.carts[cartID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	r.s.carts[cartID] = c
	return true, nil
}

type memCartItemRepo struct{ s *memStore }

func (r *memCartItemRepo) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var out []model.CartItem
	for _, ci := range r.s.cartItems {
		if ci.CartID == cartID {
			out = append(out, ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *memCartItemRepo) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64) error {
	for id, ci := range r.s.cartItems {
		if ci.CartID == cartID && ci.ProductID == productID {
			ci.Quantity += addQty
			r.s.cartItems[id] = ci
			return nil
		}
	}
	ci := model.CartItem{
		ID:        r.s.genID(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  addQty,
	}
	r.s.cartItems[ci.ID] = ci
	return nil
}

func (r *memCartItemRepo) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	ci, ok := r.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	ci.Quantity = qty
	r.s.cartItems[cartItemID] = ci
	return nil
}

func (r *memCartItemRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	if _, ok := r.s.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.cartItems, cartItemID)
	return nil
}

func (r *memCartItemRepo) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	ci, ok := r.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return ci, nil
}

type memInventoryRepo struct{ s *memStore }

func (r *memInventoryRepo) DecrementStockIfAvailable(ctx context.Context, productID int64, qty int64) (int64, bool, error) {
	p, ok := r.s.products[productID]
	if !ok || p.Stock < qty {
		return 0, false, nil
	}
	p.Stock -= qty
	r.s.products[productID] = p
	return p.Stock, true, nil
}

func (r *memInventoryRepo) IncrementStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	p, ok := r.s.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	p.Stock += qty
	r.s.products[productID] = p
	return p.Stock, nil
}

func (r *memInventoryRepo) GetStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	p, ok := r.s.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return p.Stock, nil
}

func (r *memInventoryRepo) SetStock(ctx context.Context, productID int64, newStock int64) error {
	p, ok := r.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = newStock
	r.s.products[productID] = p
	return nil
}

func (r *memInventoryRepo) CurrentStock(ctx context.Context, productID int64) (int64, error) {
	p, ok := r.s.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return p.Stock, nil
}

func (r *memInventoryRepo) AppendChangeLog(ctx context.Context, log model.InventoryChangeLog) error {
	log.ID = r.s.genID()
	log.CreatedAt = time.Now()
	r.s.changeLogs = append(r.s.changeLogs, log)
	return nil
}

type memProductRepo struct{ s *memStore }

func (r *memProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = r.s.genID()
	r.s.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProductRepo) Update(ctx context.Context, p model.Product) error {
	cur, ok := r.s.products[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	// 在庫はInventory側の管轄
	p.Stock = cur.Stock
	r.s.products[p.ID] = p
	return nil
}

type memOTPRepo struct{ s *memStore }

func (r *memOTPRepo) Create(ctx context.Context, entry model.OTPEntry) (int64, error) {
	entry.ID = r.s.genID()
	r.s.otps[entry.ID] = cloneOTP(entry)
	return entry.ID, nil
}

func (r *memOTPRepo) FindLatestUnverifiedByOrderID(ctx context.Context, orderID int64) (model.OTPEntry, error) {
	var latest model.OTPEntry
	found := false
	for _, e := range r.s.otps {
		if e.OrderID == nil || *e.OrderID != orderID || e.IsVerified {
			continue
		}
		if !found || e.ID > latest.ID {
			latest = e
			found = true
		}
	}
	if !found {
		return model.OTPEntry{}, repo.ErrNotFound
	}
	return cloneOTP(latest), nil
}

func (r *memOTPRepo) MarkVerified(ctx context.Context, entryID int64) error {
	e, ok := r.s.otps[entryID]
	if !ok {
		return repo.ErrNotFound
	}
	e.IsVerified = true
	r.s.otps[entryID] = e
	return nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return model.User{}, repo.ErrConflict
		}
	}
	user.ID = r.s.genID()
	r.s.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) FindByID(ctx context.Context, userID int64) (model.User, error) {
	u, ok := r.s.users[userID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

// --- テストダブル ---

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubSender struct {
	mu         sync.Mutex
	fail       bool
	recipients []string
	codes      []string
}

func (s *stubSender) SendOTP(ctx context.Context, recipient string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp down")
	}
	s.recipients = append(s.recipients, recipient)
	s.codes = append(s.codes, code)
	return nil
}

func (s *stubSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

type stubGateway struct {
	mu          sync.Mutex
	intentCalls int
	nextRef     string
	fail        bool
	validSig    string
}

func (g *stubGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentCalls++
	if g.fail {
		return "", errors.New("gateway timeout")
	}
	return g.nextRef, nil
}

func (g *stubGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return signature == g.validSig
}

func (g *stubGateway) KeyID() string    { return "rzp_test_key" }
func (g *stubGateway) Currency() string { return "INR" }

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.intentCalls
}

// --- シード ---

func seedUser(s *memStore, email string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: s.genID(), Name: "test user", Email: email}
	s.users[u.ID] = u
	return u
}

func seedProduct(s *memStore, name string, price string, stock int64, active bool) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Product{
		ID:       s.genID(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: active,
	}
	s.products[p.ID] = p
	return p
}

func seedActiveCart(s *memStore, userID int64) model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Cart{ID: s.genID(), UserID: userID, Status: model.CartStatusActive}
	s.carts[c.ID] = c
	return c
}

func seedCartItem(s *memStore, cartID, productID, qty int64) model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci := model.CartItem{ID: s.genID(), CartID: cartID, ProductID: productID, Quantity: qty}
	s.cartItems[ci.ID] = ci
	return ci
}

func seedOrder(s *memStore, o model.Order) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.genID()
	s.orders[o.ID] = cloneOrder(o)
	return o
}

func (s *memStore) orderByID(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(s.orders[id])
}

func (s *memStore) cartByID(id int64) model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[id]
}

func (s *memStore) productByID(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) changeLogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changeLogs)
}

func (s *memStore) latestOTPForOrder(orderID int64) (model.OTPEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest model.OTPEntry
	found := false
	for _, e := range s.otps {
		if e.OrderID != nil && *e.OrderID == orderID {
			if !found || e.ID > latest.ID {
				latest = e
				found = true
			}
		}
	}
	return cloneOTP(latest), found
}

var testLogger = zap.NewNop()
