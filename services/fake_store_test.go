package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shop-service/models"
	"shop-service/repositories"
)

// memData 内存中的全部表
type memData struct {
	products  map[string]models.Product
	customers map[string]models.Customer
	vouchers  map[string]models.Voucher
	apps      map[string]models.ApplyVoucher
	orders    map[string]models.Order
	details   map[string]models.OrderDetail
	logs      []models.OrderLog
	reviews   map[string]models.Review
	comments  []models.Comment
}

func newMemData() *memData {
	return &memData{
		products:  map[string]models.Product{},
		customers: map[string]models.Customer{},
		vouchers:  map[string]models.Voucher{},
		apps:      map[string]models.ApplyVoucher{},
		orders:    map[string]models.Order{},
		details:   map[string]models.OrderDetail{},
		reviews:   map[string]models.Review{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.vouchers {
		c.vouchers[k] = v
	}
	for k, v := range d.apps {
		c.apps[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.details {
		c.details[k] = v
	}
	for k, v := range d.reviews {
		c.reviews[k] = v
	}
	c.logs = append([]models.OrderLog(nil), d.logs...)
	c.comments = append([]models.Comment(nil), d.comments...)
	return c
}

type memDB struct {
	mu     sync.Mutex
	data   *memData
	faults map[string]error
}

// memStore 事务期间持有全局锁, 出错或 panic 时恢复快照
type memStore struct {
	db   *memDB
	inTx bool
}

func newMemStore() *memStore {
	return &memStore{db: &memDB{data: newMemData(), faults: map[string]error{}}}
}

// failOn 让指定操作返回错误, 例如 "orders.append_log"
func (s *memStore) failOn(op string, err error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.faults[op] = err
}

func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *memStore) fault(op string) error {
	return s.db.faults[op]
}

func (s *memStore) Products() repositories.ProductRepository   { return &memProducts{s} }
func (s *memStore) Customers() repositories.CustomerRepository { return &memCustomers{s} }
func (s *memStore) Vouchers() repositories.VoucherRepository   { return &memVouchers{s} }
func (s *memStore) Orders() repositories.OrderRepository       { return &memOrders{s} }
func (s *memStore) Reviews() repositories.ReviewRepository     { return &memReviews{s} }

func (s *memStore) ExecTx(ctx context.Context, fn func(tx repositories.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.db.data = snapshot
			err = fmt.Errorf("%w: %v", repositories.ErrTxPanic, r)
		}
	}()

	if err = fn(&memStore{db: s.db, inTx: true}); err != nil {
		s.db.data = snapshot
	}
	return err
}

// 测试辅助方法, 直接读写数据

func (s *memStore) seedProduct(p models.Product) {
	defer s.lock()()
	s.db.data.products[p.ID] = p
}

func (s *memStore) seedCustomer(c models.Customer) {
	defer s.lock()()
	s.db.data.customers[c.ID] = c
}

func (s *memStore) seedVoucher(v models.Voucher) {
	defer s.lock()()
	s.db.data.vouchers[v.ID] = v
}

func (s *memStore) product(id string) models.Product {
	defer s.lock()()
	return s.db.data.products[id]
}

func (s *memStore) customer(id string) models.Customer {
	defer s.lock()()
	return s.db.data.customers[id]
}

func (s *memStore) voucher(id string) models.Voucher {
	defer s.lock()()
	return s.db.data.vouchers[id]
}

func (s *memStore) order(id string) (models.Order, bool) {
	defer s.lock()()
	o, ok := s.db.data.orders[id]
	return o, ok
}

func (s *memStore) orderCount() int {
	defer s.lock()()
	return len(s.db.data.orders)
}

func (s *memStore) setOrderStatus(id string, status models.OrderStatus) {
	defer s.lock()()
	o := s.db.data.orders[id]
	o.Status = status
	s.db.data.orders[id] = o
}

type memProducts struct{ s *memStore }

func (r *memProducts) Create(_ context.Context, p *models.Product) error {
	defer r.s.lock()()
	if _, ok := r.s.db.data.products[p.ID]; ok {
		return repositories.ErrDuplicate
	}
	r.s.db.data.products[p.ID] = *p
	return nil
}

func (r *memProducts) GetByID(_ context.Context, id string) (*models.Product, error) {
	defer r.s.lock()()
	p, ok := r.s.db.data.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r *memProducts) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	defer r.s.lock()()
	p, ok := r.s.db.data.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.s.db.data.products[id] = p
	return true, nil
}

func (r *memProducts) IncrementStock(_ context.Context, id string, qty int) error {
	defer r.s.lock()()
	p, ok := r.s.db.data.products[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Stock += qty
	r.s.db.data.products[id] = p
	return nil
}

func (r *memProducts) IncrementSold(_ context.Context, id string, qty int) error {
	defer r.s.lock()()
	p, ok := r.s.db.data.products[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Sold += qty
	r.s.db.data.products[id] = p
	return nil
}

func (r *memProducts) UpdateRating(_ context.Context, id string, rating int) error {
	defer r.s.lock()()
	p, ok := r.s.db.data.products[id]
	if !ok {
		return nil
	}
	p.Rating = rating
	r.s.db.data.products[id] = p
	return nil
}

type memCustomers struct{ s *memStore }

func (r *memCustomers) Create(_ context.Context, c *models.Customer) error {
	defer r.s.lock()()
	if _, ok := r.s.db.data.customers[c.ID]; ok {
		return repositories.ErrDuplicate
	}
	r.s.db.data.customers[c.ID] = *c
	return nil
}

func (r *memCustomers) GetByID(_ context.Context, id string) (*models.Customer, error) {
	defer r.s.lock()()
	c, ok := r.s.db.data.customers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *memCustomers) DebitPoints(_ context.Context, id string, points int) (bool, error) {
	defer r.s.lock()()
	c, ok := r.s.db.data.customers[id]
	if !ok || c.CouponPoints < points {
		return false, nil
	}
	c.CouponPoints -= points
	r.s.db.data.customers[id] = c
	return true, nil
}

func (r *memCustomers) CreditPoints(_ context.Context, id string, points int) error {
	defer r.s.lock()()
	c, ok := r.s.db.data.customers[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.CouponPoints += points
	r.s.db.data.customers[id] = c
	return nil
}

type memVouchers struct{ s *memStore }

func appKey(orderID, voucherID string) string {
	return orderID + "|" + voucherID
}

func (r *memVouchers) Create(_ context.Context, v *models.Voucher) error {
	defer r.s.lock()()
	for _, existing := range r.s.db.data.vouchers {
		if existing.ID == v.ID || existing.Code == v.Code {
			return repositories.ErrDuplicate
		}
	}
	r.s.db.data.vouchers[v.ID] = *v
	return nil
}

func (r *memVouchers) GetByID(_ context.Context, id string) (*models.Voucher, error) {
	defer r.s.lock()()
	v, ok := r.s.db.data.vouchers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &v, nil
}

func (r *memVouchers) GetByCode(_ context.Context, code string) (*models.Voucher, error) {
	defer r.s.lock()()
	for _, v := range r.s.db.data.vouchers {
		if v.Code == code {
			return &v, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memVouchers) ListByOwner(_ context.Context, ownerID string) ([]models.Voucher, error) {
	defer r.s.lock()()
	var out []models.Voucher
	for _, v := range r.s.db.data.vouchers {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memVouchers) IncrementUsed(_ context.Context, id string) (bool, error) {
	defer r.s.lock()()
	v, ok := r.s.db.data.vouchers[id]
	if !ok || v.UsedCount >= v.UsageLimit {
		return false, nil
	}
	v.UsedCount++
	r.s.db.data.vouchers[id] = v
	return true, nil
}

func (r *memVouchers) DecrementUsed(_ context.Context, id string) error {
	defer r.s.lock()()
	v, ok := r.s.db.data.vouchers[id]
	if ok && v.UsedCount > 0 {
		v.UsedCount--
		r.s.db.data.vouchers[id] = v
	}
	return nil
}

func (r *memVouchers) GetApplication(_ context.Context, orderID, voucherID string) (*models.ApplyVoucher, error) {
	defer r.s.lock()()
	a, ok := r.s.db.data.apps[appKey(orderID, voucherID)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (r *memVouchers) CreateApplication(_ context.Context, a *models.ApplyVoucher) error {
	defer r.s.lock()()
	key := appKey(a.OrderID, a.VoucherID)
	if _, ok := r.s.db.data.apps[key]; ok {
		return repositories.ErrDuplicate
	}
	r.s.db.data.apps[key] = *a
	return nil
}

func (r *memVouchers) DeleteApplication(_ context.Context, orderID, voucherID string) (bool, error) {
	defer r.s.lock()()
	key := appKey(orderID, voucherID)
	if _, ok := r.s.db.data.apps[key]; !ok {
		return false, nil
	}
	delete(r.s.db.data.apps, key)
	return true, nil
}

func (r *memVouchers) ListForOrder(_ context.Context, orderID string) ([]models.Voucher, error) {
	defer r.s.lock()()
	var out []models.Voucher
	for _, a := range r.s.db.data.apps {
		if a.OrderID == orderID {
			out = append(out, r.s.db.data.vouchers[a.VoucherID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type memOrders struct{ s *memStore }

func (r *memOrders) Create(_ context.Context, o *models.Order) error {
	defer r.s.lock()()
	if _, ok := r.s.db.data.orders[o.ID]; ok {
		return repositories.ErrDuplicate
	}
	stored := *o
	stored.Details = nil
	r.s.db.data.orders[o.ID] = stored
	return nil
}

func (r *memOrders) GetByID(_ context.Context, id string) (*models.Order, error) {
	defer r.s.lock()()
	o, ok := r.s.db.data.orders[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &o, nil
}

func (r *memOrders) GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memOrders) ListByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	defer r.s.lock()()
	var out []models.Order
	for _, o := range r.s.db.data.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrders) Update(_ context.Context, id string, u models.OrderUpdate) error {
	defer r.s.lock()()
	if err := r.s.fault("orders.update"); err != nil {
		return err
	}
	o, ok := r.s.db.data.orders[id]
	if !ok {
		return nil
	}
	u.Apply(&o)
	o.UpdatedAt = time.Now().UTC()
	r.s.db.data.orders[id] = o
	return nil
}

func (r *memOrders) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.db.data.orders[id]; !ok {
		return repositories.ErrNotFound
	}
	for k, d := range r.s.db.data.details {
		if d.OrderID == id {
			delete(r.s.db.data.details, k)
		}
	}
	logs := r.s.db.data.logs[:0]
	for _, l := range r.s.db.data.logs {
		if l.OrderID != id {
			logs = append(logs, l)
		}
	}
	r.s.db.data.logs = logs
	delete(r.s.db.data.orders, id)
	return nil
}

func (r *memOrders) ListDetails(_ context.Context, orderID string) ([]models.OrderDetail, error) {
	defer r.s.lock()()
	var out []models.OrderDetail
	for _, d := range r.s.db.data.details {
		if d.OrderID == orderID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *memOrders) CreateDetail(_ context.Context, d *models.OrderDetail) error {
	defer r.s.lock()()
	r.s.db.data.details[d.ID] = *d
	return nil
}

func (r *memOrders) UpdateDetailQuantity(_ context.Context, detailID string, qty int) error {
	defer r.s.lock()()
	d, ok := r.s.db.data.details[detailID]
	if !ok {
		return repositories.ErrNotFound
	}
	d.Quantity = qty
	r.s.db.data.details[detailID] = d
	return nil
}

func (r *memOrders) DeleteDetail(_ context.Context, detailID string) error {
	defer r.s.lock()()
	delete(r.s.db.data.details, detailID)
	return nil
}

func (r *memOrders) AppendLog(_ context.Context, l *models.OrderLog) error {
	defer r.s.lock()()
	if err := r.s.fault("orders.append_log"); err != nil {
		return err
	}
	r.s.db.data.logs = append(r.s.db.data.logs, *l)
	return nil
}

func (r *memOrders) ListLogs(_ context.Context, orderID string) ([]models.OrderLog, error) {
	defer r.s.lock()()
	var out []models.OrderLog
	for _, l := range r.s.db.data.logs {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memOrders) HasCompletedPurchase(_ context.Context, customerID, productID string) (bool, error) {
	defer r.s.lock()()
	for _, d := range r.s.db.data.details {
		if d.ProductID != productID {
			continue
		}
		o := r.s.db.data.orders[d.OrderID]
		if o.CustomerID == customerID && o.Status == models.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

type memReviews struct{ s *memStore }

func (r *memReviews) Create(_ context.Context, rv *models.Review) error {
	defer r.s.lock()()
	for _, existing := range r.s.db.data.reviews {
		if existing.CustomerID == rv.CustomerID && existing.ProductID == rv.ProductID {
			return repositories.ErrDuplicate
		}
	}
	stored := *rv
	stored.Comments = nil
	r.s.db.data.reviews[rv.ID] = stored
	return nil
}

func (r *memReviews) GetByID(_ context.Context, id string) (*models.Review, error) {
	defer r.s.lock()()
	rv, ok := r.s.db.data.reviews[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &rv, nil
}

func (r *memReviews) Exists(_ context.Context, customerID, productID string) (bool, error) {
	defer r.s.lock()()
	for _, rv := range r.s.db.data.reviews {
		if rv.CustomerID == customerID && rv.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memReviews) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.db.data.reviews[id]; !ok {
		return repositories.ErrNotFound
	}
	comments := r.s.db.data.comments[:0]
	for _, c := range r.s.db.data.comments {
		if c.ReviewID != id {
			comments = append(comments, c)
		}
	}
	r.s.db.data.comments = comments
	delete(r.s.db.data.reviews, id)
	return nil
}

func (r *memReviews) RatingStats(_ context.Context, productID string) (int64, int64, error) {
	defer r.s.lock()()
	var sum, count int64
	for _, rv := range r.s.db.data.reviews {
		if rv.ProductID == productID {
			sum += int64(rv.Rating)
			count++
		}
	}
	return sum, count, nil
}

func (r *memReviews) ListByProduct(_ context.Context, productID string) ([]models.Review, error) {
	defer r.s.lock()()
	var out []models.Review
	for _, rv := range r.s.db.data.reviews {
		if rv.ProductID == productID {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memReviews) CreateComment(_ context.Context, c *models.Comment) error {
	defer r.s.lock()()
	r.s.db.data.comments = append(r.s.db.data.comments, *c)
	return nil
}

func (r *memReviews) ListComments(_ context.Context, reviewID string) ([]models.Comment, error) {
	defer r.s.lock()()
	var out []models.Comment
	for _, c := range r.s.db.data.comments {
		if c.ReviewID == reviewID {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ repositories.Store = (*memStore)(nil)
