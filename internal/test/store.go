package test

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-orders/internal/model"
	"storefront-orders/internal/repository"
)

// MemoryStore keeps orders, products, carts and counters in memory. It
// honours the same guards as the MongoDB repositories so service tests can
// exercise conflicts and concurrent checkouts.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[primitive.ObjectID]*model.Order
	products map[primitive.ObjectID]*model.Product
	carts    map[string]int
	seq      map[string]int64

	// Err fails every call when set.
	Err error
	// InsertErr fails order inserts only.
	InsertErr error
	// ClearErr fails cart clearing only.
	ClearErr error
	// BeforeApply runs inside ApplyStatusChange before the guard is checked.
	BeforeApply func(id primitive.ObjectID)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[primitive.ObjectID]*model.Order),
		products: make(map[primitive.ObjectID]*model.Product),
		carts:    make(map[string]int),
		seq:      make(map[string]int64),
	}
}

// --- seeding and inspection ---

func (s *MemoryStore) PutProduct(p model.Product) *model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Status == "" {
		p.Status = model.ProductActive
	}
	cp := cloneProduct(&p)
	s.products[p.ID] = cp
	return cloneProduct(cp)
}

func (s *MemoryStore) Product(id primitive.ObjectID) *model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	return cloneProduct(p)
}

func (s *MemoryStore) PutOrder(o model.Order) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	cp := cloneOrder(&o)
	s.orders[o.ID] = cp
	return cloneOrder(cp)
}

func (s *MemoryStore) Order(id primitive.ObjectID) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	return cloneOrder(o)
}

func (s *MemoryStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// PutCart seeds a cart holding n items for userID.
func (s *MemoryStore) PutCart(userID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = n
}

// CartItems returns how many items the cart of userID holds.
func (s *MemoryStore) CartItems(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[userID]
}

// --- OrderStore ---

func (s *MemoryStore) Insert(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (*model.Order, error) {
	return s.findOrder(func(o *model.Order) bool { return o.ID == id })
}

func (s *MemoryStore) FindByNumber(_ context.Context, number string) (*model.Order, error) {
	return s.findOrder(func(o *model.Order) bool { return o.OrderNumber == number })
}

func (s *MemoryStore) FindByTrackingNumber(_ context.Context, trackingNumber string) (*model.Order, error) {
	return s.findOrder(func(o *model.Order) bool {
		return o.Tracking != nil && o.Tracking.TrackingNumber == trackingNumber
	})
}

func (s *MemoryStore) findOrder(match func(*model.Order) bool) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, o := range s.orders {
		if match(o) {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, f model.OrderFilter) ([]*model.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}

	matched := make([]*model.Order, 0)
	for _, o := range s.orders {
		if f.Matches(o) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].OrderNumber > matched[j].OrderNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.Limit
		if start > len(matched) {
			start = len(matched)
		}
		end := start + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}

	out := make([]*model.Order, 0, len(matched))
	for _, o := range matched {
		out = append(out, cloneOrder(o))
	}
	return out, total, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, f model.OrderFilter) (map[model.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := make(map[model.Status]int64)
	for _, o := range s.orders {
		if f.Matches(o) {
			counts[o.Status]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) ApplyStatusChange(_ context.Context, id primitive.ObjectID, from model.Status, ch model.StatusChange) (*model.Order, error) {
	if s.BeforeApply != nil {
		s.BeforeApply(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != from {
		return nil, repository.ErrStale
	}

	o.Status = ch.To
	o.StatusChangedAt = ch.At
	o.UpdatedAt = ch.At
	if ch.Tracking != nil {
		t := *ch.Tracking
		o.Tracking = &t
	}
	if ch.PaymentStatus != "" {
		o.Payment.Status = ch.PaymentStatus
	}
	o.StatusHistory = append(o.StatusHistory, ch.Record)
	return cloneOrder(o), nil
}

func (s *MemoryStore) AppendRefund(_ context.Context, id primitive.ObjectID, seen int, refund model.Refund) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if len(o.Refunds) != seen {
		return nil, repository.ErrStale
	}
	o.Refunds = append(o.Refunds, refund)
	o.UpdatedAt = refund.RequestedAt
	return cloneOrder(o), nil
}

func (s *MemoryStore) ResolveRefund(_ context.Context, id primitive.ObjectID, refundID string, res model.RefundResolution) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := o.FindRefund(refundID)
	if r == nil || r.Status != model.RefundPending || o.RefundCount(model.RefundApproved) != res.ApprovedSeen {
		return nil, repository.ErrStale
	}

	r.Status = res.Status
	r.ProcessedBy = res.ProcessedBy
	at := res.ProcessedAt
	r.ProcessedAt = &at
	if res.Note != "" {
		r.Note = res.Note
	}
	if res.PaymentStatus != "" {
		o.Payment.Status = res.PaymentStatus
	}
	if res.OrderStatus != "" {
		o.Status = res.OrderStatus
		o.StatusChangedAt = res.ProcessedAt
		if res.Record != nil {
			o.StatusHistory = append(o.StatusHistory, *res.Record)
		}
	}
	o.UpdatedAt = res.ProcessedAt
	return cloneOrder(o), nil
}

// --- ProductStore ---

// Products exposes the product half of the store. Both halves have a
// FindByID, so each needs its own view.
func (s *MemoryStore) Products() *ProductView {
	return &ProductView{s: s}
}

type ProductView struct {
	s *MemoryStore
}

func (v *ProductView) FindByID(_ context.Context, id primitive.ObjectID) (*model.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.Err != nil {
		return nil, v.s.Err
	}
	p, ok := v.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (v *ProductView) Reserve(_ context.Context, id primitive.ObjectID, variant *model.VariantSpec, qty int) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.Err != nil {
		return v.s.Err
	}
	p, ok := v.s.products[id]
	if !ok || !p.Active() {
		return repository.ErrInsufficientStock
	}
	stock := &p.Stock
	if variant != nil {
		pv := exactVariant(p, *variant)
		if pv == nil {
			return repository.ErrInsufficientStock
		}
		stock = &pv.Stock
	}
	if *stock < qty {
		return repository.ErrInsufficientStock
	}
	*stock -= qty
	return nil
}

func (v *ProductView) Release(_ context.Context, id primitive.ObjectID, variant *model.VariantSpec, qty int) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.Err != nil {
		return v.s.Err
	}
	p, ok := v.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if variant != nil {
		pv := exactVariant(p, *variant)
		if pv == nil {
			return repository.ErrNotFound
		}
		pv.Stock += qty
		return nil
	}
	p.Stock += qty
	return nil
}

// exactVariant matches the way the repository's $elemMatch does.
func exactVariant(p *model.Product, spec model.VariantSpec) *model.Variant {
	for i := range p.Variants {
		pv := &p.Variants[i]
		if spec.SKU != "" {
			if pv.SKU == spec.SKU {
				return pv
			}
			continue
		}
		if (spec.Size == "" || pv.Size == spec.Size) &&
			(spec.Color == "" || pv.Color == spec.Color) &&
			(spec.Material == "" || pv.Material == spec.Material) {
			return pv
		}
	}
	return nil
}

// --- CartStore, Sequencer, Transactor ---

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClearErr != nil {
		return s.ClearErr
	}
	if _, ok := s.carts[userID]; ok {
		s.carts[userID] = 0
	}
	return nil
}

func (s *MemoryStore) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	s.seq[name]++
	return s.seq[name], nil
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func cloneProduct(p *model.Product) *model.Product {
	cp := *p
	cp.Images = append([]string(nil), p.Images...)
	cp.Variants = append([]model.Variant(nil), p.Variants...)
	return &cp
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = make([]model.LineItem, len(o.Items))
	for i, it := range o.Items {
		cp.Items[i] = it
		if it.Variant != nil {
			v := *it.Variant
			cp.Items[i].Variant = &v
		}
	}
	cp.StatusHistory = append([]model.StatusRecord(nil), o.StatusHistory...)
	cp.Refunds = make([]model.Refund, len(o.Refunds))
	copy(cp.Refunds, o.Refunds)
	if o.Tracking != nil {
		t := *o.Tracking
		cp.Tracking = &t
	}
	if o.BillingAddress != nil {
		b := *o.BillingAddress
		cp.BillingAddress = &b
	}
	return &cp
}
