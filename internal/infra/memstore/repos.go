package memstore

import (
	"context"
	"sort"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type runner func(f func(*state) error) error

type repos struct {
	run runner
}

func newRepos(run runner) *repos {
	return &repos{run: run}
}

func (r *repos) Orders() repo.OrderRepository                   { return orderRepo{r.run} }
func (r *repos) OrderItems() repo.OrderItemRepository           { return orderItemRepo{r.run} }
func (r *repos) PaymentAttempts() repo.PaymentAttemptRepository { return attemptRepo{r.run} }
func (r *repos) AuditLogs() repo.AuditLogRepository             { return auditLogRepo{r.run} }
func (r *repos) Products() repo.ProductRepository               { return productRepo{r.run} }

// =====================
// orders
// =====================

type orderRepo struct{ run runner }

func (r orderRepo) FindByReference(_ context.Context, reference string) (model.Order, error) {
	var out model.Order
	err := r.run(func(st *state) error {
		o, ok := st.orders[reference]
		if !ok {
			return repo.ErrNotFound
		}
		out = o
		return nil
	})
	return out, err
}

func (r orderRepo) Create(_ context.Context, order model.Order) error {
	return r.run(func(st *state) error {
		if _, ok := st.orders[order.Reference]; ok {
			return repo.ErrConflict
		}
		if order.CheckoutKey != nil {
			for _, o := range st.orders {
				if o.CheckoutKey != nil && *o.CheckoutKey == *order.CheckoutKey {
					return repo.ErrConflict
				}
			}
		}
		st.orders[order.Reference] = order
		return nil
	})
}

func (r orderRepo) FindByCheckoutKey(_ context.Context, key string) (model.Order, bool, error) {
	var out model.Order
	found := false
	err := r.run(func(st *state) error {
		for _, o := range st.orders {
			if o.CheckoutKey != nil && *o.CheckoutKey == key {
				out, found = o, true
				return nil
			}
		}
		return nil
	})
	return out, found, err
}

func (r orderRepo) UpdateStatus(_ context.Context, reference string, status model.OrderStatus, at time.Time) error {
	return r.run(func(st *state) error {
		o, ok := st.orders[reference]
		if !ok {
			return repo.ErrNotFound
		}
		o.Status = status
		o.UpdatedAt = at
		st.orders[reference] = o
		return nil
	})
}

func (r orderRepo) TransitionPaymentStatus(_ context.Context, reference string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		o, ok := st.orders[reference]
		if !ok || o.Payment.Status != from {
			return nil
		}
		o.Payment.Status = to
		o.UpdatedAt = at
		st.orders[reference] = o
		changed = true
		return nil
	})
	return changed, err
}

func (r orderRepo) AttachPayment(_ context.Context, reference string, provider model.PaymentProvider, providerRef, merchantCode string, at time.Time) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		o, ok := st.orders[reference]
		if !ok || o.Payment.Status != model.PaymentStatusPending {
			return nil
		}
		o.Payment.Provider = provider
		o.Payment.ProviderReference = providerRef
		o.Payment.MerchantCode = merchantCode
		o.UpdatedAt = at
		st.orders[reference] = o
		changed = true
		return nil
	})
	return changed, err
}

func (r orderRepo) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var matched []model.Order
	err := r.run(func(st *state) error {
		for _, o := range st.orders {
			if f.Status != "" && string(o.Status) != f.Status {
				continue
			}
			if f.PaymentStatus != "" && string(o.Payment.Status) != f.PaymentStatus {
				continue
			}
			if f.From != nil && o.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && o.CreatedAt.After(*f.To) {
				continue
			}
			matched = append(matched, o)
		}
		return nil
	})
	if err != nil {
		return []model.Order{}, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Reference > matched[j].Reference
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return []model.Order{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// =====================
// order items
// =====================

type orderItemRepo struct{ run runner }

func (r orderItemRepo) CreateBulk(_ context.Context, orderReference string, items []model.OrderItem) error {
	return r.run(func(st *state) error {
		for _, it := range items {
			st.nextItemID++
			it.ID = st.nextItemID
			it.OrderReference = orderReference
			st.items[orderReference] = append(st.items[orderReference], it)
		}
		return nil
	})
}

func (r orderItemRepo) ListByOrderReference(_ context.Context, orderReference string) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	err := r.run(func(st *state) error {
		out = append(out, st.items[orderReference]...)
		return nil
	})
	return out, err
}

// =====================
// payment attempts
// =====================

type attemptRepo struct{ run runner }

func (r attemptRepo) Create(_ context.Context, a model.PaymentAttempt) error {
	return r.run(func(st *state) error {
		if _, ok := st.attempts[a.Reference]; ok {
			return repo.ErrConflict
		}
		if a.IdempotencyKey != nil {
			for _, ex := range st.attempts {
				if ex.Provider == a.Provider && ex.IdempotencyKey != nil && *ex.IdempotencyKey == *a.IdempotencyKey {
					return repo.ErrConflict
				}
			}
		}
		st.attempts[a.Reference] = a
		return nil
	})
}

func (r attemptRepo) FindByReference(_ context.Context, reference string) (model.PaymentAttempt, error) {
	var out model.PaymentAttempt
	err := r.run(func(st *state) error {
		a, ok := st.attempts[reference]
		if !ok {
			return repo.ErrNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (r attemptRepo) FindByIdempotencyKey(_ context.Context, provider model.PaymentProvider, key string) (model.PaymentAttempt, bool, error) {
	var out model.PaymentAttempt
	found := false
	err := r.run(func(st *state) error {
		for _, a := range st.attempts {
			if a.Provider == provider && a.IdempotencyKey != nil && *a.IdempotencyKey == key {
				out, found = a, true
				return nil
			}
		}
		return nil
	})
	return out, found, err
}

func (r attemptRepo) TransitionStatus(_ context.Context, reference string, from, to model.AttemptStatus, at time.Time) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		a, ok := st.attempts[reference]
		if !ok || a.Status != from {
			return nil
		}
		a.Status = to
		a.UpdatedAt = at
		st.attempts[reference] = a
		changed = true
		return nil
	})
	return changed, err
}

// =====================
// audit logs
// =====================

type auditLogRepo struct{ run runner }

func (r auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	return r.run(func(st *state) error {
		st.nextAuditID++
		log.ID = st.nextAuditID
		st.auditLogs = append(st.auditLogs, log)
		return nil
	})
}

func (r auditLogRepo) List(_ context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit, offset := filter.Page()

	out := []model.AuditLog{}
	err := r.run(func(st *state) error {
		skipped := 0
		//新しい順
		for i := len(st.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
			l := st.auditLogs[i]
			if !filter.MatchActor(l.Actor) {
				continue
			}
			if filter.Action != nil && l.Action != *filter.Action {
				continue
			}
			if filter.ResourceType != nil && l.ResourceType != *filter.ResourceType {
				continue
			}
			if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
				continue
			}
			if filter.CreatedFrom != nil && l.CreatedAt.Before(*filter.CreatedFrom) {
				continue
			}
			if filter.CreatedTo != nil && l.CreatedAt.After(*filter.CreatedTo) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// =====================
// products
// =====================

type productRepo struct{ run runner }

func (r productRepo) FindByID(_ context.Context, id string) (model.Product, error) {
	var out model.Product
	err := r.run(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return repo.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r productRepo) Upsert(_ context.Context, p model.Product) error {
	return r.run(func(st *state) error {
		if ex, ok := st.products[p.ID]; ok {
			p.CreatedAt = ex.CreatedAt
		}
		st.products[p.ID] = p
		return nil
	})
}
