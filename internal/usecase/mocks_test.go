package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/payment"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	attempts   repo.PaymentAttemptRepository
	auditLogs  repo.AuditLogRepository
	products   repo.ProductRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository                   { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *TxReposMock) PaymentAttempts() repo.PaymentAttemptRepository { return r.attempts }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }
func (r *TxReposMock) Products() repo.ProductRepository               { return r.products }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByReference(ctx context.Context, reference string) (model.Order, error) {
	args := m.Called(ctx, reference)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) FindByCheckoutKey(ctx context.Context, key string) (model.Order, bool, error) {
	args := m.Called(ctx, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, reference string, status model.OrderStatus, at time.Time) error {
	args := m.Called(ctx, reference, status)
	return args.Error(0)
}

func (m *OrderRepoMock) TransitionPaymentStatus(ctx context.Context, reference string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, reference, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) AttachPayment(ctx context.Context, reference string, provider model.PaymentProvider, providerRef, merchantCode string, at time.Time) (bool, error) {
	args := m.Called(ctx, reference, provider, providerRef, merchantCode)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderReference string, items []model.OrderItem) error {
	args := m.Called(ctx, orderReference, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderReference(ctx context.Context, orderReference string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderReference)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type AttemptRepoMock struct{ mock.Mock }

func (m *AttemptRepoMock) Create(ctx context.Context, attempt model.PaymentAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *AttemptRepoMock) FindByReference(ctx context.Context, reference string) (model.PaymentAttempt, error) {
	args := m.Called(ctx, reference)
	a, _ := args.Get(0).(model.PaymentAttempt)
	return a, args.Error(1)
}

func (m *AttemptRepoMock) FindByIdempotencyKey(ctx context.Context, provider model.PaymentProvider, key string) (model.PaymentAttempt, bool, error) {
	args := m.Called(ctx, provider, key)
	a, _ := args.Get(0).(model.PaymentAttempt)
	return a, args.Bool(1), args.Error(2)
}

func (m *AttemptRepoMock) TransitionStatus(ctx context.Context, reference string, from, to model.AttemptStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, reference, from, to)
	return args.Bool(0), args.Error(1)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) Upsert(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// =====================
// Provider mocks
// =====================

type ProviderMock struct {
	mock.Mock
	name model.PaymentProvider
}

func (m *ProviderMock) Name() model.PaymentProvider { return m.name }

func (m *ProviderMock) Initiate(ctx context.Context, req payment.InitiateRequest) (payment.InitiateResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(payment.InitiateResult)
	return res, args.Error(1)
}

// providersWith は1プロバイダだけ差し替えたレジストリ
func providersWith(p model.PaymentProvider, provider payment.Provider) *payment.Registry {
	r := payment.NewRegistry()
	r.Register(p, payment.Entry{Provider: provider})
	return r
}

// =====================
// Helper: error contains（HTTPErrorの実装詳細に依存しない）
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
