package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memstore"
	"storefront/internal/payment"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func requireStatus(t *testing.T, err error, status int) *usecase.HTTPError {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, status, he.Status)
	return he
}

func ecoCashInput() usecase.InitiatePaymentInput {
	return usecase.InitiatePaymentInput{
		Provider:    "ecocash",
		Amount:      decimal.NewFromInt(50),
		PhoneNumber: "0772223333",
		Currency:    "USD",
		OrderID:     "order_456",
	}
}

// =====================
// Initiate tests (mock repos)
// =====================

func TestPaymentUsecase_Initiate_EcoCash_PersistsPendingAttempt(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	attemptsRepo := new(AttemptRepoMock)
	tx.Repos = &TxReposMock{orders: ordersRepo, attempts: attemptsRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	provider := &ProviderMock{name: model.ProviderEcoCash}
	provider.On("Initiate", mock.Anything, mock.MatchedBy(func(req payment.InitiateRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(50)) &&
			req.PayerHandle == "0772223333" &&
			req.Currency == "USD" &&
			req.OrderRef == "order_456"
	})).Return(payment.InitiateResult{Reference: "ECO-REF"}, nil).Once()

	// order_456 はこのサービスの注文ではない
	ordersRepo.On("FindByReference", mock.Anything, "order_456").Return(model.Order{}, repo.ErrNotFound)

	attemptsRepo.On("Create", mock.Anything, mock.MatchedBy(func(a model.PaymentAttempt) bool {
		return a.Reference == "ECO-REF" &&
			a.Provider == model.ProviderEcoCash &&
			a.OrderReference == "order_456" &&
			a.Status == model.AttemptStatusPending &&
			a.MerchantCode == "123456" &&
			a.Amount.Equal(decimal.NewFromInt(50)) &&
			a.IdempotencyKey == nil
	})).Return(nil)

	uc := usecase.NewPaymentUsecase(tx, providersWith(model.ProviderEcoCash, provider), "123456", nil)

	out, err := uc.Initiate(ctx, ecoCashInput())
	require.NoError(t, err)
	assert.Equal(t, "ECO-REF", out.Reference)
	assert.Equal(t, "123456", out.MerchantCode)
	assert.False(t, out.Replayed)

	provider.AssertNumberOfCalls(t, "Initiate", 1)
	attemptsRepo.AssertExpectations(t)
	ordersRepo.AssertNotCalled(t, "AttachPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_Initiate_ValidationBeforeAdapter(t *testing.T) {
	cases := []struct {
		name string
		mod  func(in *usecase.InitiatePaymentInput)
		want string
	}{
		{"zero amount", func(in *usecase.InitiatePaymentInput) { in.Amount = decimal.Zero }, "A valid payment amount is required"},
		{"negative amount", func(in *usecase.InitiatePaymentInput) { in.Amount = decimal.NewFromInt(-1) }, "A valid payment amount is required"},
		{"no phone", func(in *usecase.InitiatePaymentInput) { in.PhoneNumber = "  " }, "A phone number is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := new(TxManagerMock)
			provider := &ProviderMock{name: model.ProviderEcoCash}
			uc := usecase.NewPaymentUsecase(tx, providersWith(model.ProviderEcoCash, provider), "123456", nil)

			in := ecoCashInput()
			tc.mod(&in)

			_, err := uc.Initiate(context.Background(), in)
			he := requireStatus(t, err, http.StatusBadRequest)
			assert.Equal(t, tc.want, he.Message)

			provider.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
			tx.AssertNotCalled(t, "WithinTx", mock.Anything)
		})
	}
}

func TestPaymentUsecase_Initiate_UnknownProvider(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewPaymentUsecase(tx, payment.NewRegistry(), "", nil)

	in := ecoCashInput()
	in.Provider = "visa"
	_, err := uc.Initiate(context.Background(), in)
	requireStatus(t, err, http.StatusNotFound)

	// 対応プロバイダでも未登録なら同じ
	in.Provider = "zb"
	_, err = uc.Initiate(context.Background(), in)
	requireStatus(t, err, http.StatusNotFound)
}

func TestPaymentUsecase_Initiate_AdapterErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "invalid",
			err:        &payment.InitiationError{Provider: model.ProviderEcoCash, Kind: payment.KindInvalid, Reason: "Payer account is not registered"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Payer account is not registered",
		},
		{
			name:       "unavailable",
			err:        &payment.InitiationError{Provider: model.ProviderEcoCash, Kind: payment.KindUnavailable, Reason: "Payment provider is not configured"},
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Payment provider is not configured",
		},
		{
			name:       "unexpected",
			err:        &payment.InitiationError{Provider: model.ProviderEcoCash, Kind: payment.KindUnexpected, Reason: "Payment could not be initiated", Err: errors.New("boom: stack trace")},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
		{
			name:       "raw error",
			err:        errors.New("socket closed"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := new(TxManagerMock)
			ordersRepo := new(OrderRepoMock)
			attemptsRepo := new(AttemptRepoMock)
			tx.Repos = &TxReposMock{orders: ordersRepo, attempts: attemptsRepo}
			tx.On("WithinTx", mock.Anything).Return(nil)

			ordersRepo.On("FindByReference", mock.Anything, "order_456").Return(model.Order{}, repo.ErrNotFound)

			provider := &ProviderMock{name: model.ProviderEcoCash}
			provider.On("Initiate", mock.Anything, mock.Anything).Return(payment.InitiateResult{}, tc.err)

			uc := usecase.NewPaymentUsecase(tx, providersWith(model.ProviderEcoCash, provider), "123456", nil)

			_, err := uc.Initiate(context.Background(), ecoCashInput())
			he := requireStatus(t, err, tc.wantStatus)
			assert.Equal(t, tc.wantMsg, he.Message)

			attemptsRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentUsecase_Initiate_IdempotencyReplay(t *testing.T) {
	tx := new(TxManagerMock)
	attemptsRepo := new(AttemptRepoMock)
	tx.Repos = &TxReposMock{attempts: attemptsRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	key := "idem-1"
	attemptsRepo.On("FindByIdempotencyKey", mock.Anything, model.ProviderEcoCash, key).Return(model.PaymentAttempt{
		Reference:      "ECO-AAAAAAAAAAAA",
		Provider:       model.ProviderEcoCash,
		OrderReference: "order_456",
		Amount:         decimal.NewFromInt(50),
		MerchantCode:   "123456",
		Status:         model.AttemptStatusPending,
		IdempotencyKey: &key,
	}, true, nil)

	provider := &ProviderMock{name: model.ProviderEcoCash}
	uc := usecase.NewPaymentUsecase(tx, providersWith(model.ProviderEcoCash, provider), "123456", nil)

	in := ecoCashInput()
	in.IdempotencyKey = key
	out, err := uc.Initiate(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Replayed)
	assert.Equal(t, "ECO-AAAAAAAAAAAA", out.Reference)

	provider.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
}

func TestPaymentUsecase_Initiate_IdempotencyKeyReusedForDifferentPayment(t *testing.T) {
	tx := new(TxManagerMock)
	attemptsRepo := new(AttemptRepoMock)
	tx.Repos = &TxReposMock{attempts: attemptsRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	attemptsRepo.On("FindByIdempotencyKey", mock.Anything, model.ProviderEcoCash, "idem-1").Return(model.PaymentAttempt{
		Reference:      "ECO-AAAAAAAAAAAA",
		Provider:       model.ProviderEcoCash,
		OrderReference: "order_456",
		Amount:         decimal.NewFromInt(99),
	}, true, nil)

	provider := &ProviderMock{name: model.ProviderEcoCash}
	uc := usecase.NewPaymentUsecase(tx, providersWith(model.ProviderEcoCash, provider), "123456", nil)

	in := ecoCashInput()
	in.IdempotencyKey = "idem-1"
	_, err := uc.Initiate(context.Background(), in)
	requireStatus(t, err, http.StatusConflict)
	provider.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
}

func TestPaymentUsecase_Initiate_LinkedOrderGuards(t *testing.T) {
	base := model.Order{
		Reference: "ORD-000000000001",
		Currency:  "USD",
		Total:     decimal.NewFromInt(50),
		Payment: model.OrderPayment{
			Method:   model.PaymentMethodNow,
			Provider: model.ProviderEcoCash,
			Status:   model.PaymentStatusPending,
		},
	}

	cases := []struct {
		name       string
		order      func(o model.Order) model.Order
		in         func(in usecase.InitiatePaymentInput) usecase.InitiatePaymentInput
		wantStatus int
	}{
		{
			name: "already paid",
			order: func(o model.Order) model.Order {
				o.Payment.Status = model.PaymentStatusPaid
				return o
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "cash on delivery",
			order: func(o model.Order) model.Order {
				o.Payment.Method = model.PaymentMethodOnDelivery
				o.Payment.Status = model.PaymentStatusPendingCollection
				return o
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "amount differs from total",
			in: func(in usecase.InitiatePaymentInput) usecase.InitiatePaymentInput {
				in.Amount = decimal.NewFromInt(49)
				return in
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "currency differs",
			in: func(in usecase.InitiatePaymentInput) usecase.InitiatePaymentInput {
				in.Currency = "ZWG"
				return in
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := base
			if tc.order != nil {
				o = tc.order(o)
			}

			tx := new(TxManagerMock)
			ordersRepo := new(OrderRepoMock)
			tx.Repos = &TxReposMock{orders: ordersRepo}
			tx.On("WithinTx", mock.Anything).Return(nil)
			ordersRepo.On("FindByReference", mock.Anything, o.Reference).Return(o, nil)

			provider := &ProviderMock{name: model.ProviderEcoCash}
			uc := usecase.NewPaymentUsecase(tx, providersWith(model.ProviderEcoCash, provider), "123456", nil)

			in := ecoCashInput()
			in.OrderID = o.Reference
			if tc.in != nil {
				in = tc.in(in)
			}
			_, err := uc.Initiate(context.Background(), in)
			requireStatus(t, err, tc.wantStatus)
			provider.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
		})
	}
}

// =====================
// Initiate tests (memory store)
// =====================

func TestPaymentUsecase_Initiate_AttachesAttemptToOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedProduct(t, store, "sku-1", "Maize meal", "12.50")

	orders := usecase.NewOrderUsecase(store, decimal.NewFromInt(5), nil)
	order, err := orders.PlaceOrder(ctx, checkoutInput("sku-1", 2, "ecocash"))
	require.NoError(t, err)
	assert.Equal(t, "30.00", order.Total)

	registry := payment.NewRegistry()
	registry.Register(model.ProviderEcoCash, payment.Entry{Provider: payment.NewMock(model.ProviderEcoCash, "")})
	uc := usecase.NewPaymentUsecase(store, registry, "123456", nil)

	out, err := uc.Initiate(ctx, usecase.InitiatePaymentInput{
		Provider:    "ecocash",
		Amount:      decimal.RequireFromString("30"),
		PhoneNumber: "0772223333",
		OrderID:     order.Reference,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^ECO-[0-9A-F]{12}$`, out.Reference)
	assert.Equal(t, "123456", out.MerchantCode)
	assert.NotEmpty(t, out.Instructions)

	attempt, err := store.Repos().PaymentAttempts().FindByReference(ctx, out.Reference)
	require.NoError(t, err)
	assert.Equal(t, order.Reference, attempt.OrderReference)
	assert.Equal(t, model.AttemptStatusPending, attempt.Status)
	assert.Equal(t, "USD", attempt.Currency)

	got, err := store.Repos().Orders().FindByReference(ctx, order.Reference)
	require.NoError(t, err)
	assert.Equal(t, out.Reference, got.Payment.ProviderReference)
	assert.Equal(t, "123456", got.Payment.MerchantCode)
	assert.Equal(t, model.PaymentStatusPending, got.Payment.Status)
}

func TestPaymentUsecase_Initiate_MockReferenceReplaysSameRequest(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	registry := payment.NewRegistry()
	registry.Register(model.ProviderZB, payment.Entry{Provider: payment.NewMock(model.ProviderZB, "ZB001")})
	uc := usecase.NewPaymentUsecase(store, registry, "123456", nil)

	in := usecase.InitiatePaymentInput{
		Provider:    "zb",
		Amount:      decimal.NewFromInt(20),
		PhoneNumber: "buyer@example.com",
		OrderID:     "external-1",
	}

	first, err := uc.Initiate(ctx, in)
	require.NoError(t, err)
	assert.Regexp(t, `^ZB-[0-9A-F]{12}$`, first.Reference)
	assert.NotEmpty(t, first.RedirectURL)

	second, err := uc.Initiate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference)
	assert.True(t, second.Replayed)
}

func TestPaymentUsecase_Initiate_PersistsAfterClientCancel(t *testing.T) {
	store := memstore.New()

	ctx, cancel := context.WithCancel(context.Background())

	provider := &ProviderMock{name: model.ProviderEcoCash}
	provider.On("Initiate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(payment.InitiateResult{Reference: "ECO-CANCELLED01"}, nil)

	uc := usecase.NewPaymentUsecase(store, providersWith(model.ProviderEcoCash, provider), "123456", nil)

	in := ecoCashInput()
	in.OrderID = ""
	_, err := uc.Initiate(ctx, in)
	require.NoError(t, err)

	_, err = store.Repos().PaymentAttempts().FindByReference(context.Background(), "ECO-CANCELLED01")
	assert.NoError(t, err)
}
