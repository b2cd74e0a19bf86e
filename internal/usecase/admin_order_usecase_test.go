package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memstore"
	"storefront/internal/logging"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// List tests
// =====================

func TestAdminOrderUsecase_List_InvalidPage(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	out, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assert.Equal(t, 0, len(out.Items))
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrderUsecase_List_InvalidLimit(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	out, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 0})
	assert.Equal(t, 0, len(out.Items))
	assertErrContains(t, err, "invalid limit")
}

func TestAdminOrderUsecase_List_InvalidStatusFilters(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	_, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "lost"})
	assertErrContains(t, err, "invalid status")

	_, err = uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 20, PaymentStatus: "refunded"})
	assertErrContains(t, err, "invalid payment status")

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err = uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 20, From: &from, To: &to})
	assertErrContains(t, err, "invalid period")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestAdminOrderUsecase_List_Success_CallsItemsPerOrder(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)

	tx.Repos = &TxReposMock{
		orders:     ordersRepo,
		orderItems: itemsRepo,
	}
	tx.On("WithinTx", mock.Anything).Return(nil)

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20, PaymentStatus: "paid"}

	orders := []model.Order{
		{Reference: "ORD-000000000010", Status: model.OrderStatusPending, Total: decimal.NewFromInt(10)},
		{Reference: "ORD-000000000011", Status: model.OrderStatusShipped, Total: decimal.NewFromInt(11)},
	}

	ordersRepo.On("ListAdmin", mock.Anything, f).Return(orders, int64(42), nil)
	itemsRepo.On("ListByOrderReference", mock.Anything, "ORD-000000000010").Return([]model.OrderItem{}, nil)
	itemsRepo.On("ListByOrderReference", mock.Anything, "ORD-000000000011").Return([]model.OrderItem{}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	out, err := uc.List(ctx, f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(out.Items))
	assert.Equal(t, int64(42), out.Total)
	assert.Equal(t, "11.00", out.Items[1].Total)

	tx.AssertExpectations(t)
	ordersRepo.AssertExpectations(t)
	itemsRepo.AssertExpectations(t)
}

func TestAdminOrderUsecase_List_DBError(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20}
	ordersRepo.On("ListAdmin", mock.Anything, f).Return(nil, int64(0), errors.New("connection reset"))

	var buf bytes.Buffer
	uc := usecase.NewAdminOrderUsecase(tx, false, logging.NewWithWriter(&buf, "info"))
	_, err := uc.List(context.Background(), f)
	assertErrContains(t, err, "db error")

	// 原因はレスポンスではなくログに出る
	assert.NotContains(t, err.Error(), "connection reset")
	assert.Contains(t, buf.String(), "admin order list failed")
	assert.Contains(t, buf.String(), "connection reset")
}

// =====================
// UpdateStatus tests
// =====================

func TestAdminOrderUsecase_UpdateStatus_UnauthorizedActor(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	_, err := uc.UpdateStatus(context.Background(), "", "ORD-000000000001", usecase.AdminUpdateOrderStatusInput{Status: "shipped"})
	assertErrContains(t, err, "unauthorized")
}

func TestAdminOrderUsecase_UpdateStatus_InvalidReference(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	_, err := uc.UpdateStatus(context.Background(), "admin-1", " ", usecase.AdminUpdateOrderStatusInput{Status: "shipped"})
	assertErrContains(t, err, "invalid reference")
}

func TestAdminOrderUsecase_UpdateStatus_InvalidStatus(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	// 支払いステータスはここでは設定できない
	for _, s := range []string{"XXX", "paid", ""} {
		_, err := uc.UpdateStatus(context.Background(), "admin-1", "ORD-000000000001", usecase.AdminUpdateOrderStatusInput{Status: s})
		assertErrContains(t, err, "invalid status")
	}
}

func TestAdminOrderUsecase_UpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByReference", mock.Anything, "ORD-000000000099").Return(model.Order{}, repo.ErrNotFound)

	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	_, err := uc.UpdateStatus(ctx, "admin-1", "ORD-000000000099", usecase.AdminUpdateOrderStatusInput{Status: "shipped"})
	assertErrContains(t, err, "not found")

	ordersRepo.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_SameStatus_NoOp(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	audit := new(AuditRepoMock)
	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ref := "ORD-000000000001"
	ordersRepo.On("FindByReference", mock.Anything, ref).Return(model.Order{
		Reference: ref,
		Status:    model.OrderStatusShipped,
	}, nil)
	itemsRepo.On("ListByOrderReference", mock.Anything, ref).Return([]model.OrderItem{}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	out, err := uc.UpdateStatus(ctx, "admin-1", ref, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assert.NoError(t, err)
	assert.Equal(t, "shipped", out.Status)

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 既定では管理者は後戻りもできる
func TestAdminOrderUsecase_UpdateStatus_PermissiveAllowsBackward_And_Audits(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	audit := new(AuditRepoMock)
	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ref := "ORD-000000000050"
	ordersRepo.On("FindByReference", mock.Anything, ref).Return(model.Order{
		Reference: ref,
		Status:    model.OrderStatusDelivered,
		Payment:   model.OrderPayment{Method: model.PaymentMethodNow, Status: model.PaymentStatusPaid},
	}, nil)
	itemsRepo.On("ListByOrderReference", mock.Anything, ref).Return([]model.OrderItem{}, nil)
	ordersRepo.On("UpdateStatus", mock.Anything, ref, model.OrderStatusProcessing).Return(nil)

	audit.On("Create", mock.Anything, mock.MatchedBy(func(a model.AuditLog) bool {
		// CreatedAt は now なので見ない
		return a.Actor == "admin:admin-7" &&
			a.Action == model.AuditActionUpdateOrderStatus &&
			a.ResourceType == model.AuditResourceOrder &&
			a.ResourceID == ref &&
			a.BeforeJSON == `{"status":"delivered"}` &&
			a.AfterJSON == `{"status":"processing"}`
	})).Return(nil)

	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	out, err := uc.UpdateStatus(ctx, "admin-7", ref, usecase.AdminUpdateOrderStatusInput{Status: "processing"})
	assert.NoError(t, err)
	assert.Equal(t, "processing", out.Status)
	// 支払いステータスは変えない
	assert.Equal(t, "paid", out.Payment.Status)

	ordersRepo.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_StrictRejectsBackward(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	audit := new(AuditRepoMock)
	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ref := "ORD-000000000051"
	ordersRepo.On("FindByReference", mock.Anything, ref).Return(model.Order{Reference: ref, Status: model.OrderStatusShipped}, nil)
	itemsRepo.On("ListByOrderReference", mock.Anything, ref).Return([]model.OrderItem{}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, true, nil)

	_, err := uc.UpdateStatus(ctx, "admin-1", ref, usecase.AdminUpdateOrderStatusInput{Status: "pending"})
	requireStatus(t, err, 409)
	assertErrContains(t, err, "cannot change status from shipped to pending")

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_StrictForwardPath(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedPendingOrder(t, store, "ORD-0000000000F1", model.ProviderZB, "10")

	uc := usecase.NewAdminOrderUsecase(store, true, nil)

	for _, s := range []string{"processing", "shipped", "delivered"} {
		out, err := uc.UpdateStatus(ctx, "admin-1", "ORD-0000000000F1", usecase.AdminUpdateOrderStatusInput{Status: s})
		require.NoError(t, err)
		assert.Equal(t, s, out.Status)
	}

	// 終端からは動かない
	_, err := uc.UpdateStatus(ctx, "admin-1", "ORD-0000000000F1", usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	requireStatus(t, err, 409)

	logs, err := uc.ListAuditLogs(ctx, usecase.AuditLogListInput{ResourceID: "ORD-0000000000F1", Action: "update_order_status", Limit: 50})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	// 新しい順
	assert.JSONEq(t, `{"status":"delivered"}`, logs[0].AfterJSON)
	assert.Equal(t, "admin:admin-1", logs[0].Actor)
}

// =====================
// ListAuditLogs tests
// =====================

func TestAdminOrderUsecase_ListAuditLogs_Validation(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, false, nil)

	_, err := uc.ListAuditLogs(context.Background(), usecase.AuditLogListInput{Limit: 0})
	assertErrContains(t, err, "invalid limit")

	_, err = uc.ListAuditLogs(context.Background(), usecase.AuditLogListInput{Limit: 10, Offset: -1})
	assertErrContains(t, err, "invalid offset")

	_, err = uc.ListAuditLogs(context.Background(), usecase.AuditLogListInput{Limit: 10, Action: "DELETE_ORDER"})
	assertErrContains(t, err, "invalid action")

	_, err = uc.ListAuditLogs(context.Background(), usecase.AuditLogListInput{Limit: 10, ResourceType: "user"})
	assertErrContains(t, err, "invalid resource type")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestAdminOrderUsecase_ListAuditLogs_PassesFilter(t *testing.T) {
	tx := new(TxManagerMock)
	audit := new(AuditRepoMock)
	tx.Repos = &TxReposMock{auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	audit.On("List", mock.Anything, mock.MatchedBy(func(f repo.AuditLogFilter) bool {
		return f.Actor == "webhook:zb" &&
			f.ResourceType != nil && *f.ResourceType == model.AuditResourcePaymentAttempt &&
			f.Action == nil &&
			f.Limit == 20 && f.Offset == 40
	})).Return([]model.AuditLog{{ID: 1, Actor: "webhook:zb"}}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, false, nil)
	logs, err := uc.ListAuditLogs(context.Background(), usecase.AuditLogListInput{
		Actor:        "webhook:zb",
		ResourceType: "payment_attempt",
		Limit:        20,
		Offset:       40,
	})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	audit.AssertExpectations(t)
}
