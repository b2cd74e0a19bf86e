package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdminOrderUsecase struct {
	tx repo.TransactionManager
	// true なら配送ステータスは前進のみ
	strict bool
	log    *slog.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, strict bool, log *slog.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, strict: strict, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

type AdminOrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}
	switch model.PaymentStatus(f.PaymentStatus) {
	case "", model.PaymentStatusPending, model.PaymentStatusPendingCollection, model.PaymentStatusPaid, model.PaymentStatusFailed:
	default:
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment status")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid period")
	}

	out := AdminOrderListOutput{Items: []OrderOutput{}, Page: f.Page, Limit: f.Limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return dbError(u.log, "admin order list failed", err)
		}
		out.Total = total

		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderReference(ctx, o.Reference)
			if err != nil {
				return dbError(u.log, "order items lookup failed", err, "reference", o.Reference)
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return out, nil
}

// UpdateStatus は配送ステータスの更新。支払いステータスには触らない。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorSub string, reference string, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	actorSub = strings.TrimSpace(actorSub)
	if actorSub == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid reference")
	}

	newStatus, ok := model.ParseOrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByReference(ctx, reference)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return dbError(u.log, "order lookup failed", err, "reference", reference)
		}

		items, err := r.OrderItems().ListByOrderReference(ctx, reference)
		if err != nil {
			return dbError(u.log, "order items lookup failed", err, "reference", reference)
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			out = toOrderOutput(o, items)
			return nil
		}
		if u.strict && !o.Status.CanAdvance(newStatus) {
			return NewHTTPError(http.StatusConflict, "cannot change status from "+string(o.Status)+" to "+string(newStatus))
		}

		// ステータス更新
		beforeStatus := o.Status
		now := time.Now()
		if err := r.Orders().UpdateStatus(ctx, reference, newStatus, now); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return dbError(u.log, "order status update failed", err, "reference", reference)
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON, _ := json.Marshal(statusSnapshot{Status: string(beforeStatus)})
		afterJSON, _ := json.Marshal(statusSnapshot{Status: string(newStatus)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        model.AdminActor(actorSub),
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   reference,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    now,
		}); err != nil {
			return dbError(u.log, "audit log create failed", err, "reference", reference)
		}

		o.Status = newStatus
		o.UpdatedAt = now
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type AuditLogListInput struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// 監査ログ一覧（新しい順）
func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, in AuditLogListInput) ([]model.AuditLog, error) {
	if in.Limit < 1 || in.Limit > 200 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Offset < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	f := repo.AuditLogFilter{
		Actor:       strings.TrimSpace(in.Actor),
		ResourceID:  strings.TrimSpace(in.ResourceID),
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if a := strings.TrimSpace(in.Action); a != "" {
		action := model.AuditAction(strings.ToUpper(a))
		switch action {
		case model.AuditActionUpdateOrderStatus, model.AuditActionUpdatePaymentStatus, model.AuditActionUpdateAttemptStatus:
			f.Action = &action
		default:
			return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid action")
		}
	}
	if rt := strings.TrimSpace(in.ResourceType); rt != "" {
		resType := model.AuditResourceType(strings.ToLower(rt))
		switch resType {
		case model.AuditResourceOrder, model.AuditResourcePaymentAttempt:
			f.ResourceType = &resType
		default:
			return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid resource type")
		}
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return dbError(u.log, "audit log list failed", err)
		}
		return nil
	})
	if err != nil {
		return []model.AuditLog{}, err
	}
	return logs, nil
}

// 期間パラメータでtime.Timeが必要なら、handlerでtime.Parseしてここに入れる
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
