package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	From          *time.Time
	To            *time.Time
}

type OrderRepository interface {
	FindByReference(ctx context.Context, reference string) (model.Order, error)
	Create(ctx context.Context, order model.Order) error

	//検索（同じキーなら同じ結果を返す）
	FindByCheckoutKey(ctx context.Context, key string) (model.Order, bool, error)

	//管理者による配送ステータス更新
	UpdateStatus(ctx context.Context, reference string, status model.OrderStatus, at time.Time) error

	//条件付き更新：現在が from のときだけ to にする。変わったら true。
	TransitionPaymentStatus(ctx context.Context, reference string, from, to model.PaymentStatus, at time.Time) (bool, error)

	//支払いが pending の間だけプロバイダ側の情報を紐付ける
	AttachPayment(ctx context.Context, reference string, provider model.PaymentProvider, providerRef, merchantCode string, at time.Time) (bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
