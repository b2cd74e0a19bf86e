package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt model.PaymentAttempt) error
	FindByReference(ctx context.Context, reference string) (model.PaymentAttempt, error)

	//同じプロバイダ＋キーなら既存の試行を返す
	FindByIdempotencyKey(ctx context.Context, provider model.PaymentProvider, key string) (model.PaymentAttempt, bool, error)

	//条件付き更新：現在が from のときだけ to にする。変わったら true。
	TransitionStatus(ctx context.Context, reference string, from, to model.AttemptStatus, at time.Time) (bool, error)
}
