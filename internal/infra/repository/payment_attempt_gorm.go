package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type PaymentAttemptGormRepository struct {
	db *gorm.DB
}

func NewPaymentAttemptGormRepository(db *gorm.DB) *PaymentAttemptGormRepository {
	return &PaymentAttemptGormRepository{db: db}
}

func (r *PaymentAttemptGormRepository) Create(ctx context.Context, attempt model.PaymentAttempt) error {
	return mapGormError(r.db.WithContext(ctx).Create(&attempt).Error)
}

func (r *PaymentAttemptGormRepository) FindByReference(ctx context.Context, reference string) (model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&a).Error; err != nil {
		return model.PaymentAttempt{}, mapGormError(err)
	}
	return a, nil
}

func (r *PaymentAttemptGormRepository) FindByIdempotencyKey(ctx context.Context, provider model.PaymentProvider, key string) (model.PaymentAttempt, bool, error) {
	var a model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("provider = ? AND idempotency_key = ?", provider, key).
		First(&a).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentAttempt{}, false, nil
	}
	if err != nil {
		return model.PaymentAttempt{}, false, err
	}
	return a, true, nil
}

func (r *PaymentAttemptGormRepository) TransitionStatus(ctx context.Context, reference string, from, to model.AttemptStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("reference = ? AND status = ?", reference, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
