package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByReference(ctx context.Context, reference string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&o).Error
	if err != nil {
		return model.Order{}, mapGormError(err)
	}
	return o, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) error {
	return mapGormError(r.db.WithContext(ctx).Create(&order).Error)
}

func (r *OrderGormRepository) FindByCheckoutKey(ctx context.Context, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("checkout_key = ?", key).First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, reference string, status model.OrderStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ?", reference).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": at,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// UPDATE ... WHERE payment_status = from の1文で判定する（読んでから書かない）
func (r *OrderGormRepository) TransitionPaymentStatus(ctx context.Context, reference string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND payment_status = ?", reference, from).
		Updates(map[string]interface{}{
			"payment_status": to,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) AttachPayment(ctx context.Context, reference string, provider model.PaymentProvider, providerRef, merchantCode string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND payment_status = ?", reference, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_provider":           provider,
			"payment_provider_reference": providerRef,
			"payment_merchant_code":      merchantCode,
			"updated_at":                 at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}
