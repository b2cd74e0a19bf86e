package repository

import (
	"context"
	"unicode/utf8"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

// 遷移と同じTxで書く。失敗したら遷移ごとロールバックされる
func (r *auditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = 0
	return mapGormError(r.db.WithContext(ctx).Create(&log).Error)
}

func (r *auditLogGormRepository) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditLog{})

	if prefix, ok := filter.ActorPrefix(); ok {
		// LIKE だと % _ のエスケープが要るので left() で比べる
		q = q.Where("left(actor, ?) = ?", utf8.RuneCountInString(prefix), prefix)
	} else if filter.Actor != "" {
		q = q.Where("actor = ?", filter.Actor)
	}
	if filter.Action != nil {
		q = q.Where("action = ?", string(*filter.Action))
	}
	if filter.ResourceType != nil {
		q = q.Where("resource_type = ?", string(*filter.ResourceType))
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}

	limit, offset := filter.Page()

	logs := []model.AuditLog{}
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return logs, nil
}
