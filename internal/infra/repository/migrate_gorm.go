package repository

import (
	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

// AutoMigrate は起動時にテーブルを揃える。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentAttempt{},
		&model.AuditLog{},
	)
}
