package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// チェックアウト時の価格はここから引く（クライアントの価格は信用しない）
type Product struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	IsActive  bool            `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
