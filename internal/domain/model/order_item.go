package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderReference      string          `gorm:"type:varchar(64);not null;index" json:"-"`
	ProductID           string          `gorm:"type:varchar(64);not null;index" json:"productId"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unitPrice"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	CreatedAt           time.Time       `gorm:"not null" json:"-"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity))
}
