package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "pending"
	AttemptStatusConfirmed AttemptStatus = "confirmed"
	AttemptStatusRejected  AttemptStatus = "rejected"
)

// プロバイダに見せる支払い試行。Reference は注文の Reference とは別物（ECO-xxxx など）。
type PaymentAttempt struct {
	Reference         string          `gorm:"primaryKey;type:varchar(64)" json:"reference"`
	Provider          PaymentProvider `gorm:"type:varchar(20);not null;uniqueIndex:idx_attempt_idem" json:"provider"`
	OrderReference    string          `gorm:"type:varchar(64);index" json:"orderReference,omitempty"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(8);not null" json:"currency"`
	PayerHandle       string          `gorm:"type:varchar(255);not null" json:"payerHandle"`
	MetadataJSON      string          `gorm:"type:text" json:"-"`
	Status            AttemptStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	MerchantCode      string          `gorm:"type:varchar(64)" json:"merchantCode,omitempty"`
	RedirectURL       string          `gorm:"type:text" json:"redirectUrl,omitempty"`
	Instructions      string          `gorm:"type:text" json:"instructions,omitempty"`
	ProviderReference string          `gorm:"type:varchar(128)" json:"providerReference,omitempty"`
	IdempotencyKey    *string         `gorm:"type:varchar(255);uniqueIndex:idx_attempt_idem" json:"-"`
	CreatedAt         time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updatedAt"`
}
