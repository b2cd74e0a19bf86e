package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 配送側のステータス（管理者が更新する）
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 支払い側のステータス（webhookで進む）
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPendingCollection PaymentStatus = "pending_collection"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodNow        PaymentMethod = "now"
	PaymentMethodOnDelivery PaymentMethod = "on_delivery"
)

type PaymentProvider string

const (
	ProviderEcoCash PaymentProvider = "ecocash"
	ProviderPaynow  PaymentProvider = "paynow"
	ProviderZB      PaymentProvider = "zb"
)

// 対応しているプロバイダ一覧
var PaymentProviders = []PaymentProvider{ProviderEcoCash, ProviderPaynow, ProviderZB}

func ParsePaymentProvider(s string) (PaymentProvider, bool) {
	for _, p := range PaymentProviders {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

type DeliveryMethod string

const (
	DeliveryMethodDelivery   DeliveryMethod = "delivery"
	DeliveryMethodCollection DeliveryMethod = "collection"
)

type Customer struct {
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Phone   string `gorm:"type:varchar(32);not null" json:"phone"`
	Email   string `gorm:"type:varchar(255)" json:"email,omitempty"`
	Address string `gorm:"type:text" json:"address,omitempty"`
}

type OrderPayment struct {
	Method            PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Provider          PaymentProvider `gorm:"type:varchar(20)" json:"provider,omitempty"`
	Status            PaymentStatus   `gorm:"type:varchar(30);not null;index" json:"status"`
	ProviderReference string          `gorm:"type:varchar(128)" json:"providerReference,omitempty"`
	MerchantCode      string          `gorm:"type:varchar(64)" json:"merchantCode,omitempty"`
}

// Reference が主キーで、以後の更新すべての冪等キーになる。
type Order struct {
	Reference      string          `gorm:"primaryKey;type:varchar(64)" json:"reference"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Currency       string          `gorm:"type:varchar(8);not null" json:"currency"`
	DeliveryMethod DeliveryMethod  `gorm:"type:varchar(20);not null" json:"deliveryMethod"`
	DeliveryFee    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"deliveryFee"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Customer       Customer        `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Payment        OrderPayment    `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	CheckoutKey    *string         `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	CreatedAt      time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updatedAt"`
}

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// 終端（delivered / cancelled）からは動かない
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

var forwardOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

// CanAdvance は前進のみを許す厳格モードの遷移表。
func (s OrderStatus) CanAdvance(to OrderStatus) bool {
	for _, next := range forwardOrderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// 支払いは pending からしか動かない
func (s PaymentStatus) IsFinal() bool {
	return s != PaymentStatusPending
}
