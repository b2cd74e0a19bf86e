package mongostore

import (
	"time"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// decimal.Decimal は bson に直接載らないので金額は文字列で持つ。

type orderDoc struct {
	Reference      string               `bson:"_id"`
	Status         model.OrderStatus    `bson:"status"`
	Currency       string               `bson:"currency"`
	DeliveryMethod model.DeliveryMethod `bson:"delivery_method"`
	DeliveryFee    string               `bson:"delivery_fee"`
	Total          string               `bson:"total"`
	Customer       customerDoc          `bson:"customer"`
	Payment        paymentDoc           `bson:"payment"`
	CheckoutKey    *string              `bson:"checkout_key,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

type customerDoc struct {
	Name    string `bson:"name"`
	Phone   string `bson:"phone"`
	Email   string `bson:"email,omitempty"`
	Address string `bson:"address,omitempty"`
}

type paymentDoc struct {
	Method            model.PaymentMethod   `bson:"method"`
	Provider          model.PaymentProvider `bson:"provider,omitempty"`
	Status            model.PaymentStatus   `bson:"status"`
	ProviderReference string                `bson:"provider_reference,omitempty"`
	MerchantCode      string                `bson:"merchant_code,omitempty"`
}

func toOrderDoc(o model.Order) orderDoc {
	return orderDoc{
		Reference:      o.Reference,
		Status:         o.Status,
		Currency:       o.Currency,
		DeliveryMethod: o.DeliveryMethod,
		DeliveryFee:    o.DeliveryFee.String(),
		Total:          o.Total.String(),
		Customer: customerDoc{
			Name:    o.Customer.Name,
			Phone:   o.Customer.Phone,
			Email:   o.Customer.Email,
			Address: o.Customer.Address,
		},
		Payment: paymentDoc{
			Method:            o.Payment.Method,
			Provider:          o.Payment.Provider,
			Status:            o.Payment.Status,
			ProviderReference: o.Payment.ProviderReference,
			MerchantCode:      o.Payment.MerchantCode,
		},
		CheckoutKey: o.CheckoutKey,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (d orderDoc) toModel() model.Order {
	return model.Order{
		Reference:      d.Reference,
		Status:         d.Status,
		Currency:       d.Currency,
		DeliveryMethod: d.DeliveryMethod,
		DeliveryFee:    parseAmount(d.DeliveryFee),
		Total:          parseAmount(d.Total),
		Customer: model.Customer{
			Name:    d.Customer.Name,
			Phone:   d.Customer.Phone,
			Email:   d.Customer.Email,
			Address: d.Customer.Address,
		},
		Payment: model.OrderPayment{
			Method:            d.Payment.Method,
			Provider:          d.Payment.Provider,
			Status:            d.Payment.Status,
			ProviderReference: d.Payment.ProviderReference,
			MerchantCode:      d.Payment.MerchantCode,
		},
		CheckoutKey: d.CheckoutKey,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type orderItemDoc struct {
	OrderReference string    `bson:"order_reference"`
	Position       int64     `bson:"position"`
	ProductID      string    `bson:"product_id"`
	Name           string    `bson:"name"`
	UnitPrice      string    `bson:"unit_price"`
	Quantity       int64     `bson:"quantity"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d orderItemDoc) toModel() model.OrderItem {
	return model.OrderItem{
		ID:                  d.Position,
		OrderReference:      d.OrderReference,
		ProductID:           d.ProductID,
		ProductNameSnapshot: d.Name,
		UnitPriceSnapshot:   parseAmount(d.UnitPrice),
		Quantity:            d.Quantity,
		CreatedAt:           d.CreatedAt,
	}
}

type attemptDoc struct {
	Reference         string                `bson:"_id"`
	Provider          model.PaymentProvider `bson:"provider"`
	OrderReference    string                `bson:"order_reference,omitempty"`
	Amount            string                `bson:"amount"`
	Currency          string                `bson:"currency"`
	PayerHandle       string                `bson:"payer_handle"`
	MetadataJSON      string                `bson:"metadata_json,omitempty"`
	Status            model.AttemptStatus   `bson:"status"`
	MerchantCode      string                `bson:"merchant_code,omitempty"`
	RedirectURL       string                `bson:"redirect_url,omitempty"`
	Instructions      string                `bson:"instructions,omitempty"`
	ProviderReference string                `bson:"provider_reference,omitempty"`
	IdempotencyKey    *string               `bson:"idempotency_key,omitempty"`
	CreatedAt         time.Time             `bson:"created_at"`
	UpdatedAt         time.Time             `bson:"updated_at"`
}

func toAttemptDoc(a model.PaymentAttempt) attemptDoc {
	return attemptDoc{
		Reference:         a.Reference,
		Provider:          a.Provider,
		OrderReference:    a.OrderReference,
		Amount:            a.Amount.String(),
		Currency:          a.Currency,
		PayerHandle:       a.PayerHandle,
		MetadataJSON:      a.MetadataJSON,
		Status:            a.Status,
		MerchantCode:      a.MerchantCode,
		RedirectURL:       a.RedirectURL,
		Instructions:      a.Instructions,
		ProviderReference: a.ProviderReference,
		IdempotencyKey:    a.IdempotencyKey,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (d attemptDoc) toModel() model.PaymentAttempt {
	return model.PaymentAttempt{
		Reference:         d.Reference,
		Provider:          d.Provider,
		OrderReference:    d.OrderReference,
		Amount:            parseAmount(d.Amount),
		Currency:          d.Currency,
		PayerHandle:       d.PayerHandle,
		MetadataJSON:      d.MetadataJSON,
		Status:            d.Status,
		MerchantCode:      d.MerchantCode,
		RedirectURL:       d.RedirectURL,
		Instructions:      d.Instructions,
		ProviderReference: d.ProviderReference,
		IdempotencyKey:    d.IdempotencyKey,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type auditLogDoc struct {
	Actor        string                  `bson:"actor"`
	Action       model.AuditAction       `bson:"action"`
	ResourceType model.AuditResourceType `bson:"resource_type"`
	ResourceID   string                  `bson:"resource_id"`
	BeforeJSON   string                  `bson:"before_json"`
	AfterJSON    string                  `bson:"after_json"`
	CreatedAt    time.Time               `bson:"created_at"`
}

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Price     string    `bson:"price"`
	IsActive  bool      `bson:"is_active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
