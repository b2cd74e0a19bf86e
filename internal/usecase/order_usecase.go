package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxCheckoutLines = 100

type OrderUsecase struct {
	tx          repo.TransactionManager
	deliveryFee decimal.Decimal
	log         *slog.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, deliveryFee decimal.Decimal, log *slog.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, deliveryFee: deliveryFee, log: log}
}

type CheckoutItemInput struct {
	ProductID string
	Quantity  int64
}

type PlaceOrderInput struct {
	Items          []CheckoutItemInput
	Customer       model.Customer
	DeliveryMethod string
	PaymentMethod  string
	Provider       string
	Currency       string
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
}

type OrderPaymentOutput struct {
	Method            string `json:"method"`
	Provider          string `json:"provider,omitempty"`
	Status            string `json:"status"`
	ProviderReference string `json:"providerReference,omitempty"`
	MerchantCode      string `json:"merchantCode,omitempty"`
}

type OrderOutput struct {
	Reference      string             `json:"reference"`
	Status         string             `json:"status"`
	Currency       string             `json:"currency"`
	DeliveryMethod string             `json:"deliveryMethod"`
	DeliveryFee    string             `json:"deliveryFee"`
	Total          string             `json:"total"`
	Customer       model.Customer     `json:"customer"`
	Payment        OrderPaymentOutput `json:"payment"`
	Items          []OrderItemOutput  `json:"items"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// NewOrderReference は ORD-XXXXXXXXXXXX 形式。作成後は変わらない。
func NewOrderReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}

// PlaceOrder はチェックアウト。価格はカタログから引き直し、クライアントの合計は信用しない。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (OrderOutput, error) {
	if len(in.Items) == 0 {
		return OrderOutput{}, ValidationError("cart is empty")
	}
	if len(in.Items) > maxCheckoutLines {
		return OrderOutput{}, ValidationError("too many items")
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return OrderOutput{}, ValidationError("productId is required")
		}
		if it.Quantity < 1 {
			return OrderOutput{}, ValidationError("quantity must be at least 1")
		}
	}

	customer := model.Customer{
		Name:    strings.TrimSpace(in.Customer.Name),
		Phone:   strings.TrimSpace(in.Customer.Phone),
		Email:   strings.TrimSpace(in.Customer.Email),
		Address: strings.TrimSpace(in.Customer.Address),
	}
	if customer.Name == "" || customer.Phone == "" {
		return OrderOutput{}, ValidationError("name and phone are required")
	}

	delivery := model.DeliveryMethod(strings.TrimSpace(in.DeliveryMethod))
	if delivery == "" {
		delivery = model.DeliveryMethodDelivery
	}
	switch delivery {
	case model.DeliveryMethodDelivery:
		if customer.Address == "" {
			return OrderOutput{}, ValidationError("a delivery address is required")
		}
	case model.DeliveryMethodCollection:
	default:
		return OrderOutput{}, ValidationError("invalid delivery method")
	}

	method := model.PaymentMethod(strings.TrimSpace(in.PaymentMethod))
	payment := model.OrderPayment{Method: method}
	switch method {
	case model.PaymentMethodNow:
		p, ok := model.ParsePaymentProvider(strings.ToLower(strings.TrimSpace(in.Provider)))
		if !ok {
			return OrderOutput{}, ValidationError("a supported payment provider is required")
		}
		payment.Provider = p
		payment.Status = model.PaymentStatusPending
	case model.PaymentMethodOnDelivery:
		payment.Status = model.PaymentStatusPendingCollection
	default:
		return OrderOutput{}, ValidationError("invalid payment method")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, ValidationError("invalid idempotency key")
	}

	var out OrderOutput

	//注文処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByCheckoutKey(ctx, key)
			if err != nil {
				return dbError(u.log, "checkout key lookup failed", err, "key", key)
			}
			if found {
				items, err := r.OrderItems().ListByOrderReference(ctx, existing.Reference)
				if err != nil {
					return dbError(u.log, "order items lookup failed", err, "reference", existing.Reference)
				}
				out = toOrderOutput(existing, items)
				return nil
			}
		}

		now := time.Now()
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		subtotal := decimal.Zero

		for _, it := range in.Items {
			p, err := r.Products().FindByID(ctx, strings.TrimSpace(it.ProductID))
			if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
				return ValidationError("product is not available: " + it.ProductID)
			}
			if err != nil {
				return dbError(u.log, "product lookup failed", err, "product", it.ProductID)
			}

			//スナップショット
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            it.Quantity,
				CreatedAt:           now,
			})
			subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(it.Quantity)))
		}

		fee := decimal.Zero
		if delivery == model.DeliveryMethodDelivery {
			fee = u.deliveryFee
		}
		total := subtotal.Add(fee)
		if !total.IsPositive() {
			return ValidationError("order total must be greater than zero")
		}

		order := model.Order{
			Reference:      NewOrderReference(),
			Status:         model.OrderStatusPending,
			Currency:       currency,
			DeliveryMethod: delivery,
			DeliveryFee:    fee,
			Total:          total,
			Customer:       customer,
			Payment:        payment,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if key != "" {
			order.CheckoutKey = &key
		}

		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ConflictError("checkout already in progress")
			}
			return dbError(u.log, "order create failed", err, "reference", order.Reference)
		}
		if err := r.OrderItems().CreateBulk(ctx, order.Reference, orderItems); err != nil {
			return dbError(u.log, "order items create failed", err, "reference", order.Reference)
		}

		out = toOrderOutput(order, orderItems)
		return nil
	})

	//同じキーが同時に来た場合は先に入った注文を返す
	if he, ok := AsHTTPError(err); ok && he.Status == http.StatusConflict && key != "" {
		if replay, rerr := u.findByCheckoutKey(ctx, key); rerr == nil {
			return replay, nil
		}
	}
	if err != nil {
		return OrderOutput{}, err
	}

	if u.log != nil {
		u.log.Info("order created",
			"reference", out.Reference,
			"total", out.Total,
			"payment_method", out.Payment.Method,
			"provider", out.Payment.Provider,
		)
	}
	return out, nil
}

func (u *OrderUsecase) findByCheckoutKey(ctx context.Context, key string) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, found, err := r.Orders().FindByCheckoutKey(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return repo.ErrNotFound
		}
		items, err := r.OrderItems().ListByOrderReference(ctx, o.Reference)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items)
		return nil
	})
	return out, err
}

// GetOrder は参照番号で注文（支払い状況を含む）を返す。
func (u *OrderUsecase) GetOrder(ctx context.Context, reference string) (OrderOutput, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return OrderOutput{}, ValidationError("invalid reference")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByReference(ctx, reference)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("order not found")
		}
		if err != nil {
			return dbError(u.log, "order lookup failed", err, "reference", reference)
		}

		items, err := r.OrderItems().ListByOrderReference(ctx, reference)
		if err != nil {
			return dbError(u.log, "order items lookup failed", err, "reference", reference)
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			UnitPrice: it.UnitPriceSnapshot.StringFixed(2),
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		Reference:      o.Reference,
		Status:         string(o.Status),
		Currency:       o.Currency,
		DeliveryMethod: string(o.DeliveryMethod),
		DeliveryFee:    o.DeliveryFee.StringFixed(2),
		Total:          o.Total.StringFixed(2),
		Customer:       o.Customer,
		Payment: OrderPaymentOutput{
			Method:            string(o.Payment.Method),
			Provider:          string(o.Payment.Provider),
			Status:            string(o.Payment.Status),
			ProviderReference: o.Payment.ProviderReference,
			MerchantCode:      o.Payment.MerchantCode,
		},
		Items:     outItems,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
