package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderReference string, items []model.OrderItem) error
	ListByOrderReference(ctx context.Context, orderReference string) ([]model.OrderItem, error)
}
