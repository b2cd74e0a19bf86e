package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var (
	ErrNotFound = errors.New("not found")
	//一意制約違反（同じキーが同時に入った等）
	ErrConflict = errors.New("conflict")
)

// カタログ本体は外部。チェックアウトで価格を引くためだけに使う。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
	Upsert(ctx context.Context, p model.Product) error
}
