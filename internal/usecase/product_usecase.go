package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// カタログ本体は外部。ここはチェックアウトの価格計算に使う写しを管理するだけ。
type ProductUsecase struct {
	tx  repo.TransactionManager
	log *slog.Logger
}

// DI
func NewProductUsecase(tx repo.TransactionManager, log *slog.Logger) *ProductUsecase {
	return &ProductUsecase{tx: tx, log: log}
}

type AdminUpsertProductInput struct {
	Name     string
	Price    decimal.Decimal
	IsActive bool
}

type ProductOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	IsActive bool   `json:"isActive"`
}

func (u *ProductUsecase) AdminUpsertProduct(ctx context.Context, id string, in AdminUpsertProductInput) (ProductOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 64 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 255 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid name")
	}
	if in.Price.IsNegative() {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid price")
	}

	now := time.Now()
	p := model.Product{
		ID:        id,
		Name:      name,
		Price:     in.Price.Round(2),
		IsActive:  in.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Products().Upsert(ctx, p); err != nil {
			return dbError(u.log, "product upsert failed", err, "product", p.ID)
		}
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return toProductOutput(p), nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, id string) (ProductOutput, error) {
	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, strings.TrimSpace(id))
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return dbError(u.log, "product lookup failed", err, "product", id)
		}
		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.StringFixed(2),
		IsActive: p.IsActive,
	}
}
