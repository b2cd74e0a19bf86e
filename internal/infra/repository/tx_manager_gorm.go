package repository

import (
	"context"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	attempts   repo.PaymentAttemptRepository
	auditLogs  repo.AuditLogRepository
	products   repo.ProductRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                   { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *txReposGorm) PaymentAttempts() repo.PaymentAttemptRepository { return r.attempts }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }
func (r *txReposGorm) Products() repo.ProductRepository               { return r.products }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:     NewOrderGormRepository(tx),
			orderItems: NewOrderItemGormRepository(tx),
			attempts:   NewPaymentAttemptGormRepository(tx),
			auditLogs:  NewAuditLogGormRepository(tx),
			products:   NewProductGormRepository(tx),
		}
		return fn(r)
	})
}
