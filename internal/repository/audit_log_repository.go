package repository

import (
	"context"
	"strings"
	"time"

	"storefront/internal/domain/model"
)

// AuditLogFilter の Actor は完全一致。末尾が ":" なら種別の前方一致（"webhook:" で全プロバイダ）。
type AuditLogFilter struct {
	Actor        string
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// ActorPrefix は前方一致のときだけ prefix, true
func (f AuditLogFilter) ActorPrefix() (string, bool) {
	if strings.HasSuffix(f.Actor, ":") {
		return f.Actor, true
	}
	return "", false
}

func (f AuditLogFilter) MatchActor(actor string) bool {
	if f.Actor == "" {
		return true
	}
	if prefix, ok := f.ActorPrefix(); ok {
		return strings.HasPrefix(actor, prefix)
	}
	return actor == f.Actor
}

// Page は limit(1..200, 既定50) と offset(>=0) に丸めた値
func (f AuditLogFilter) Page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// 状態遷移の記録。追記のみで更新・削除はしない。
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error

	// 新しい順
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
