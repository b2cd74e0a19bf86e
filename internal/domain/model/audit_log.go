package model

import "time"

// 注文ステータス更新、支払いステータス更新など。
type AuditAction string

const (
	//管理者が配送ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//webhookで支払いステータスが進んだ操作。
	AuditActionUpdatePaymentStatus AuditAction = "UPDATE_PAYMENT_STATUS"
	//webhookで支払い試行のステータスが進んだ操作。
	AuditActionUpdateAttemptStatus AuditAction = "UPDATE_ATTEMPT_STATUS"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder          AuditResourceType = "order"
	AuditResourcePaymentAttempt AuditResourceType = "payment_attempt"
)

// 監査ログ。
// 「誰が（管理者 or どのプロバイダのwebhook）」「何を」「どの対象に」「どう変えたか」を残す。
// ステータス遷移1回につき1行なので、遷移のきっかけを必ず辿れる。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//admin:<sub> / webhook:<provider>
	Actor string `gorm:"type:varchar(128);not null;index" json:"actor"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//注文 / 支払い試行の Reference
	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func WebhookActor(p PaymentProvider) string {
	return "webhook:" + string(p)
}

func AdminActor(sub string) string {
	return "admin:" + sub
}
