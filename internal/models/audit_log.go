package models

// AuditLog records ledger writes, category changes and holdings rebuilds.
// AccountID is nil for pipeline-initiated actions spanning every account.
type AuditLog struct {
	Base
	AccountID    *string `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Action       string  `gorm:"not null;index" json:"action"`
	ResourceType string  `gorm:"not null" json:"resource_type"`
	ResourceID   string  `json:"resource_id"`
	IPAddress    string  `json:"ip_address"`
	Changes      string  `json:"changes,omitempty"`
}
