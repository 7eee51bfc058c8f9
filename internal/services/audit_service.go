package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"folio/internal/logger"
	"folio/internal/models"
)

// Audit actions.
const (
	AuditCreateTransaction = "CREATE_TRANSACTION"
	AuditDeleteTransaction = "DELETE_TRANSACTION"
	AuditRebuildAccount    = "REBUILD_HOLDINGS"
	AuditRebuildAll        = "REBUILD_ALL_HOLDINGS"
	AuditRecordPrices      = "RECORD_PRICES"
	AuditCreateCategory    = "CREATE_CATEGORY"
	AuditUpdateCategory    = "UPDATE_CATEGORY"
	AuditDeleteCategory    = "DELETE_CATEGORY"
	AuditAssignAsset       = "ASSIGN_ASSET"
	AuditUnassignAsset     = "UNASSIGN_ASSET"
)

// AuditEntry is one auditable action. An empty AccountID marks a pipeline action.
type AuditEntry struct {
	AccountID    string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Changes      map[string]interface{}
}

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and never reach the caller.
func (s *auditService) Log(ctx context.Context, e AuditEntry) {
	row := &models.AuditLog{
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		IPAddress:    e.IPAddress,
	}
	if e.AccountID != "" {
		accountID := e.AccountID
		row.AccountID = &accountID
	}
	if len(e.Changes) > 0 {
		data, err := json.Marshal(e.Changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", e.Action)
			data = []byte("{}")
		}
		row.Changes = string(data)
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"account_id", e.AccountID,
			"action", e.Action,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID,
		)
	}
}
