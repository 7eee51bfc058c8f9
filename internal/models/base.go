package models

import (
	"time"

	"folio/internal/uuid"

	"gorm.io/gorm"
)

// RowID is the UUIDv7 primary key shared by every table. Derived and
// append-only tables embed it directly; editable tables get it through Base.
type RowID struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
}

// BeforeCreate assigns a time-ordered ID unless the caller set one.
func (r *RowID) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	return nil
}

// Base is embedded by account-owned rows that soft delete.
type Base struct {
	RowID
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Live reports whether the row has not been soft deleted.
func (b Base) Live() bool {
	return !b.DeletedAt.Valid
}
