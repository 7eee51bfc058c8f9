package models

// Category is a node of an account's two-level category tree.
// A nil ParentID marks a top-level category.
type Category struct {
	Base
	AccountID string  `gorm:"type:uuid;not null;index" json:"account_id"`
	Name      string  `gorm:"not null" json:"name"`
	ParentID  *string `gorm:"type:uuid" json:"parent_id,omitempty"`
	Priority  int     `gorm:"not null;default:0" json:"priority"`
	Color     string  `json:"color,omitempty"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// IsTopLevel reports whether the category has no parent.
func (c *Category) IsTopLevel() bool {
	return c.ParentID == nil
}

// HoldingsCategoryAssignment maps an asset to the most specific category it has
// under one top-level category. RootCategoryID is the top-level ancestor (or
// the category itself) and keeps one assignment per asset per tree.
type HoldingsCategoryAssignment struct {
	Base
	AccountID      string `gorm:"type:uuid;not null;uniqueIndex:uq_assignments_account_asset_root" json:"account_id"`
	AssetName      string `gorm:"not null;uniqueIndex:uq_assignments_account_asset_root" json:"asset_name"`
	RootCategoryID string `gorm:"type:uuid;not null;uniqueIndex:uq_assignments_account_asset_root" json:"root_category_id"`
	CategoryID     string `gorm:"type:uuid;not null" json:"category_id"`

	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
