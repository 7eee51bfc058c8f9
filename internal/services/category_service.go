package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/portfolio"
	"folio/internal/uuid"
	"folio/internal/validator"
)

// categoryService manages the two-level category tree and asset assignments.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

func validateColor(color *string) error {
	if color != nil && *color != "" && !validator.IsHexColor(*color) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "color must be a hex color like #1F77B4")
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nameTaken reports whether a sibling under parentID ("" for top level)
// already uses name.
func (s *categoryService) nameTaken(db *gorm.DB, accountID, parentID, name, exceptID string) (bool, error) {
	q := db.Model(&models.Category{}).Where("account_id = ? AND name = ?", accountID, name)
	if parentID == "" {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", parentID)
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// loadParent checks that parentID names a top-level category of the account.
func (s *categoryService) loadParent(db *gorm.DB, accountID, parentID string) (*models.Category, error) {
	if !uuid.IsValid(parentID) {
		return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
	}
	var parent models.Category
	if err := db.Where("id = ? AND account_id = ?", parentID, accountID).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !parent.IsTopLevel() {
		return nil, apperrors.ErrCategoryTooDeep
	}
	return &parent, nil
}

// CreateCategory creates a top-level category, or a subcategory when ParentID is set.
func (s *categoryService) CreateCategory(ctx context.Context, accountID string, in CategoryInput) (*models.Category, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if err := validateColor(in.Color); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var parentID *string
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := s.loadParent(db, accountID, *in.ParentID)
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	}

	taken, err := s.nameTaken(db, accountID, derefString(parentID), name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ErrDuplicateCategory
	}

	category := &models.Category{
		AccountID: accountID,
		Name:      name,
		ParentID:  parentID,
	}
	if in.Priority != nil {
		category.Priority = *in.Priority
	}
	if in.Color != nil {
		category.Color = *in.Color
	}

	if err := db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// GetAccountCategories retrieves a paginated list of the account's categories.
func (s *categoryService) GetAccountCategories(ctx context.Context, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.Category{}).Where("account_id = ?", accountID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("priority ASC, name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID for a specific account.
func (s *categoryService) GetCategoryByID(ctx context.Context, accountID, categoryID string) (*models.Category, error) {
	if !uuid.IsValid(categoryID) {
		return nil, apperrors.ErrCategoryNotFound
	}
	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ? AND account_id = ?", categoryID, accountID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// GetCategoryByName retrieves a category by its name for a specific account.
// Top-level names are unique, so a top-level match wins over subcategories.
func (s *categoryService) GetCategoryByName(ctx context.Context, accountID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	var category models.Category
	if err := s.db.WithContext(ctx).Where("account_id = ? AND name = ?", accountID, name).
		Order("CASE WHEN parent_id IS NULL THEN 0 ELSE 1 END").
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "category "+name+" not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// ListSubcategories returns the children of a top-level category ordered by priority.
func (s *categoryService) ListSubcategories(ctx context.Context, accountID, categoryID string) ([]models.Category, error) {
	if _, err := s.GetCategoryByID(ctx, accountID, categoryID); err != nil {
		return nil, err
	}
	children := []models.Category{}
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND parent_id = ?", accountID, categoryID).
		Order("priority ASC, name ASC").
		Find(&children).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return children, nil
}

// UpdateCategory updates the provided fields. An empty ParentID moves the
// category to the top level. Categories with assignments cannot move.
func (s *categoryService) UpdateCategory(ctx context.Context, accountID, categoryID string, in CategoryInput) (*models.Category, error) {
	category, err := s.GetCategoryByID(ctx, accountID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := validateColor(in.Color); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	updates := make(map[string]interface{})

	name, parent := category.Name, derefString(category.ParentID)
	if n := strings.TrimSpace(in.Name); n != "" && n != name {
		name = n
		updates["name"] = name
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.Color != nil {
		updates["color"] = *in.Color
	}

	if in.ParentID != nil && *in.ParentID != parent {
		parent = *in.ParentID
		if err := s.checkMove(db, accountID, category, parent); err != nil {
			return nil, err
		}
		if parent == "" {
			updates["parent_id"] = nil
		} else {
			updates["parent_id"] = parent
		}
	}

	_, renamed := updates["name"]
	_, moved := updates["parent_id"]
	if renamed || moved {
		taken, err := s.nameTaken(db, accountID, parent, name, categoryID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.ErrDuplicateCategory
		}
	}

	if len(updates) > 0 {
		if err := db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetCategoryByID(ctx, accountID, categoryID)
}

// checkMove validates re-parenting category under newParent ("" for top level).
func (s *categoryService) checkMove(db *gorm.DB, accountID string, category *models.Category, newParent string) error {
	if newParent == category.ID {
		return apperrors.ErrSelfParentCategory
	}
	if newParent != "" {
		if _, err := s.loadParent(db, accountID, newParent); err != nil {
			return err
		}
		var childCount int64
		if err := db.Model(&models.Category{}).Where("parent_id = ?", category.ID).Count(&childCount).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if childCount > 0 {
			return apperrors.ErrCategoryTooDeep
		}
	}

	var assigned int64
	if err := db.Model(&models.HoldingsCategoryAssignment{}).Where("category_id = ?", category.ID).Count(&assigned).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if assigned > 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "category has asset assignments; remove them before moving it")
	}
	return nil
}

// DeleteCategory soft-deletes a category without subcategories and drops its assignments.
func (s *categoryService) DeleteCategory(ctx context.Context, accountID, categoryID string) error {
	category, err := s.GetCategoryByID(ctx, accountID, categoryID)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var childCount int64
	if err := db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("category_id = ? OR root_category_id = ?", categoryID, categoryID).
			Delete(&models.HoldingsCategoryAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// rootOf returns the top-level category of c.
func rootOf(c *models.Category) string {
	if c.ParentID != nil {
		return *c.ParentID
	}
	return c.ID
}

// AssignAsset maps assetName to categoryID, replacing any earlier assignment
// under the same top-level category.
func (s *categoryService) AssignAsset(ctx context.Context, accountID, categoryID, assetName string) (*models.HoldingsCategoryAssignment, error) {
	assetName = strings.TrimSpace(assetName)
	if assetName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "asset name is required")
	}
	category, err := s.GetCategoryByID(ctx, accountID, categoryID)
	if err != nil {
		return nil, err
	}
	root := rootOf(category)

	var assignment models.HoldingsCategoryAssignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("account_id = ? AND asset_name = ? AND root_category_id = ?", accountID, assetName, root).
			Limit(1).
			Find(&assignment)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return tx.Model(&assignment).Update("category_id", category.ID).Error
		}
		assignment = models.HoldingsCategoryAssignment{
			AccountID:      accountID,
			AssetName:      assetName,
			RootCategoryID: root,
			CategoryID:     category.ID,
		}
		return tx.Create(&assignment).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	assignment.Category = *category
	return &assignment, nil
}

// UnassignAsset removes the asset's assignment under the category's top-level tree.
func (s *categoryService) UnassignAsset(ctx context.Context, accountID, categoryID, assetName string) error {
	category, err := s.GetCategoryByID(ctx, accountID, categoryID)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Unscoped().
		Where("account_id = ? AND asset_name = ? AND root_category_id = ?", accountID, assetName, rootOf(category)).
		Delete(&models.HoldingsCategoryAssignment{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.WithMessage(apperrors.ErrNotFound, "assignment not found")
	}
	return nil
}

// ListAssetAssignments returns every assignment under the category's top-level tree.
func (s *categoryService) ListAssetAssignments(ctx context.Context, accountID, categoryID string) ([]models.HoldingsCategoryAssignment, error) {
	category, err := s.GetCategoryByID(ctx, accountID, categoryID)
	if err != nil {
		return nil, err
	}
	assignments := []models.HoldingsCategoryAssignment{}
	if err := s.db.WithContext(ctx).
		Preload("Category").
		Where("account_id = ? AND root_category_id = ?", accountID, rootOf(category)).
		Order("asset_name ASC").
		Find(&assignments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return assignments, nil
}

// Grouping builds the calculator grouping for a top-level category. Assets
// assigned to a subcategory take its name, priority and color; assets assigned
// to the category itself fall into the None bucket.
func (s *categoryService) Grouping(ctx context.Context, accountID, categoryName string, membersOnly bool) (*portfolio.Grouping, error) {
	category, err := s.GetCategoryByName(ctx, accountID, categoryName)
	if err != nil {
		return nil, err
	}
	if !category.IsTopLevel() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "chart category must be a top-level category")
	}

	assignments, err := s.ListAssetAssignments(ctx, accountID, category.ID)
	if err != nil {
		return nil, err
	}

	grouping := &portfolio.Grouping{Assets: make(map[string]portfolio.Group, len(assignments)), MembersOnly: membersOnly}
	for _, a := range assignments {
		if a.CategoryID == category.ID || a.Category.ID == "" {
			grouping.Assets[a.AssetName] = portfolio.NoneGroup
			continue
		}
		grouping.Assets[a.AssetName] = portfolio.Group{
			Label:    a.Category.Name,
			Priority: a.Category.Priority,
			Color:    a.Category.Color,
		}
	}
	return grouping, nil
}
