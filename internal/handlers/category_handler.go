package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
)

// CategoryHandler handles category tree and asset assignment requests
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category
type CreateCategoryRequest struct {
	Name     string  `json:"name" binding:"required,max=100"`
	ParentID *string `json:"parent_id"`
	Priority *int    `json:"priority"`
	Color    *string `json:"color" example:"#1F77B4"`
}

// UpdateCategoryRequest represents the request payload for updating a category.
// An empty parent_id moves the category to the top level.
type UpdateCategoryRequest struct {
	Name     string  `json:"name" binding:"max=100"`
	ParentID *string `json:"parent_id"`
	Priority *int    `json:"priority"`
	Color    *string `json:"color"`
}

// AssignAssetRequest represents the request payload for assigning an asset
type AssignAssetRequest struct {
	AssetName string `json:"asset_name" binding:"required,max=200"`
}

func (h *CategoryHandler) audit(c *gin.Context, accountID, action, categoryID string, changes map[string]interface{}) {
	h.auditService.Log(c.Request.Context(), services.AuditEntry{
		AccountID:    accountID,
		Action:       action,
		ResourceType: "category",
		ResourceID:   categoryID,
		IPAddress:    c.ClientIP(),
		Changes:      changes,
	})
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a top-level category, or a subcategory of a top-level category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input or too deep"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Parent not found"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), accountID, services.CategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		Priority: req.Priority,
		Color:    req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.audit(c, accountID, services.AuditCreateCategory, category.ID, map[string]interface{}{"name": category.Name})
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetAccountCategories handles listing the account's categories
// @Summary     List categories
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Category] "Paginated categories"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [get]
func (h *CategoryHandler) GetAccountCategories(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.categoryService.GetAccountCategories(c.Request.Context(), accountID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCategoryByID handles the retrieval of a category with its subcategories
// @Summary     Get category by ID
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category with subcategories"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategoryByID(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if category.IsTopLevel() {
		children, err := h.categoryService.ListSubcategories(c.Request.Context(), accountID, category.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		category.Children = children
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory handles updating an existing category
// @Summary     Update category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body UpdateCategoryRequest true "Fields to update"
// @Success     200 {object} models.Category "Category updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), accountID, c.Param("id"), services.CategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		Priority: req.Priority,
		Color:    req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.audit(c, accountID, services.AuditUpdateCategory, category.ID, nil)
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles deleting a category
// @Summary     Delete category
// @Description Delete a category without subcategories. Its asset assignments are removed.
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} map[string]string "Category deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Category has subcategories"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID := c.Param("id")
	if err := h.categoryService.DeleteCategory(c.Request.Context(), accountID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.audit(c, accountID, services.AuditDeleteCategory, categoryID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// ListAssignments handles listing asset assignments under a category tree
// @Summary     List asset assignments
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} map[string][]models.HoldingsCategoryAssignment "Assignments"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id}/assignments [get]
func (h *CategoryHandler) ListAssignments(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	assignments, err := h.categoryService.ListAssetAssignments(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// AssignAsset handles assigning an asset to a category
// @Summary     Assign asset
// @Description Assign an asset to the category, replacing its earlier assignment under the same top-level category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Category ID"
// @Param       request body AssignAssetRequest true "Asset"
// @Success     200 {object} models.HoldingsCategoryAssignment "Assignment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id}/assignments [put]
func (h *CategoryHandler) AssignAsset(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssignAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	categoryID := c.Param("id")
	assignment, err := h.categoryService.AssignAsset(c.Request.Context(), accountID, categoryID, req.AssetName)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.audit(c, accountID, services.AuditAssignAsset, categoryID, map[string]interface{}{"asset_name": req.AssetName})
	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

// UnassignAsset handles removing an asset's assignment
// @Summary     Unassign asset
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id    path string true "Category ID"
// @Param       asset path string true "Asset name"
// @Success     200 {object} map[string]string "Assignment removed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category or assignment not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id}/assignments/{asset} [delete]
func (h *CategoryHandler) UnassignAsset(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, asset := c.Param("id"), c.Param("asset")
	if err := h.categoryService.UnassignAsset(c.Request.Context(), accountID, categoryID, asset); err != nil {
		respondWithError(c, err)
		return
	}

	h.audit(c, accountID, services.AuditUnassignAsset, categoryID, map[string]interface{}{"asset_name": asset})
	c.JSON(http.StatusOK, gin.H{"message": "Assignment removed successfully"})
}
