package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

type CategoryController struct {
	DB *gorm.DB
}

func NewCategoryController(db *gorm.DB) *CategoryController {
	return &CategoryController{DB: db}
}

// GetAllCategories lists categories in menu order. ?active_only=false also
// returns deleted ones.
func (cc *CategoryController) GetAllCategories(c *gin.Context) {
	q := cc.DB.WithContext(c.Request.Context())
	if c.DefaultQuery("active_only", "true") != "false" {
		q = q.Where("is_active = ?", true)
	}
	var categories []models.Category
	err := q.Order("sort_order").Order("name").Find(&categories).Error
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All categories", categories)
}

// CreateCategory
func (cc *CategoryController) CreateCategory(c *gin.Context) {
	var body struct {
		Name      string `json:"name" binding:"required"`
		Icon      string `json:"icon"`
		SortOrder int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	category := models.Category{
		Name:      body.Name,
		Icon:      body.Icon,
		SortOrder: body.SortOrder,
		IsActive:  true,
	}
	if err := cc.DB.WithContext(c.Request.Context()).Create(&category).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Category created", category)
}

func (cc *CategoryController) GetCategoryByID(c *gin.Context) {
	id, ok := paramID(c, "category_id")
	if !ok {
		return
	}
	var category models.Category
	if err := cc.DB.WithContext(c.Request.Context()).First(&category, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Category detail", category)
}

// UpdateCategory changes only the fields present in the body. A name already
// used by another category is a conflict.
func (cc *CategoryController) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "category_id")
	if !ok {
		return
	}
	var body struct {
		Name      *string `json:"name" binding:"omitempty,min=1"`
		Icon      *string `json:"icon"`
		SortOrder *int    `json:"sort_order"`
		IsActive  *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := cc.DB.WithContext(c.Request.Context())
	var category models.Category
	if err := db.First(&category, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		var taken int64
		if err := db.Model(&models.Category{}).
			Where("name = ? AND id <> ?", *body.Name, id).
			Count(&taken).Error; err != nil {
			respondServiceError(c, err)
			return
		}
		if taken > 0 {
			utils.RespondError(c, http.StatusConflict, errors.New("category name already exists"))
			return
		}
		updates["name"] = *body.Name
	}
	if body.Icon != nil {
		updates["icon"] = *body.Icon
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	if len(updates) > 0 {
		if err := db.Model(&category).Updates(updates).Error; err != nil {
			respondServiceError(c, err)
			return
		}
		if err := db.First(&category, id).Error; err != nil {
			respondServiceError(c, err)
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Category updated", category)
}

// DeleteCategory hides the category. Its products keep their category_id.
func (cc *CategoryController) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "category_id")
	if !ok {
		return
	}
	db := cc.DB.WithContext(c.Request.Context())
	var category models.Category
	if err := db.First(&category, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&category).Update("is_active", false).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Category deleted", nil)
}
