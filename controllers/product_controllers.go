package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

type ProductController struct {
	DB *gorm.DB
}

func NewProductController(db *gorm.DB) *ProductController {
	return &ProductController{DB: db}
}

// productDetail is a product with the extra groups offered with it.
type productDetail struct {
	models.Product
	ExtraGroups []models.ExtraGroup `json:"extra_groups"`
}

type productRequest struct {
	CategoryID  *uint    `json:"category_id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	ImageURL    *string  `json:"image_url"`
	IsFeatured  *bool    `json:"is_featured"`
	IsActive    *bool    `json:"is_active"`
}

// GetAllProducts lists active products. Filters: ?category_id, ?featured=true.
func (pc *ProductController) GetAllProducts(c *gin.Context) {
	q := pc.DB.WithContext(c.Request.Context()).Preload("Category").Where("is_active = ?", true)
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errInvalid("category_id"))
			return
		}
		q = q.Where("category_id = ?", id)
	}
	if c.Query("featured") == "true" {
		q = q.Where("is_featured = ?", true)
	}

	var products []models.Product
	if err := q.Order("name").Find(&products).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of products", products)
}

func (pc *ProductController) GetProductByID(c *gin.Context) {
	id, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	db := pc.DB.WithContext(c.Request.Context())
	var product models.Product
	if err := db.Preload("Category").First(&product, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	groups := make([]models.ExtraGroup, 0)
	err := db.Joins("JOIN product_extra_groups ON product_extra_groups.extra_group_id = extra_groups.id").
		Where("product_extra_groups.product_id = ?", id).
		Preload("Items", "is_active = ?", true).
		Order("product_extra_groups.id").
		Find(&groups).Error
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Product detail", productDetail{Product: product, ExtraGroups: groups})
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Name == nil || *req.Name == "" || req.Price == nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("name and price are required"))
		return
	}

	product := models.Product{
		CategoryID: req.CategoryID,
		Name:       *req.Name,
		Price:      *req.Price,
		IsActive:   true,
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	if err := pc.DB.WithContext(c.Request.Context()).Create(&product).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Product created", product)
}

// UpdateProduct changes the catalog price; orders already placed keep the
// price captured when they were created.
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := pc.DB.WithContext(c.Request.Context())
	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := db.Model(&product).Updates(updates).Error; err != nil {
			respondServiceError(c, err)
			return
		}
		if err := db.Preload("Category").First(&product, id).Error; err != nil {
			respondServiceError(c, err)
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Product updated", product)
}

// DeleteProduct hides the product from the menu.
func (pc *ProductController) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	db := pc.DB.WithContext(c.Request.Context())
	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&product).Update("is_active", false).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product deleted", nil)
}
