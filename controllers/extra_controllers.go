package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

var (
	errExtraGroupAttached    = errors.New("extra group already attached to product")
	errExtraGroupNotAttached = errors.New("extra group is not attached to product")
)

// ExtraController manages the add-on catalogue. Extras are informational:
// order subtotals never include their price.
type ExtraController struct {
	DB *gorm.DB
}

func NewExtraController(db *gorm.DB) *ExtraController {
	return &ExtraController{DB: db}
}

type extraItemRequest struct {
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price" binding:"gte=0"`
}

// GetAllExtraGroups lists groups with their items. By default only groups
// that still offer an active item are listed, with inactive items left out.
func (ec *ExtraController) GetAllExtraGroups(c *gin.Context) {
	q := ec.DB.WithContext(c.Request.Context())
	if c.DefaultQuery("active_only", "true") != "false" {
		q = q.Where("EXISTS (SELECT 1 FROM extra_items WHERE extra_items.group_id = extra_groups.id AND extra_items.is_active = ?)", true).
			Preload("Items", "is_active = ?", true)
	} else {
		q = q.Preload("Items")
	}

	var groups []models.ExtraGroup
	if err := q.Order("name").Order("id").Find(&groups).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of extra groups", groups)
}

func (ec *ExtraController) GetExtraGroupByID(c *gin.Context) {
	id, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	var group models.ExtraGroup
	if err := ec.DB.WithContext(c.Request.Context()).Preload("Items").First(&group, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Extra group detail", group)
}

// CreateExtraGroup stores a group and its initial items in one transaction.
func (ec *ExtraController) CreateExtraGroup(c *gin.Context) {
	var req struct {
		Name          string             `json:"name" binding:"required"`
		IsRequired    bool               `json:"is_required"`
		MaxSelections *int               `json:"max_selections" binding:"omitempty,min=1"`
		Items         []extraItemRequest `json:"items" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	group := models.ExtraGroup{
		Name:          req.Name,
		IsRequired:    req.IsRequired,
		MaxSelections: 1,
		Items:         make([]models.ExtraItem, 0, len(req.Items)),
	}
	if req.MaxSelections != nil {
		group.MaxSelections = *req.MaxSelections
	}
	for _, it := range req.Items {
		group.Items = append(group.Items, models.ExtraItem{Name: it.Name, Price: it.Price, IsActive: true})
	}

	if err := ec.DB.WithContext(c.Request.Context()).Create(&group).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"group_id": group.ID,
		"items":    len(group.Items),
	}).Infof("extra group %q created", group.Name)
	utils.RespondJSON(c, http.StatusCreated, "Extra group created", group)
}

func (ec *ExtraController) UpdateExtraGroup(c *gin.Context) {
	id, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		Name          *string `json:"name" binding:"omitempty,min=1"`
		IsRequired    *bool   `json:"is_required"`
		MaxSelections *int    `json:"max_selections" binding:"omitempty,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := ec.DB.WithContext(c.Request.Context())
	var group models.ExtraGroup
	if err := db.First(&group, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.IsRequired != nil {
		updates["is_required"] = *req.IsRequired
	}
	if req.MaxSelections != nil {
		updates["max_selections"] = *req.MaxSelections
	}
	if len(updates) > 0 {
		if err := db.Model(&group).Updates(updates).Error; err != nil {
			respondServiceError(c, err)
			return
		}
	}
	if err := db.Preload("Items").First(&group, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Extra group updated", group)
}

// DeleteExtraGroup removes the group, its items and its product attachments.
// Orders keep the extras they were placed with.
func (ec *ExtraController) DeleteExtraGroup(c *gin.Context) {
	id, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	err := ec.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var group models.ExtraGroup
		if err := tx.First(&group, id).Error; err != nil {
			return err
		}
		if err := tx.Where("extra_group_id = ?", id).Delete(&models.ProductExtraGroup{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.ExtraItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Extra group deleted", nil)
}

func (ec *ExtraController) AddExtraItem(c *gin.Context) {
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	var req extraItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := ec.DB.WithContext(c.Request.Context())
	var group models.ExtraGroup
	if err := db.First(&group, groupID).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	item := models.ExtraItem{GroupID: group.ID, Name: req.Name, Price: req.Price, IsActive: true}
	if err := db.Create(&item).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Extra item created", item)
}

func (ec *ExtraController) UpdateExtraItem(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	var req struct {
		Name     *string  `json:"name" binding:"omitempty,min=1"`
		Price    *float64 `json:"price" binding:"omitempty,gte=0"`
		IsActive *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := ec.DB.WithContext(c.Request.Context())
	var item models.ExtraItem
	if err := db.First(&item, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := db.Model(&item).Updates(updates).Error; err != nil {
			respondServiceError(c, err)
			return
		}
		if err := db.First(&item, id).Error; err != nil {
			respondServiceError(c, err)
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Extra item updated", item)
}

// DeleteExtraItem stops offering the item.
func (ec *ExtraController) DeleteExtraItem(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	db := ec.DB.WithContext(c.Request.Context())
	var item models.ExtraItem
	if err := db.First(&item, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&item).Update("is_active", false).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Extra item deleted", nil)
}

// AttachExtraGroup offers a group with a product.
func (ec *ExtraController) AttachExtraGroup(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}

	db := ec.DB.WithContext(c.Request.Context())
	if err := db.First(&models.Product{}, productID).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.First(&models.ExtraGroup{}, groupID).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	link := models.ProductExtraGroup{ProductID: productID, ExtraGroupID: groupID}
	if err := db.Omit("ExtraGroup").Create(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusConflict, errExtraGroupAttached)
			return
		}
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Extra group attached", link)
}

func (ec *ExtraController) DetachExtraGroup(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}

	res := ec.DB.WithContext(c.Request.Context()).
		Where("product_id = ? AND extra_group_id = ?", productID, groupID).
		Delete(&models.ProductExtraGroup{})
	if res.Error != nil {
		respondServiceError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errExtraGroupNotAttached)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Extra group detached", nil)
}
