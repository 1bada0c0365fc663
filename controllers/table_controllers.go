package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/services"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

var errDuplicateTableNumber = errors.New("table number already exists")

// occupiedWindow is how far back an unfinished order keeps its table occupied.
const occupiedWindow = 2 * time.Hour

type TableController struct {
	DB     *gorm.DB
	Orders *services.OrderService
	Clock  clockwork.Clock
}

func NewTableController(db *gorm.DB, orders *services.OrderService, clock clockwork.Clock) *TableController {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TableController{DB: db, Orders: orders, Clock: clock}
}

// GetAllTables lists active tables by number. ?all=true includes inactive ones.
func (tc *TableController) GetAllTables(c *gin.Context) {
	q := tc.DB.WithContext(c.Request.Context()).Order("number")
	if c.Query("all") != "true" {
		q = q.Where("is_active = ?", true)
	}

	var tables []models.Table
	if err := q.Find(&tables).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var table models.Table
	if err := tc.DB.WithContext(c.Request.Context()).First(&table, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

func (tc *TableController) numberTaken(c *gin.Context, number int, exceptID uint) (bool, error) {
	var count int64
	err := tc.DB.WithContext(c.Request.Context()).Model(&models.Table{}).
		Where("number = ? AND id <> ?", number, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	taken, err := tc.numberTaken(c, req.Number, 0)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if taken {
		utils.RespondError(c, http.StatusConflict, errDuplicateTableNumber)
		return
	}

	table := models.Table{Name: req.Name, Number: req.Number, IsActive: true}
	if err := tc.DB.WithContext(c.Request.Context()).Create(&table).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("table_id", table.ID).Infof("table %q created", table.Name)
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

func (tc *TableController) UpdateTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var req struct {
		Name     *string `json:"name"`
		Number   *int    `json:"number" binding:"omitempty,min=1"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	db := tc.DB.WithContext(c.Request.Context())
	if err := db.First(&table, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Number != nil && *req.Number != table.Number {
		taken, err := tc.numberTaken(c, *req.Number, table.ID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if taken {
			utils.RespondError(c, http.StatusConflict, errDuplicateTableNumber)
			return
		}
		updates["number"] = *req.Number
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := db.Model(&table).Updates(updates).Error; err != nil {
			respondServiceError(c, err)
			return
		}
		if err := db.First(&table, id).Error; err != nil {
			respondServiceError(c, err)
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// DeleteTable deactivates the table; orders keep referring to it.
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var table models.Table
	db := tc.DB.WithContext(c.Request.Context())
	if err := db.First(&table, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&table).Update("is_active", false).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("table_id", table.ID).Info("table deactivated")
	utils.RespondJSON(c, http.StatusOK, "Table deleted", nil)
}

// CallWaiter is pressed by a customer at the table. The path accepts either
// the table id or the table number; the optional body {"type":"bill"} asks
// for the bill instead of a waiter.
func (tc *TableController) CallWaiter(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		Type string `json:"type"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	res, err := tc.Orders.NotifyTable(c.Request.Context(), id, services.NotificationKind(body.Type))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification sent", gin.H{
		"type":      res.Kind,
		"delivered": res.Delivered,
	})
}

type tableRequest struct {
	Name   string `json:"name" binding:"required"`
	Number int    `json:"number" binding:"required,min=1"`
}

// BulkCreateTables creates every table whose number is free. Numbers already
// in use, or repeated in the request, are skipped and reported.
func (tc *TableController) BulkCreateTables(c *gin.Context) {
	var req []tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("no tables given"))
		return
	}
	for i, t := range req {
		if t.Name == "" || t.Number < 1 {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("table %d: name and a positive number are required", i))
			return
		}
	}

	created := make([]models.Table, 0, len(req))
	skipped := make([]int, 0)
	err := tc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		numbers := make([]int, 0, len(req))
		for _, t := range req {
			numbers = append(numbers, t.Number)
		}
		var existing []int
		if err := tx.Model(&models.Table{}).Where("number IN ?", numbers).Pluck("number", &existing).Error; err != nil {
			return err
		}
		taken := make(map[int]bool, len(existing))
		for _, n := range existing {
			taken[n] = true
		}

		for _, t := range req {
			if taken[t.Number] {
				skipped = append(skipped, t.Number)
				continue
			}
			table := models.Table{Name: t.Name, Number: t.Number, IsActive: true}
			if err := tx.Create(&table).Error; err != nil {
				return err
			}
			taken[t.Number] = true
			created = append(created, table)
		}
		return nil
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("created", len(created)).Info("tables bulk-created")
	utils.RespondJSON(c, http.StatusCreated, fmt.Sprintf("%d tables created", len(created)), gin.H{
		"tables":  created,
		"skipped": skipped,
	})
}

// GetTablesSummary counts active tables and how many of them have an
// unfinished order placed within occupiedWindow.
func (tc *TableController) GetTablesSummary(c *gin.Context) {
	db := tc.DB.WithContext(c.Request.Context())

	var total int64
	if err := db.Model(&models.Table{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	var occupied int64
	since := tc.Clock.Now().Add(-occupiedWindow)
	err := db.Model(&models.Order{}).
		Joins("JOIN tables ON tables.id = orders.table_id").
		Where("tables.is_active = ?", true).
		Where("orders.created_at >= ?", since).
		Where("orders.status NOT IN ?", []models.OrderStatus{models.StatusDelivered, models.StatusCancelled}).
		Distinct("orders.table_id").
		Count(&occupied).Error
	if err != nil {
		respondServiceError(c, err)
		return
	}

	available := total - occupied
	if available < 0 {
		available = 0
	}
	utils.RespondJSON(c, http.StatusOK, "Table summary", gin.H{
		"total_tables":     total,
		"active_tables":    occupied,
		"available_tables": available,
	})
}
