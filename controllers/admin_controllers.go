package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

type AdminController struct {
	DB    *gorm.DB
	Hub   *kds.Hub
	Clock clockwork.Clock
}

func NewAdminController(db *gorm.DB, hub *kds.Hub, clock clockwork.Clock) *AdminController {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminController{DB: db, Hub: hub, Clock: clock}
}

type dashboardStats struct {
	TotalOrders  int64                        `json:"total_orders"`
	TodayOrders  int64                        `json:"today_orders"`
	TotalRevenue float64                      `json:"total_revenue"`
	TodayRevenue float64                      `json:"today_revenue"`
	OrderStats   map[models.OrderStatus]int64 `json:"order_stats"`
	TableStats   struct {
		Active   int64 `json:"active"`
		Inactive int64 `json:"inactive"`
	} `json:"table_stats"`
	Clients struct {
		All     int `json:"all"`
		Kitchen int `json:"kitchen"`
		Admin   int `json:"admin"`
	} `json:"clients"`
}

// GetDashboardStats summarises orders, revenue and connected screens.
// Revenue counts delivered orders only; "today" is the server's local day.
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	db := ac.DB.WithContext(c.Request.Context())

	now := ac.Clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats dashboardStats
	stats.OrderStats = make(map[models.OrderStatus]int64)

	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&stats.TodayOrders).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	var byStatus []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := db.Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	for _, s := range []models.OrderStatus{
		models.StatusPending, models.StatusPreparing, models.StatusReady,
		models.StatusDelivered, models.StatusCancelled,
	} {
		stats.OrderStats[s] = 0
	}
	for _, row := range byStatus {
		stats.OrderStats[row.Status] = row.Count
	}

	if err := db.Model(&models.Order{}).
		Where("status = ?", models.StatusDelivered).
		Select("COALESCE(SUM(total_amount), 0)").
		Row().Scan(&stats.TotalRevenue); err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&models.Order{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", models.StatusDelivered, dayStart, dayEnd).
		Select("COALESCE(SUM(total_amount), 0)").
		Row().Scan(&stats.TodayRevenue); err != nil {
		respondServiceError(c, err)
		return
	}

	if err := db.Model(&models.Table{}).Where("is_active = ?", true).Count(&stats.TableStats.Active).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&models.Table{}).Where("is_active = ?", false).Count(&stats.TableStats.Inactive).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	if ac.Hub != nil {
		stats.Clients.All = ac.Hub.Registry.Count(kds.AudienceAll)
		stats.Clients.Kitchen = ac.Hub.Registry.Count(kds.AudienceKitchen)
		stats.Clients.Admin = ac.Hub.Registry.Count(kds.AudienceAdmin)
	}

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}
