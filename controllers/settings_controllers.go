package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

type SettingsController struct {
	DB *gorm.DB
}

func NewSettingsController(db *gorm.DB) *SettingsController {
	return &SettingsController{DB: db}
}

// load returns the settings row, storing the defaults on first use.
func (sc *SettingsController) load(db *gorm.DB) (models.RestaurantSettings, error) {
	var settings models.RestaurantSettings
	err := db.Order("id").Attrs(models.DefaultRestaurantSettings()).FirstOrCreate(&settings).Error
	return settings, err
}

// GetSettings is public; menus and table screens show the restaurant name,
// currency and wifi password.
func (sc *SettingsController) GetSettings(c *gin.Context) {
	settings, err := sc.load(sc.DB.WithContext(c.Request.Context()))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant settings", settings)
}

// UpdateSettings replaces every setting. logo_url is kept when omitted.
func (sc *SettingsController) UpdateSettings(c *gin.Context) {
	var req struct {
		RestaurantName      string   `json:"restaurant_name" binding:"required"`
		Currency            string   `json:"currency" binding:"required"`
		TaxRate             *float64 `json:"tax_rate" binding:"required,gte=0"`
		ServiceCharge       *float64 `json:"service_charge" binding:"required,gte=0"`
		WifiPassword        string   `json:"wifi_password"`
		OrderTimeoutMinutes int      `json:"order_timeout_minutes" binding:"required,min=1"`
		LogoURL             *string  `json:"logo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var settings models.RestaurantSettings
	err := sc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		if settings, err = sc.load(tx); err != nil {
			return err
		}
		settings.RestaurantName = req.RestaurantName
		settings.Currency = req.Currency
		settings.TaxRate = *req.TaxRate
		settings.ServiceCharge = *req.ServiceCharge
		settings.WifiPassword = req.WifiPassword
		settings.OrderTimeoutMinutes = req.OrderTimeoutMinutes
		if req.LogoURL != nil {
			settings.LogoURL = *req.LogoURL
		}
		return tx.Save(&settings).Error
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("user_id", c.GetUint("user_id")).Info("restaurant settings updated")
	utils.RespondJSON(c, http.StatusOK, "Restaurant settings updated", settings)
}
