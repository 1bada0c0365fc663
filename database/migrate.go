package database

import (
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Table{},
		&models.Category{},
		&models.Product{},
		&models.ExtraGroup{},
		&models.ExtraItem{},
		&models.ProductExtraGroup{},
		&models.Order{},
		&models.OrderItem{},
		&models.RestaurantSettings{},
	)
	if err != nil {
		utils.ErrorLogger.Errorf("auto-migrate failed: %v", err)
		return err
	}
	utils.InfoLogger.Info("database schema migrated")
	return nil
}
