package models

import "time"

// RestaurantSettings is a single-row table of venue-wide settings shown to
// customers and staff.
type RestaurantSettings struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	RestaurantName      string    `gorm:"type:varchar(255);not null" json:"restaurant_name"`
	Currency            string    `gorm:"type:varchar(10);not null" json:"currency"`
	TaxRate             float64   `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	ServiceCharge       float64   `gorm:"type:decimal(5,2);not null" json:"service_charge"`
	WifiPassword        string    `gorm:"type:varchar(100)" json:"wifi_password"`
	OrderTimeoutMinutes int       `gorm:"not null" json:"order_timeout_minutes"`
	LogoURL             string    `gorm:"type:varchar(255)" json:"logo_url"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

// DefaultRestaurantSettings is stored the first time settings are read.
func DefaultRestaurantSettings() RestaurantSettings {
	return RestaurantSettings{
		RestaurantName:      "Restaurant Order System",
		Currency:            "TRY",
		TaxRate:             10,
		ServiceCharge:       0,
		OrderTimeoutMinutes: 30,
	}
}
