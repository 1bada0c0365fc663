package models

import "time"

// ExtraGroup is a set of add-ons offered with products, e.g. "Sauces".
// The keys of OrderItem.Extras refer to these groups and their items.
type ExtraGroup struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Name          string      `gorm:"type:varchar(100);not null" json:"name"`
	IsRequired    bool        `gorm:"not null;default:false" json:"is_required"`
	MaxSelections int         `gorm:"not null;default:1" json:"max_selections"`
	Items         []ExtraItem `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
}

type ExtraItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Price     float64   `gorm:"type:decimal(10,2);not null;default:0.00" json:"price"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// ProductExtraGroup attaches an ExtraGroup to a Product. A group is attached
// to a product at most once.
type ProductExtraGroup struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ProductID    uint       `gorm:"not null;uniqueIndex:idx_product_extra_group" json:"product_id"`
	ExtraGroupID uint       `gorm:"not null;uniqueIndex:idx_product_extra_group;index" json:"extra_group_id"`
	ExtraGroup   ExtraGroup `gorm:"foreignKey:ExtraGroupID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
}
