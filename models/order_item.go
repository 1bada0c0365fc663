package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Extras is the free-form selection of extras for one order line, stored as a
// JSON column.
type Extras map[string]interface{}

func (e Extras) Value() (driver.Value, error) {
	if e == nil {
		return "{}", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *Extras) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*e = Extras{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("extras: unsupported column type %T", value)
	}
	if len(raw) == 0 {
		*e = Extras{}
		return nil
	}
	out := Extras{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*e = out
	return nil
}

func (Extras) GormDataType() string {
	return "text"
}

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order     Order     `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ProductID uint      `gorm:"not null" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID;references:ID" json:"product,omitempty"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice float64   `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Extras    Extras    `json:"extras"`
	Subtotal  float64   `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// ProductName returns the name of the ordered product, or "Unknown product"
// when the product row is gone.
func (i OrderItem) ProductName() string {
	if i.Product == nil {
		return "Unknown product"
	}
	return i.Product.Name
}
