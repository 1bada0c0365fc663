package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/services"
	"gorm.io/gorm"
)

// Store implements services.OrderStore on gorm.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

var _ services.OrderStore = (*Store)(nil)

// notFound translates gorm's sentinel into services.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	return err
}

func (s *Store) FindTable(ctx context.Context, id uint) (*models.Table, error) {
	var table models.Table
	if err := s.DB.WithContext(ctx).First(&table, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &table, nil
}

func (s *Store) FindTableByRef(ctx context.Context, ref uint) (*models.Table, error) {
	table, err := s.FindTable(ctx, ref)
	if !errors.Is(err, services.ErrNotFound) {
		return table, err
	}

	var byNumber models.Table
	if err := s.DB.WithContext(ctx).Where("number = ?", ref).First(&byNumber).Error; err != nil {
		return nil, notFound(err)
	}
	return &byNumber, nil
}

func (s *Store) FindProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// CreateOrder inserts the order row and its items in one transaction. The
// loaded Product and Table associations are never written.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		order.Items = nil
		err := tx.Omit("Table", "Items").Create(order).Error
		order.Items = items
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		if len(order.Items) > 0 {
			if err := tx.Omit("Order", "Product").Create(&order.Items).Error; err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) preloadOrder(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).
		Preload("Table").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product")
}

func (s *Store) FindOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.preloadOrder(ctx).First(&order, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":     order.Status,
			"updated_at": order.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, filter services.OrderFilter) ([]models.Order, error) {
	q := s.preloadOrder(ctx)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.TableID != 0 {
		q = q.Where("table_id = ?", filter.TableID)
	}

	var orders []models.Order
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Find(&orders).Error
	return orders, err
}

func (s *Store) ListOrdersByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := s.preloadOrder(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Order{}).Count(&n).Error
	return n, err
}
