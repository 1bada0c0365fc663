package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/services"
	"github.com/yeremiapane/restaurant-orders/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

type orderItemResponse struct {
	ID          uint          `json:"id"`
	ProductID   uint          `json:"product_id"`
	ProductName string        `json:"product_name"`
	Quantity    int           `json:"quantity"`
	UnitPrice   float64       `json:"unit_price"`
	Extras      models.Extras `json:"extras"`
	Subtotal    float64       `json:"subtotal"`
}

type orderResponse struct {
	ID            uint                `json:"id"`
	TableID       uint                `json:"table_id"`
	TableName     string              `json:"table_name"`
	Status        models.OrderStatus  `json:"status"`
	CustomerNotes string              `json:"customer_notes"`
	TotalAmount   float64             `json:"total_amount"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		extras := it.Extras
		if extras == nil {
			extras = models.Extras{}
		}
		items = append(items, orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName(),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Extras:      extras,
			Subtotal:    it.Subtotal,
		})
	}
	return orderResponse{
		ID:            o.ID,
		TableID:       o.TableID,
		TableName:     o.Table.Name,
		Status:        o.Status,
		CustomerNotes: o.CustomerNotes,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Items:         items,
	}
}

func newOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	return out
}

// CreateOrder -> customers place orders without logging in
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", newOrderResponse(order))
}

// GetAllOrders supports ?skip, ?limit, ?status and ?table_id.
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	var filter services.OrderFilter
	var err error

	if v := c.Query("skip"); v != "" {
		if filter.Skip, err = strconv.Atoi(v); err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid skip"))
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		if filter.Limit == 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("limit must be at least 1"))
			return
		}
	}
	if v := c.Query("table_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid table_id"))
			return
		}
		filter.TableID = uint(id)
	}
	filter.Status = models.OrderStatus(c.Query("status"))

	orders, err := oc.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", newOrderResponses(orders))
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", newOrderResponse(order))
}

// UpdateOrderStatus -> kitchen and staff move an order through its lifecycle
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.SetOrderStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", newOrderResponse(order))
}

// GetKitchenQueue lists pending and preparing orders, oldest first.
func (oc *OrderController) GetKitchenQueue(c *gin.Context) {
	orders, err := oc.Orders.KitchenQueue(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen queue", newOrderResponses(orders))
}

func (oc *OrderController) GetOrderStats(c *gin.Context) {
	stats, err := oc.Orders.OrderStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order statistics", stats)
}
