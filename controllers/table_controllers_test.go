package controllers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/services"
)

func TestTableCRUD(t *testing.T) {
	env := newTestEnv(t, services.PermissiveTransitions).withTableRoutes()

	w, resp := doJSON(t, env.Router, http.MethodPost, "/api/tables", map[string]interface{}{"name": "Garden", "number": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.True(t, created.IsActive)

	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables", map[string]interface{}{"name": "Dup", "number": 5})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables", map[string]interface{}{"number": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/api/tables/%d", created.ID)
	w, resp = doJSON(t, env.Router, http.MethodPut, path, map[string]interface{}{"name": "Garden 5"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "Garden 5", updated.Name)
	assert.Equal(t, 5, updated.Number)

	w, resp = doJSON(t, env.Router, http.MethodGet, "/api/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "List of tables", resp.Message)
	var tables []models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	assert.Len(t, tables, 1)

	w, _ = doJSON(t, env.Router, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, resp = doJSON(t, env.Router, http.MethodGet, "/api/tables", nil)
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	assert.Empty(t, tables, "deleted tables are hidden")

	w, resp = doJSON(t, env.Router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, "deleted tables still resolve")
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.False(t, updated.IsActive)

	w, _ = doJSON(t, env.Router, http.MethodGet, "/api/tables/777", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallWaiter(t *testing.T) {
	env := newTestEnv(t, services.PermissiveTransitions).withTableRoutes()
	table := env.seedTable(t, "Table 9", 9)

	admin := &recordingClient{id: "admin"}
	kitchen := &recordingClient{id: "kitchen"}
	env.Hub.Registry.Register(admin, kds.RoleAdmin)
	env.Hub.Registry.Register(kitchen, kds.RoleKitchen)

	w, resp := doJSON(t, env.Router, http.MethodPost, fmt.Sprintf("/api/tables/%d/call-waiter", table.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"type":"waiter_call","delivered":1}`, string(resp.Data))

	// by table number
	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables/9/call-waiter", map[string]string{"type": "bill"})
	require.Equal(t, http.StatusOK, w.Code)

	frames := admin.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "waiter_call", frames[0]["type"])
	assert.Equal(t, "Table 9", frames[0]["table_name"])
	assert.Equal(t, "12:30", frames[0]["timestamp"])
	assert.Equal(t, "bill_request", frames[1]["type"])
	assert.Empty(t, kitchen.Frames())

	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables/404/call-waiter", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, env.Router, http.MethodPost, fmt.Sprintf("/api/tables/%d/call-waiter", table.ID), map[string]string{"type": "dessert"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkCreateTables(t *testing.T) {
	env := newTestEnv(t, services.PermissiveTransitions).withTableRoutes()
	env.seedTable(t, "Existing", 2)

	w, resp := doJSON(t, env.Router, http.MethodPost, "/api/tables/bulk-create", []map[string]interface{}{
		{"name": "Table 1", "number": 1},
		{"name": "Clash", "number": 2},
		{"name": "Table 3", "number": 3},
		{"name": "Repeat", "number": 3},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "2 tables created", resp.Message)

	var body struct {
		Tables  []models.Table `json:"tables"`
		Skipped []int          `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	require.Len(t, body.Tables, 2)
	assert.Equal(t, "Table 1", body.Tables[0].Name)
	assert.Equal(t, "Table 3", body.Tables[1].Name)
	assert.True(t, body.Tables[1].IsActive)
	assert.Equal(t, []int{2, 3}, body.Skipped)

	var count int64
	require.NoError(t, env.DB.Model(&models.Table{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables/bulk-create", []map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables/bulk-create", []map[string]interface{}{{"name": "Zero", "number": 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = doJSON(t, env.Router, http.MethodPost, "/api/tables/bulk-create", map[string]interface{}{"name": "Not a list", "number": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTablesSummary(t *testing.T) {
	env := newTestEnv(t, services.PermissiveTransitions).withTableRoutes()
	busy := env.seedTable(t, "Busy", 1)
	served := env.seedTable(t, "Served", 2)
	stale := env.seedTable(t, "Stale", 3)
	env.seedTable(t, "Empty", 4)
	closed := env.seedTable(t, "Closed", 5)
	require.NoError(t, env.DB.Model(&closed).Update("is_active", false).Error)
	product := env.seedProduct(t, "Tea", 2)

	ctx := context.Background()
	place := func(table models.Table) *models.Order {
		order, err := env.Orders.CreateOrder(ctx, services.CreateOrderRequest{
			TableID: table.ID,
			Items:   []services.OrderLine{{ProductID: product.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		return order
	}

	place(busy)
	place(busy)
	place(closed)
	done := place(served)
	_, err := env.Orders.SetOrderStatus(ctx, done.ID, "delivered")
	require.NoError(t, err)
	old := place(stale)
	require.NoError(t, env.DB.Model(&models.Order{}).Where("id = ?", old.ID).
		Update("created_at", env.Clock.Now().Add(-3*time.Hour)).Error)

	w, resp := doJSON(t, env.Router, http.MethodGet, "/api/tables/stats/summary", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"total_tables":4,"active_tables":1,"available_tables":3}`, string(resp.Data))
}
