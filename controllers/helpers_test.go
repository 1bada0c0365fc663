package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-orders/controllers"
	"github.com/yeremiapane/restaurant-orders/database"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	DB     *gorm.DB
	Hub    *kds.Hub
	Orders *services.OrderService
	Clock  *clockwork.FakeClock
	Router *gin.Engine
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T, policy services.TransitionPolicy) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	hub := kds.NewHub(nil)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC))
	orders := services.NewOrderService(database.NewStore(db), hub, clock, policy)
	return &testEnv{DB: db, Hub: hub, Orders: orders, Clock: clock, Router: gin.New()}
}

func (e *testEnv) withOrderRoutes() *testEnv {
	oc := controllers.NewOrderController(e.Orders)
	e.Router.POST("/api/orders", oc.CreateOrder)
	e.Router.GET("/api/orders", oc.GetAllOrders)
	e.Router.GET("/api/orders/stats", oc.GetOrderStats)
	e.Router.GET("/api/orders/kitchen/pending", oc.GetKitchenQueue)
	e.Router.GET("/api/orders/:order_id", oc.GetOrderByID)
	e.Router.PUT("/api/orders/:order_id/status", oc.UpdateOrderStatus)
	return e
}

func (e *testEnv) withTableRoutes() *testEnv {
	tc := controllers.NewTableController(e.DB, e.Orders, e.Clock)
	e.Router.GET("/api/tables", tc.GetAllTables)
	e.Router.GET("/api/tables/stats/summary", tc.GetTablesSummary)
	e.Router.POST("/api/tables/bulk-create", tc.BulkCreateTables)
	e.Router.GET("/api/tables/:table_id", tc.GetTableByID)
	e.Router.POST("/api/tables", tc.CreateTable)
	e.Router.PUT("/api/tables/:table_id", tc.UpdateTable)
	e.Router.DELETE("/api/tables/:table_id", tc.DeleteTable)
	e.Router.POST("/api/tables/:table_id/call-waiter", tc.CallWaiter)
	return e
}

func (e *testEnv) seedTable(t *testing.T, name string, number int) models.Table {
	t.Helper()
	table := models.Table{Name: name, Number: number, IsActive: true}
	require.NoError(t, e.DB.Create(&table).Error)
	return table
}

func (e *testEnv) seedProduct(t *testing.T, name string, price float64) models.Product {
	t.Helper()
	product := models.Product{Name: name, Price: price, IsActive: true}
	require.NoError(t, e.DB.Create(&product).Error)
	return product
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, header ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

// recordingClient is a registry client that keeps every frame it is sent.
type recordingClient struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
}

func (c *recordingClient) ID() string { return c.id }

func (c *recordingClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *recordingClient) Close() error { return nil }

func (c *recordingClient) Frames() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.sent))
	for _, raw := range c.sent {
		var m map[string]interface{}
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}
