package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-orders/database"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/router"
	"github.com/yeremiapane/restaurant-orders/services"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	utils.InitLogger("warn", "text")
	utils.ConfigureJWT("integration-secret", time.Hour)
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	URL   string
	WSURL string
	DB    *gorm.DB
	Hub   *kds.Hub
}

// setupTestServer -> in-memory SQLite, seeded admin, full router behind a
// real HTTP server so WebSocket clients can connect
func setupTestServer(t *testing.T) *testServer {
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
	require.NoError(t, database.SeedAdmin(db, "admin", "admin123"))

	hub := kds.NewHub(kds.SelfDeclaredClassifier{})
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 18, 45, 0, 0, time.UTC))
	orders := services.NewOrderService(database.NewStore(db), hub, clock, services.PermissiveTransitions)

	r := router.SetupRouter(router.Deps{
		DB:             db,
		Hub:            hub,
		Orders:         orders,
		ConnOptions:    kds.ConnOptions{WriteWait: time.Second},
		AllowedOrigins: []string{"*"},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:   srv.URL,
		WSURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		DB:    db,
		Hub:   hub,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return resp.StatusCode, envelope.Data
}

func (s *testServer) connect(t *testing.T, clientType string) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(s.WSURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	if clientType != "" {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "register", "client_type": clientType}))
	}
	return conn
}

func readFrame(t *testing.T, conn *ws.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]interface{}
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func loginTest(t *testing.T, s *testServer) string {
	t.Helper()
	code, data := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, code)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(data, &login))
	require.NotEmpty(t, login.AccessToken)
	return login.AccessToken
}

// TestEndToEndIntegration menguji flow utama:
// 0. Admin login, creates a table and a product
// 1. Kitchen and admin screens connect and register
// 2. Customer places an order -> both screens receive order_created
// 3. Kitchen moves the order -> both screens receive order_updated
// 4. Customer calls a waiter -> only the admin screen is notified
func TestEndToEndIntegration(t *testing.T) {
	s := setupTestServer(t)
	token := loginTest(t, s)

	code, data := s.do(t, http.MethodPost, "/api/tables", token, map[string]interface{}{"name": "Table 1", "number": 1})
	require.Equal(t, http.StatusCreated, code)
	var table models.Table
	require.NoError(t, json.Unmarshal(data, &table))

	code, data = s.do(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "Ramen", "price": 8.5})
	require.Equal(t, http.StatusCreated, code)
	var product models.Product
	require.NoError(t, json.Unmarshal(data, &product))

	kitchen := s.connect(t, "kitchen")
	admin := s.connect(t, "admin")
	require.Eventually(t, func() bool {
		return s.Hub.Registry.Count(kds.AudienceKitchen) == 1 && s.Hub.Registry.Count(kds.AudienceAdmin) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, data = s.do(t, http.MethodPost, "/api/orders", "", map[string]interface{}{
		"table_id":       table.ID,
		"customer_notes": "less salt",
		"items": []map[string]interface{}{
			{"product_id": product.ID, "quantity": 2, "extras": map[string]interface{}{"egg": 1}},
		},
	})
	require.Equal(t, http.StatusCreated, code)
	var order struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &order))

	for _, conn := range []*ws.Conn{kitchen, admin} {
		ev := readFrame(t, conn)
		assert.Equal(t, "order_created", ev["type"])
		assert.Equal(t, float64(order.ID), ev["id"])
		assert.Equal(t, float64(table.ID), ev["table_id"])
		assert.Equal(t, "Table 1", ev["table_name"])
		assert.Equal(t, "pending", ev["status"])
		assert.Equal(t, "less salt", ev["customer_notes"])
		assert.Equal(t, 17.0, ev["total_amount"])
		items := ev["items"].([]interface{})
		require.Len(t, items, 1)
		item := items[0].(map[string]interface{})
		assert.Equal(t, "Ramen", item["product_name"])
		assert.Equal(t, float64(2), item["quantity"])
		assert.Equal(t, 17.0, item["subtotal"])
		assert.Equal(t, map[string]interface{}{"egg": float64(1)}, item["extras"])
	}

	code, _ = s.do(t, http.MethodPut, "/api/orders/"+strconv.Itoa(int(order.ID))+"/status", "", map[string]string{"status": "preparing"})
	require.Equal(t, http.StatusOK, code)

	for _, conn := range []*ws.Conn{kitchen, admin} {
		ev := readFrame(t, conn)
		assert.Equal(t, map[string]interface{}{
			"type":       "order_updated",
			"id":         float64(order.ID),
			"status":     "preparing",
			"table_name": "Table 1",
		}, ev)
	}

	code, data = s.do(t, http.MethodPost, "/api/tables/1/call-waiter", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"type":"waiter_call","delivered":1}`, string(data))

	ev := readFrame(t, admin)
	assert.Equal(t, "waiter_call", ev["type"])
	assert.Equal(t, "18:45", ev["timestamp"])

	// the kitchen gets nothing; the next frame it sees is its own pong
	require.NoError(t, kitchen.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, kitchen)["type"])
}

func TestBillRequestWithOnlyCustomers(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.DB.Create(&models.Table{Name: "Bar", Number: 3, IsActive: true}).Error)

	customer := s.connect(t, "customer")
	require.Eventually(t, func() bool { return s.Hub.Registry.Count(kds.AudienceAll) == 1 }, 2*time.Second, 10*time.Millisecond)

	code, data := s.do(t, http.MethodPost, "/api/tables/3/call-waiter", "", map[string]string{"type": "bill"})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"type":"bill_request","delivered":0}`, string(data))

	require.NoError(t, customer.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, customer)["type"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := setupTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/tables", "", map[string]interface{}{"name": "X", "number": 1})
	assert.Equal(t, http.StatusUnauthorized, code)

	kitchenToken, err := utils.GenerateToken(99, models.RoleKitchen)
	require.NoError(t, err)
	code, _ = s.do(t, http.MethodPost, "/api/tables", kitchenToken, map[string]interface{}{"name": "X", "number": 1})
	assert.Equal(t, http.StatusForbidden, code)

	for _, path := range []string{"/api/settings", "/api/extra-groups/1", "/api/categories/1"} {
		code, _ = s.do(t, http.MethodPut, path, "", map[string]interface{}{"name": "X"})
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
	code, _ = s.do(t, http.MethodGet, "/api/settings", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
