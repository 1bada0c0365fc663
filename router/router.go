package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeremiapane/restaurant-orders/controllers"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/middlewares"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/services"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	DB             *gorm.DB
	Hub            *kds.Hub
	Orders         *services.OrderService
	ConnOptions    kds.ConnOptions
	AllowedOrigins []string
	TrustedProxies []string
	// RateLimiter guards the anonymous write endpoints. Nil disables it.
	RateLimiter *middlewares.RateLimiter
	// Clock drives the dashboard's notion of "today". Nil means wall time.
	Clock clockwork.Clock
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		utils.ErrorLogger.Errorf("invalid trusted proxies: %v", err)
	}

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(deps.AllowedOrigins))
	r.Use(middlewares.LoggerMiddleware())

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(deps.DB)
	tableCtrl := controllers.NewTableController(deps.DB, deps.Orders, deps.Clock)
	categoryCtrl := controllers.NewCategoryController(deps.DB)
	productCtrl := controllers.NewProductController(deps.DB)
	extraCtrl := controllers.NewExtraController(deps.DB)
	settingsCtrl := controllers.NewSettingsController(deps.DB)
	orderCtrl := controllers.NewOrderController(deps.Orders)
	adminCtrl := controllers.NewAdminController(deps.DB, deps.Hub, deps.Clock)
	kdsCtrl := controllers.NewKDSController(deps.Hub, deps.ConnOptions, deps.AllowedOrigins)

	limited := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limited = deps.RateLimiter.RateLimit()
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": deps.Hub.Registry.Count(kds.AudienceAll),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket; the token is optional and only narrows the roles a client
	// may declare when token role mode is on
	r.GET("/ws", middlewares.OptionalClaim(), kdsCtrl.KDSHandler)

	api := r.Group("/api")

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	api.POST("/auth/login", limited, userCtrl.Login)

	api.GET("/settings", settingsCtrl.GetSettings)

	api.GET("/categories", categoryCtrl.GetAllCategories)
	api.GET("/categories/:category_id", categoryCtrl.GetCategoryByID)
	api.GET("/products", productCtrl.GetAllProducts)
	api.GET("/products/:product_id", productCtrl.GetProductByID)
	api.GET("/extra-groups", extraCtrl.GetAllExtraGroups)
	api.GET("/extra-groups/:group_id", extraCtrl.GetExtraGroupByID)

	api.GET("/tables", tableCtrl.GetAllTables)
	api.GET("/tables/:table_id", tableCtrl.GetTableByID)
	api.POST("/tables/:table_id/call-waiter", limited, tableCtrl.CallWaiter)

	// Customers order without logging in; the kitchen screen reads and
	// updates orders without a token.
	orders := api.Group("/orders")
	{
		orders.POST("", limited, orderCtrl.CreateOrder)
		orders.GET("", orderCtrl.GetAllOrders)
		orders.GET("/stats", orderCtrl.GetOrderStats)
		orders.GET("/kitchen/pending", orderCtrl.GetKitchenQueue)
		orders.GET("/:order_id", orderCtrl.GetOrderByID)
		orders.PUT("/:order_id/status", orderCtrl.UpdateOrderStatus)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := api.Group("")
	auth.Use(middlewares.AuthMiddleware())
	auth.GET("/auth/me", userCtrl.GetProfile)

	admin := auth.Group("")
	admin.Use(middlewares.RequireRoles(models.RoleAdmin, models.RoleSupervisor))
	{
		admin.GET("/admin/dashboard", adminCtrl.GetDashboardStats)

		admin.GET("/tables/stats/summary", tableCtrl.GetTablesSummary)
		admin.POST("/tables", tableCtrl.CreateTable)
		admin.POST("/tables/bulk-create", tableCtrl.BulkCreateTables)
		admin.PUT("/tables/:table_id", tableCtrl.UpdateTable)
		admin.DELETE("/tables/:table_id", tableCtrl.DeleteTable)

		admin.POST("/categories", categoryCtrl.CreateCategory)
		admin.PUT("/categories/:category_id", categoryCtrl.UpdateCategory)
		admin.DELETE("/categories/:category_id", categoryCtrl.DeleteCategory)

		admin.POST("/products", productCtrl.CreateProduct)
		admin.PUT("/products/:product_id", productCtrl.UpdateProduct)
		admin.DELETE("/products/:product_id", productCtrl.DeleteProduct)
		admin.POST("/products/:product_id/extra-groups/:group_id", extraCtrl.AttachExtraGroup)
		admin.DELETE("/products/:product_id/extra-groups/:group_id", extraCtrl.DetachExtraGroup)

		admin.POST("/extra-groups", extraCtrl.CreateExtraGroup)
		admin.PUT("/extra-groups/:group_id", extraCtrl.UpdateExtraGroup)
		admin.DELETE("/extra-groups/:group_id", extraCtrl.DeleteExtraGroup)
		admin.POST("/extra-groups/:group_id/items", extraCtrl.AddExtraItem)
		admin.PUT("/extra-items/:item_id", extraCtrl.UpdateExtraItem)
		admin.DELETE("/extra-items/:item_id", extraCtrl.DeleteExtraItem)

		admin.PUT("/settings", settingsCtrl.UpdateSettings)
	}

	return r
}
