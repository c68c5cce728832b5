package api

import (
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/engine"
	"github.com/sakopay/ussd/internal/reaper"
	"github.com/sakopay/ussd/internal/stores/menu"
	"github.com/sakopay/ussd/internal/stores/session"
	"github.com/sakopay/ussd/internal/stores/transaction"
	"github.com/sakopay/ussd/pkg/utils"

	gateway_module "github.com/sakopay/ussd/internal/api/modules/gateway"
	health_module "github.com/sakopay/ussd/internal/api/modules/health"
	menus_module "github.com/sakopay/ussd/internal/api/modules/menus"
	simulator_module "github.com/sakopay/ussd/internal/api/modules/simulator"
)

func Start(cfg *utils.Config) {
	// Initialized configuration settings
	port := cfg.GetWithDefault("API_PORT", "8080")
	if mode := cfg.Get("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}

	databaseURL := cfg.Get("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("[API-MAIN]: DATABASE_URL not set in environment")
	}

	// Initialize stores
	menuStore, err := menu.NewMySqlStore(databaseURL)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to initialize menu store: ", err)
	}

	sessionStore, err := session.NewMySqlStore(databaseURL)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to initialize session store: ", err)
	}

	transactionStore, err := transaction.NewMySqlStore(databaseURL)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to initialize transaction store: ", err)
	}

	// Initialize the interpreter engine over the production stores
	engineOpts := engine.Options{
		DefaultTimeout:    cfg.GetDurationWithDefault("USSD_DEFAULT_TIMEOUT_SECONDS", 90*time.Second),
		MaxInvalidRetries: cfg.GetIntWithDefault("USSD_MAX_INVALID_RETRIES", 0),
	}

	gatewayOpts := engineOpts
	gatewayOpts.Transactions = transactionStore
	eng := engine.New(sessionStore, menuStore, gatewayOpts)

	// Start the session reaper
	rp, err := reaper.New(sessionStore, cfg.GetWithDefault("USSD_REAPER_INTERVAL", "@every 30s"))
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to initialize reaper: ", err)
	}
	rp.Start()
	defer rp.Stop()

	// Add app level settings/routes
	router := gin.Default()

	// Add trusted proxies
	router.SetTrustedProxies(nil)

	// Add CORS using gin-contrib/cors (https://github.com/gin-contrib/cors for documentation)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.GetWithDefault("CORS_ALLOWED_ORIGINS", "*"), ","),
		AllowMethods:     []string{"OPTIONS", "GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Base group '/api' for all API routes
	baseGroup := router.Group("/api")

	// Adding custom modules
	health_module.RegisterRoutes(baseGroup)
	gateway_module.RegisterRoutes(baseGroup, eng)
	simulator_module.RegisterRoutes(baseGroup, menuStore, engineOpts)
	menus_module.RegisterRoutes(baseGroup, menuStore)

	// Then after performing initial setup, start the server
	if err := router.Run(":" + port); err != nil {
		log.Fatal("[API-MAIN]: Failed to start server: ", err)
	}
}
