package menus

import (
	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/stores/menu"
)

// RegisterRoutes registers the routes for the menu authoring module
func RegisterRoutes(g *gin.RouterGroup, store menu.Store) {
	ctrl := &controller{store: store}

	g.GET("/menus", ctrl.listMenus)          // List all menu screens
	g.POST("/menus", ctrl.saveMenu)          // Create or update a menu screen
	g.DELETE("/menus/:id", ctrl.deleteMenu)  // Delete a menu screen
	g.GET("/services", ctrl.listServices)    // List all services
	g.POST("/services", ctrl.saveService)    // Create or update a service
}
