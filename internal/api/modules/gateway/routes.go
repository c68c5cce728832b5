package gateway

import (
	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/engine"
)

// RegisterRoutes registers the routes for the gateway module
func RegisterRoutes(g *gin.RouterGroup, eng *engine.Engine) {
	group := g.Group("/gateway")

	group.POST("/ussd", makeCallback(eng)) // Telecom gateway callback, one request per keystroke
}
