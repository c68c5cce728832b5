package simulator

import (
	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/engine"
	"github.com/sakopay/ussd/internal/stores/menu"
	"github.com/sakopay/ussd/internal/stores/session"
)

// RegisterRoutes registers the routes for the simulator module. The
// simulator gets its own injected in-memory session store so scratch
// sessions never touch the production store, and concurrent admin users
// are isolated behind the store's lock instead of sharing handler state
func RegisterRoutes(g *gin.RouterGroup, menus menu.Store, opts engine.Options) {
	// Scratch sessions only; transactions are never recorded from here
	opts.Transactions = nil

	scratch := session.NewInMemoryStore()
	ctrl := &controller{
		engine:   engine.New(scratch, menus, opts),
		sessions: scratch,
	}

	group := g.Group("/simulator")
	group.POST("/simulate", ctrl.simulate) // Drive one keystroke against a scratch session
}
