package simulator

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/engine"
	"github.com/sakopay/ussd/internal/stores/session"
	"github.com/sakopay/ussd/pkg/sdk"
)

type controller struct {
	engine   *engine.Engine
	sessions session.Store
}

// simulate handles POST requests driving one keystroke of a menu-tree
// simulation. No gateway session id exists here, so scratch sessions are
// keyed by (phone_number, service_code); an empty input starts the
// interaction over, mirroring a fresh dial
func (ctrl *controller) simulate(c *gin.Context) {
	// Parse request body
	var req sdk.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	sessionID := scratchSessionID(req.PhoneNumber, req.ServiceCode)

	// A fresh dial replaces whatever scratch session was left behind
	if req.Input == "" {
		_ = ctrl.sessions.DeleteSession(c.Request.Context(), sessionID)
	}

	reply, err := ctrl.engine.Handle(c.Request.Context(), engine.Request{
		SessionID:   sessionID,
		PhoneNumber: req.PhoneNumber,
		ServiceCode: req.ServiceCode,
		Input:       req.Input,
	})
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to simulate step", err.Error()).AsGinResponse())
		return
	}

	// Ended simulations are discarded so the next dial starts clean
	if !reply.Active {
		_ = ctrl.sessions.DeleteSession(c.Request.Context(), sessionID)
	}

	resp := sdk.SimulateResponse{
		Response:      reply.Response,
		SessionActive: reply.Active,
		CurrentMenu:   reply.CurrentMenu,
	}

	c.JSON(sdk.NewSuccessResponse("Step simulated successfully", resp).AsGinResponse())
}

// scratchSessionID derives a stable session key for simulation mode
func scratchSessionID(phoneNumber, serviceCode string) string {
	return fmt.Sprintf("sim:%s:%s", phoneNumber, serviceCode)
}
