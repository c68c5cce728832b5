package gateway

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/engine"
)

// Responses are plain text with a continue/end prefix, the framing used by
// Africa's Talking style gateways
const (
	prefixContinue = "CON "
	prefixEnd      = "END "
)

const transientFailureText = "We are experiencing technical difficulties. Please try again."

// makeCallback builds the gateway callback handler. The gateway POSTs form
// fields sessionId, phoneNumber, serviceCode and text on every keystroke
// and expects the next screen back as plain text
func makeCallback(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := engine.Request{
			SessionID:   c.PostForm("sessionId"),
			PhoneNumber: c.PostForm("phoneNumber"),
			ServiceCode: c.PostForm("serviceCode"),
			Input:       lastInput(c.PostForm("text")),
		}

		if req.SessionID == "" || req.PhoneNumber == "" {
			c.String(http.StatusBadRequest, prefixEnd+transientFailureText)
			return
		}

		reply, err := eng.Handle(c.Request.Context(), req)
		if err != nil {
			// Store faults and exhausted contention retries end up here;
			// the gateway owns retry semantics from this point
			log.Printf("[GATEWAY]: Failed to handle session %s: %v", req.SessionID, err)
			c.String(http.StatusOK, prefixEnd+transientFailureText)
			return
		}

		prefix := prefixEnd
		if reply.Active {
			prefix = prefixContinue
		}
		c.String(http.StatusOK, prefix+reply.Response)
	}
}

// lastInput extracts the caller's latest keystroke sequence from the
// gateway's cumulative "*"-joined text field. Empty on first contact
func lastInput(text string) string {
	if text == "" {
		return ""
	}

	parts := strings.Split(text, "*")
	return parts[len(parts)-1]
}
