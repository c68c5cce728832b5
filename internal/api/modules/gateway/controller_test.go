package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakopay/ussd/internal/engine"
	"github.com/sakopay/ussd/internal/stores/menu"
	"github.com/sakopay/ussd/internal/stores/session"
)

func TestLastInput(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", ""},
		{"1", "1"},
		{"1*2", "2"},
		{"1*250*0", "0"},
		// Caller pressed send with nothing typed mid-session
		{"1*", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, lastInput(tt.text), "text %q", tt.text)
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	menus := menu.NewInMemoryStore()
	require.NoError(t, menus.SaveService(ctx, &menu.Service{
		ServiceCode: "*384#",
		Name:        "SakoPay",
		RootMenu:    "main",
		Language:    "en",
		Currency:    "KES",
		Active:      true,
	}))
	require.NoError(t, menus.SaveMenu(ctx, &menu.Menu{
		MenuType: "main", Language: "en", Content: "Welcome to SakoPay",
		IsDefault: true, IsActive: true,
		Options: []*menu.Option{
			{Input: "1", Label: "Check Balance", Action: "check_balance"},
			{Input: "0", Label: "Exit", Action: "exit"},
		},
	}))
	require.NoError(t, menus.SaveMenu(ctx, &menu.Menu{
		MenuType: "check_balance", Language: "en", Content: "Your balance is KES 1,024.00",
		IsActive: true,
		Options: []*menu.Option{
			{Input: "0", Label: "Back", Action: "back"},
		},
	}))

	eng := engine.New(session.NewInMemoryStore(), menus, engine.Options{})

	router := gin.New()
	RegisterRoutes(router.Group("/api"), eng)
	return router
}

func postCallback(router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/gateway/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func TestCallback(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{
		"sessionId":   {"at-1"},
		"phoneNumber": {"+254700000001"},
		"serviceCode": {"*384#"},
		"text":        {""},
	}

	t.Run("first contact renders the root menu", func(t *testing.T) {
		w := postCallback(router, form)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "CON Welcome to SakoPay\n\n1. Check Balance\n0. Exit", w.Body.String())
	})

	t.Run("cumulative text resolves to the last keystroke", func(t *testing.T) {
		form.Set("text", "1")
		w := postCallback(router, form)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "CON Your balance is KES 1,024.00\n\n0. Back", w.Body.String())
	})

	t.Run("back returns to the root menu", func(t *testing.T) {
		form.Set("text", "1*0")
		w := postCallback(router, form)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "CON Welcome to SakoPay\n\n1. Check Balance\n0. Exit", w.Body.String())
	})

	t.Run("exit ends with END framing", func(t *testing.T) {
		form.Set("text", "1*0*0")
		w := postCallback(router, form)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "END "), "got %q", w.Body.String())
	})
}

func TestCallbackMissingIdentifiers(t *testing.T) {
	router := newTestRouter(t)

	w := postCallback(router, url.Values{
		"phoneNumber": {"+254700000001"},
		"serviceCode": {"*384#"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "END "), "got %q", w.Body.String())
}
