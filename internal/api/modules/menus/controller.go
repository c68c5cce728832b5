package menus

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sakopay/ussd/internal/stores/menu"
	"github.com/sakopay/ussd/pkg/sdk"
)

type controller struct {
	store menu.Store
}

// listMenus handles GET requests for all menu screens
func (ctrl *controller) listMenus(c *gin.Context) {
	menus, err := ctrl.store.ListMenus(c.Request.Context())
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to list menus", err.Error()).AsGinResponse())
		return
	}

	out := make([]sdk.Menu, 0, len(menus))
	for _, m := range menus {
		out = append(out, toSDKMenu(m))
	}

	c.JSON(sdk.NewSuccessResponse("Menus retrieved successfully", out).AsGinResponse())
}

// saveMenu handles POST requests creating or updating a menu screen
func (ctrl *controller) saveMenu(c *gin.Context) {
	// Parse request body
	var req sdk.Menu
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	m := toModelMenu(&req)
	if err := ctrl.store.SaveMenu(c.Request.Context(), m); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Failed to save menu", err.Error()).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Menu saved successfully", toSDKMenu(m)).AsGinResponse())
}

// deleteMenu handles DELETE requests removing a menu screen
func (ctrl *controller) deleteMenu(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid menu id", err.Error()).AsGinResponse())
		return
	}

	if err := ctrl.store.DeleteMenu(c.Request.Context(), uint(id)); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to delete menu", err.Error()).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse[any]("Menu deleted successfully", nil).AsGinResponse())
}

// listServices handles GET requests for all services
func (ctrl *controller) listServices(c *gin.Context) {
	services, err := ctrl.store.ListServices(c.Request.Context())
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to list services", err.Error()).AsGinResponse())
		return
	}

	out := make([]sdk.Service, 0, len(services))
	for _, svc := range services {
		out = append(out, toSDKService(svc))
	}

	c.JSON(sdk.NewSuccessResponse("Services retrieved successfully", out).AsGinResponse())
}

// saveService handles POST requests creating or updating a service
func (ctrl *controller) saveService(c *gin.Context) {
	// Parse request body
	var req sdk.Service
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	svc := toModelService(&req)
	if err := ctrl.store.SaveService(c.Request.Context(), svc); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Failed to save service", err.Error()).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Service saved successfully", toSDKService(svc)).AsGinResponse())
}

// Helper method to convert a sdk menu to its storage model
func toModelMenu(m *sdk.Menu) *menu.Menu {
	model := &menu.Menu{
		ID:              m.ID,
		MenuType:        m.MenuType,
		Language:        m.Language,
		Content:         m.Content,
		IsDefault:       m.IsDefault,
		IsActive:        m.IsActive,
		IsTransactional: m.IsTransactional,
		TimeoutSeconds:  m.TimeoutSeconds,
		CaptureKey:      m.CaptureKey,
		NextMenu:        m.NextMenu,
	}

	for i, opt := range m.Options {
		position := opt.Position
		if position == 0 {
			position = i + 1
		}
		model.Options = append(model.Options, &menu.Option{
			Input:    opt.Input,
			Label:    opt.Label,
			Action:   opt.Action,
			Position: position,
		})
	}

	return model
}

// Helper method to convert a storage menu to its sdk form
func toSDKMenu(m *menu.Menu) sdk.Menu {
	out := sdk.Menu{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		MenuType:        m.MenuType,
		Language:        m.Language,
		Content:         m.Content,
		IsDefault:       m.IsDefault,
		IsActive:        m.IsActive,
		IsTransactional: m.IsTransactional,
		TimeoutSeconds:  m.TimeoutSeconds,
		CaptureKey:      m.CaptureKey,
		NextMenu:        m.NextMenu,
	}

	for _, opt := range m.Options {
		out.Options = append(out.Options, sdk.MenuOption{
			Input:    opt.Input,
			Label:    opt.Label,
			Action:   opt.Action,
			Position: opt.Position,
		})
	}

	return out
}

// Helper method to convert a sdk service to its storage model
func toModelService(svc *sdk.Service) *menu.Service {
	language := svc.Language
	if language == "" {
		language = "en"
	}

	return &menu.Service{
		ID:          svc.ID,
		ServiceCode: svc.ServiceCode,
		Name:        svc.Name,
		RootMenu:    svc.RootMenu,
		Language:    language,
		Currency:    svc.Currency,
		Active:      svc.Active,
	}
}

// Helper method to convert a storage service to its sdk form
func toSDKService(svc *menu.Service) sdk.Service {
	return sdk.Service{
		ID:          svc.ID,
		ServiceCode: svc.ServiceCode,
		Name:        svc.Name,
		RootMenu:    svc.RootMenu,
		Language:    svc.Language,
		Currency:    svc.Currency,
		Active:      svc.Active,
	}
}
