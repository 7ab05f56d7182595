package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskhub/internal/middleware"
	"github.com/charlesng35/taskhub/internal/realtime"
	"github.com/charlesng35/taskhub/internal/services"
	"github.com/charlesng35/taskhub/pkg/errors"
	"github.com/charlesng35/taskhub/pkg/response"
)

// DeviceHandler manages push registrations and the realtime device stream.
type DeviceHandler struct {
	devices *services.DeviceTokenStore
	hub     *realtime.Hub
}

// NewDeviceHandler constructs a device handler. hub may be nil when realtime push is disabled.
func NewDeviceHandler(devices *services.DeviceTokenStore, hub *realtime.Hub) (*DeviceHandler, error) {
	if devices == nil {
		return nil, errors.New("DEVICE_HANDLER", "device token store is required", http.StatusInternalServerError)
	}
	return &DeviceHandler{devices: devices, hub: hub}, nil
}

type registerDeviceRequest struct {
	Token    string `json:"token" validate:"required,notblank,max=512"`
	Platform string `json:"platform" validate:"omitempty,max=32"`
}

type removeDeviceRequest struct {
	Token string `json:"token" validate:"required,notblank,max=512"`
}

// Register binds a device token to the caller. Re-registering moves the token.
func (h *DeviceHandler) Register(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req registerDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	device, err := h.devices.Register(requestContext(c), userID, req.Token, req.Platform)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, device)
}

// Remove drops one of the caller's device tokens.
func (h *DeviceHandler) Remove(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req removeDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.devices.Remove(requestContext(c), userID, req.Token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// Stream upgrades the request to a websocket that receives pushes addressed to device_token.
// The token is (re)registered to the caller before upgrading.
func (h *DeviceHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	token := strings.TrimSpace(c.Query("device_token"))
	if token == "" {
		response.Error(c, errors.NewBadRequest("device_token is required"))
		return
	}

	if _, err := h.devices.Register(requestContext(c), userID, token, "web"); err != nil {
		response.Error(c, err)
		return
	}

	h.hub.Serve(userID, token, c.Writer, c.Request)
}
