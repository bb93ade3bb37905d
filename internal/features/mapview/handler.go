package mapview

import (
	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/features/geolocate"
	"github.com/tlemoine/signalmap/internal/pkg/response"
)

type Handler struct {
	ctrl   *Controller
	bridge *geolocate.BridgeProvider
}

func NewHandler(ctrl *Controller, bridge *geolocate.BridgeProvider) *Handler {
	return &Handler{ctrl: ctrl, bridge: bridge}
}

func (h *Handler) Viewport(c *gin.Context) {
	response.Success(c, h.ctrl.Viewport())
}

func (h *Handler) Markers(c *gin.Context) {
	response.Success(c, gin.H{
		"markers":     h.ctrl.Markers(),
		"resizeEpoch": h.ctrl.ResizeEpoch(),
	})
}

type pointRequest struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// Click forwards a map click; the wired form workflow opens a session at
// the point.
func (h *Handler) Click(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}

	h.ctrl.Click(req.Latitude, req.Longitude)
	response.Success(c, gin.H{"selected": req})
}

type recenterRequest struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
	Zoom      int     `json:"zoom" binding:"required,min=1,max=20"`
}

func (h *Handler) Recenter(c *gin.Context) {
	var req recenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}

	moved := h.ctrl.Recenter(geolocate.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}, req.Zoom)
	response.Success(c, gin.H{"moved": moved, "viewport": h.ctrl.Viewport()})
}

// Mount is called once when the shell attaches the map surface.
func (h *Handler) Mount(c *gin.Context) {
	h.ctrl.Mount()
	response.Success(c, h.ctrl.Viewport())
}

// Invalidate is called by the shell on resize and orientation changes.
func (h *Handler) Invalidate(c *gin.Context) {
	response.Success(c, gin.H{"resizeEpoch": h.ctrl.ResizeInvalidate()})
}

// Locate runs a geolocation attempt. Failure is non-fatal: the response
// carries the fallback viewport plus the reason, and retrying is just
// calling this endpoint again.
func (h *Handler) Locate(c *gin.Context) {
	coord, err := h.ctrl.Locate(c.Request.Context())

	data := gin.H{
		"center":   coord,
		"viewport": h.ctrl.Viewport(),
	}
	if err != nil {
		data["error"] = err.Error()
		data["retry"] = true
	}
	response.Success(c, data)
}

// PushFix receives a device fix from the shell's location bridge.
func (h *Handler) PushFix(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}

	h.bridge.Report(geolocate.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude})
	response.Success(c, gin.H{"received": true})
}
