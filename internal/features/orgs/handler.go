package orgs

import (
	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/pkg/response"
)

type Handler struct {
	mirror *Mirror
}

func NewHandler(mirror *Mirror) *Handler {
	return &Handler{mirror: mirror}
}

func (h *Handler) List(c *gin.Context) {
	response.Success(c, h.mirror.Organizations())
}

func RegisterRoutes(router *gin.RouterGroup, mirror *Mirror) {
	handler := NewHandler(mirror)
	router.GET("/organizations", handler.List)
}
