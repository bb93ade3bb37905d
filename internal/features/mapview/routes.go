package mapview

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	group := router.Group("/map")
	{
		group.GET("/viewport", handler.Viewport)
		group.GET("/markers", handler.Markers)
		group.POST("/click", handler.Click)
		group.POST("/recenter", handler.Recenter)
		group.POST("/mount", handler.Mount)
		group.POST("/invalidate", handler.Invalidate)
		group.POST("/locate", handler.Locate)
	}

	// The device shell pushes raw fixes here.
	router.POST("/geolocation", handler.PushFix)
}
