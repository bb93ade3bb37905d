package reports

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the report mirror, detail/delete and the form
// workflow onto the gateway. authRequired guards everything that writes.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, authRequired gin.HandlerFunc) {
	group := router.Group("/reports")
	{
		group.GET("", handler.List)
		group.GET("/:id", handler.Detail)
		group.DELETE("/:id", authRequired, handler.Delete)
	}

	form := router.Group("/form")
	form.Use(authRequired)
	{
		form.GET("", handler.ViewForm)
		form.POST("/open", handler.OpenForm)
		form.PATCH("", handler.PatchForm)
		form.POST("/photos", handler.AddPhotos)
		form.DELETE("/photos/:photoId", handler.RemovePhoto)
		form.POST("/submit", handler.SubmitForm)
		form.POST("/cancel", handler.CancelForm)
	}
}
