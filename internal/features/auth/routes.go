package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/pkg/jwt"
)

func RegisterRoutes(router *gin.RouterGroup, verifier TokenVerifier, identity *Identity, jwtCfg *jwt.Config) {
	handler := NewHandler(verifier, identity, jwtCfg)

	group := router.Group("/auth")
	{
		group.POST("/signin", handler.SignIn)
		group.POST("/signout", handler.SignOut)
		group.GET("/me", handler.Me)
	}
}
