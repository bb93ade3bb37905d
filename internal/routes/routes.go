package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/features/mapview"
	"github.com/tlemoine/signalmap/internal/features/orgs"
	"github.com/tlemoine/signalmap/internal/features/reports"
	"github.com/tlemoine/signalmap/internal/feed"
	"github.com/tlemoine/signalmap/internal/middleware"
	"github.com/tlemoine/signalmap/internal/pkg/jwt"
)

// Deps carries the wired engine pieces into the gateway.
type Deps struct {
	JWTCfg     *jwt.Config
	Verifier   auth.TokenVerifier
	Identity   *auth.Identity
	Reports    *reports.Handler
	Map        *mapview.Handler
	OrgsMirror *orgs.Mirror
	Hub        *feed.Hub
}

// SetupRoutes registers every gateway surface under /api/v1 plus the
// websocket feed.
func SetupRoutes(router *gin.Engine, d Deps) {
	api := router.Group("/api/v1")

	authRequired := middleware.Auth(d.JWTCfg)

	auth.RegisterRoutes(api, d.Verifier, d.Identity, d.JWTCfg)
	reports.RegisterRoutes(api, d.Reports, authRequired)
	mapview.RegisterRoutes(api, d.Map)
	orgs.RegisterRoutes(api, d.OrgsMirror)

	router.GET("/ws/feed", feed.ServeWS(d.Hub))
}
