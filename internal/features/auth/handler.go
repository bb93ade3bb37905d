package auth

import (
	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/pkg/jwt"
	"github.com/tlemoine/signalmap/internal/pkg/response"
)

type Handler struct {
	verifier TokenVerifier
	identity *Identity
	jwtCfg   *jwt.Config
}

func NewHandler(verifier TokenVerifier, identity *Identity, jwtCfg *jwt.Config) *Handler {
	return &Handler{
		verifier: verifier,
		identity: identity,
		jwtCfg:   jwtCfg,
	}
}

// SignIn exchanges a Firebase ID token for a gateway session token and
// records the current user.
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}

	user, err := h.verifier.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		log.WithError(err).Warn("sign-in rejected")
		response.Unauthorized(c, "Invalid credentials", "AUTH_FAILED")
		return
	}

	token, err := jwt.GenerateToken(user.ID, user.Label, h.jwtCfg)
	if err != nil {
		response.InternalServerError(c, "Failed to create session", "INTERNAL_ERROR")
		return
	}

	h.identity.SignIn(user)
	log.WithField("user", user.Label).Info("user signed in")

	response.Success(c, SignInResponse{Token: token, User: user})
}

func (h *Handler) SignOut(c *gin.Context) {
	h.identity.SignOut()
	response.Success(c, gin.H{"signedOut": true})
}

// Me returns the current identity, if any.
func (h *Handler) Me(c *gin.Context) {
	user, ok := h.identity.Current()
	if !ok {
		response.Unauthorized(c, "Not signed in", "AUTH_REQUIRED")
		return
	}
	response.Success(c, user)
}
