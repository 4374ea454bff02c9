package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/pkg/errors"
	"github.com/mysterymsg/mystery/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxIdentityKey  = "identity"
	CtxAccountIDKey = "accountID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxIdentityKey, claims.Identity)
		c.Set(CtxAccountIDKey, claims.AccountID)

		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (iauth.Identity, bool) {
	value, ok := c.Get(CtxIdentityKey)
	if !ok {
		return iauth.Identity{}, false
	}
	identity, ok := value.(iauth.Identity)
	if !ok || identity.Validate() != nil {
		return iauth.Identity{}, false
	}
	return identity, true
}
