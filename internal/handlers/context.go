package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/auditctx"
	iauth "github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/middleware"
	appErrors "github.com/mysterymsg/mystery/pkg/errors"
	"github.com/mysterymsg/mystery/pkg/response"
)

// requestContext returns the request context carrying the caller as an audit actor, with a
// background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}

	ctx := context.Background()
	actor := auditctx.Actor{}
	if req := c.Request; req != nil {
		ctx = req.Context()
		actor.IPAddress = c.ClientIP()
		actor.UserAgent = req.UserAgent()
	}
	if identity, ok := middleware.IdentityFrom(c); ok {
		actor.AccountID = identity.AccountID
		actor.Username = identity.Username
	}
	return auditctx.WithActor(ctx, actor)
}

// requireIdentity returns the caller identity placed by the auth middleware, writing a 401
// when it is missing.
func requireIdentity(c *gin.Context) (iauth.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return iauth.Identity{}, false
	}
	return identity, true
}
