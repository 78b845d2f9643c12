package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/hera/backend/internal/application/identity"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/infrastructure/telemetry"
)

// IdentityResolver resolves a request's credential and tenant hint
type IdentityResolver interface {
	Resolve(ctx context.Context, input identity.ResolveInput) (*identity.ResolvedContext, error)
}

const resolvedContextKey = "resolved_context"

// Identity resolves the caller before any handler runs. Requests that do not
// resolve to an actor and a member organization are aborted.
func Identity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rc, err := resolver.Resolve(ctx, identity.ResolveInput{
			BearerToken:        bearerToken(c.GetHeader("Authorization")),
			OrganizationHeader: c.GetHeader(HeaderOrganizationID),
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(resolvedContextKey, rc)
		ctx = logger.WithActorID(ctx, rc.ActorID.String())
		ctx = logger.WithOrganizationID(ctx, rc.OrganizationID.String())
		telemetry.SetAttributes(trace.SpanFromContext(ctx),
			"organization_id", rc.OrganizationID.String(),
			"actor_id", rc.ActorID.String(),
			"organization_source", string(rc.OrganizationSource))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetResolvedContext returns the caller resolved by Identity
func GetResolvedContext(c *gin.Context) (*identity.ResolvedContext, bool) {
	v, ok := c.Get(resolvedContextKey)
	if !ok {
		return nil, false
	}
	rc, ok := v.(*identity.ResolvedContext)
	return rc, ok && rc != nil
}

// bearerToken extracts the credential from an Authorization header
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
