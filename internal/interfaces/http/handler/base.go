// Package handler contains the HTTP handlers of the HERA access layer.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/application/dispatch"
	"github.com/hera/backend/internal/application/identity"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/interfaces/http/dto"
	"github.com/hera/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data, middleware.GetRequestID(c)))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data, middleware.GetRequestID(c)))
}

// HandleError sends the error envelope for err. Server-side failures are
// logged with their cause since the envelope hides it.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, resp := dto.FromError(err, middleware.GetRequestID(c))
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("Request failed",
			zap.String("code", resp.Error),
			zap.Error(err),
		)
	}
	c.JSON(status, resp)
}

// callerFrom converts the resolved identity into a dispatch caller
func callerFrom(rc *identity.ResolvedContext) dispatch.Caller {
	if rc == nil {
		return dispatch.Caller{}
	}
	actorID, orgID := rc.ActorID, rc.OrganizationID
	return dispatch.Caller{ActorID: &actorID, OrganizationID: &orgID}
}
