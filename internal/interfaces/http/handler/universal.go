package handler

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/hera/backend/internal/application/dispatch"
	"github.com/hera/backend/internal/interfaces/http/middleware"
)

// Dispatcher runs generic CRUD requests on behalf of a caller
type Dispatcher interface {
	DispatchEntity(ctx context.Context, caller dispatch.Caller, req dispatch.EntityRequest) (*dispatch.EntityResult, error)
	DispatchTransaction(ctx context.Context, caller dispatch.Caller, req dispatch.TransactionRequest) (*dispatch.TransactionResult, error)
}

// UniversalHandler serves the generic entity and transaction endpoints
type UniversalHandler struct {
	BaseHandler
	dispatcher Dispatcher
}

// NewUniversalHandler creates a new UniversalHandler
func NewUniversalHandler(dispatcher Dispatcher) *UniversalHandler {
	return &UniversalHandler{dispatcher: dispatcher}
}

// Entities handles POST /entities
func (h *UniversalHandler) Entities(c *gin.Context) {
	var req dispatch.EntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, middleware.BindError(err))
		return
	}
	h.dispatchEntity(c, req)
}

// Transactions handles POST /transactions
func (h *UniversalHandler) Transactions(c *gin.Context) {
	var req dispatch.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, middleware.BindError(err))
		return
	}
	h.dispatchTransaction(c, req)
}

// commandEnvelope selects the table family of a legacy command
type commandEnvelope struct {
	Op string `json:"op"`
}

// Command handles POST /command. The op field selects the family and the rest
// of the body has the same shape as the family's own endpoint.
func (h *UniversalHandler) Command(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.HandleError(c, middleware.BindError(err))
		return
	}
	var env commandEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.HandleError(c, middleware.BindError(err))
		return
	}
	family, err := dispatch.ParseFamily(env.Op)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch family {
	case dispatch.FamilyEntities:
		var req dispatch.EntityRequest
		if err := binding.JSON.BindBody(body, &req); err != nil {
			h.HandleError(c, middleware.BindError(err))
			return
		}
		h.dispatchEntity(c, req)
	case dispatch.FamilyTransactions:
		var req dispatch.TransactionRequest
		if err := binding.JSON.BindBody(body, &req); err != nil {
			h.HandleError(c, middleware.BindError(err))
			return
		}
		h.dispatchTransaction(c, req)
	}
}

func (h *UniversalHandler) dispatchEntity(c *gin.Context, req dispatch.EntityRequest) {
	rc, _ := middleware.GetResolvedContext(c)
	result, err := h.dispatcher.DispatchEntity(c.Request.Context(), callerFrom(rc), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, req.Operation, result)
}

func (h *UniversalHandler) dispatchTransaction(c *gin.Context, req dispatch.TransactionRequest) {
	rc, _ := middleware.GetResolvedContext(c)
	result, err := h.dispatcher.DispatchTransaction(c.Request.Context(), callerFrom(rc), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, req.Operation, result)
}

func (h *UniversalHandler) respond(c *gin.Context, op dispatch.Operation, data any) {
	if op == dispatch.OpCreate {
		h.Created(c, data)
		return
	}
	h.Success(c, data)
}
