package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/application/dispatch"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/interfaces/http/dto"
)

// MaxIdempotencyKeyLength caps X-Idempotency-Key values
const MaxIdempotencyKeyLength = 255

// Idempotency replays the first successful response of a CREATE carrying
// X-Idempotency-Key. Keys are scoped to the resolved organization and route,
// so it must run after Identity.
func Idempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if !cfg.Enabled || store == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			AbortWithError(c, dispatch.ErrInvalidRequest.
				WithDetail("header", HeaderIdempotencyKey).
				WithHint("Idempotency keys are at most 255 characters"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			AbortWithError(c, BindError(err))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		rc, ok := GetResolvedContext(c)
		if !ok || !isCreate(body) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := rc.OrganizationID.String() + ":" + c.FullPath() + ":" + key
		stored, err := store.Begin(ctx, storeKey, cfg.LockTTL)
		switch {
		case errors.Is(err, shared.ErrIdempotencyInProgress):
			abortWithCode(c, http.StatusConflict, dto.CodeIdempotencyInProgress,
				"A request with this idempotency key is still being processed")
			return
		case err != nil:
			AbortWithError(c, shared.NewStoreError(err))
			return
		case stored != nil:
			c.Header(HeaderReplayed, "true")
			c.Data(stored.StatusCode, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// The request context may already be cancelled once the handler returns
		bg := context.WithoutCancel(ctx)
		status := w.Status()
		if status >= 200 && status < 300 {
			resp := shared.IdempotentResponse{
				StatusCode:  status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}
			if err := store.Complete(bg, storeKey, resp, cfg.TTL); err != nil {
				logger.L(ctx).Error("Failed to store idempotent response", zap.Error(err))
			}
			return
		}
		if err := store.Release(bg, storeKey); err != nil {
			logger.L(ctx).Error("Failed to release idempotency key", zap.Error(err))
		}
	}
}

// isCreate peeks at the operation of a generic request body
func isCreate(body []byte) bool {
	var head struct {
		Operation dispatch.Operation `json:"operation"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return false
	}
	return head.Operation == dispatch.OpCreate
}

// captureWriter copies the response body while writing it through
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
