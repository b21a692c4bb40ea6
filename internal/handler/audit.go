package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

type AuditLister interface {
	List(ctx context.Context, tool string, limit int) ([]*model.ToolAudit, error)
}

type AuditHandler struct {
	svc AuditLister
}

func NewAuditHandler(svc AuditLister) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List serves GET /api/audit/tools?tool=&limit=.
func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.Error(apperrors.NewInvalidRequest("limit must be between 1 and 1000", err))
			return
		}
		limit = parsed
	}

	records, err := h.svc.List(c.Request.Context(), c.Query("tool"), limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}
