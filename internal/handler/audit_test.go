package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoPolymarket/polychat/internal/middleware"
	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	tool  string
	limit int
	err   error
}

func (f *fakeLister) List(ctx context.Context, tool string, limit int) ([]*model.ToolAudit, error) {
	f.tool, f.limit = tool, limit
	if f.err != nil {
		return nil, f.err
	}
	return []*model.ToolAudit{{ID: "1", Tool: tool}}, nil
}

func auditRouter(l AuditLister) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/api/audit/tools", middleware.AdminMiddleware("k"), NewAuditHandler(l).List)
	return r
}

func getAudit(r *gin.Engine, query string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/audit/tools"+query, nil)
	req.Header.Set(middleware.HeaderAdminKey, "k")
	r.ServeHTTP(w, req)
	return w
}

func TestAuditList(t *testing.T) {
	l := &fakeLister{}
	w := getAudit(auditRouter(l), "?tool=get_balance&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "get_balance", l.tool)
	assert.Equal(t, 5, l.limit)

	var body struct {
		Count   int               `json:"count"`
		Records []model.ToolAudit `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestAuditListErrors(t *testing.T) {
	w := getAudit(auditRouter(&fakeLister{}), "?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = getAudit(auditRouter(&fakeLister{err: errors.New("pq: relation missing")}), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", NewHealthHandler("0xabc", 137).Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
