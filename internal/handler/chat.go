package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GoPolymarket/polychat/internal/agent"
	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/GoPolymarket/polychat/internal/middleware"
	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/GoPolymarket/polychat/internal/pkg/metrics"
	"github.com/GoPolymarket/polychat/internal/stream"
	"github.com/GoPolymarket/polychat/internal/tools"
	"github.com/gin-gonic/gin"
)

const badRequestMessage = "Bad request"

type ToolProvider interface {
	Build(ctx context.Context, requestID string) (*tools.Set, error)
}

type Agent interface {
	Run(ctx context.Context, history []model.Message, set *tools.Set, sink agent.Sink) (*agent.Result, error)
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	tools ToolProvider
	agent Agent
	cfg   config.ChatConfig
}

func NewChatHandler(tp ToolProvider, ag Agent, cfg config.ChatConfig) *ChatHandler {
	return &ChatHandler{tools: tp, agent: ag, cfg: cfg}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	reqID := middleware.GetRequestID(c)
	log := logger.With("request_id", reqID)

	// Received
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, apperrors.NewInvalidRequest("malformed chat body", err))
		return
	}
	if err := h.validate(req); err != nil {
		h.badRequest(c, err)
		return
	}
	history := *req.Messages

	// ToolsAcquired
	set, err := h.tools.Build(ctx, reqID)
	if err != nil {
		log.Error("tool initialization failed", "error", err)
		h.fail(c, "tools_failed")
		return
	}

	// Streaming
	var w stream.Writer
	if h.cfg.StreamFormat == "sse" {
		w = stream.NewSSE(c)
	} else {
		w = stream.NewDataStream(c.Writer)
	}
	res, err := h.agent.Run(ctx, history, set, w)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("chat canceled by client", "error", err)
			metrics.ChatRequests.WithLabelValues("canceled").Inc()
			return
		}
		log.Error("chat stream failed", "error", err, "started", w.Started())
		if !w.Started() {
			h.fail(c, "model_failed")
			return
		}
		if werr := w.Error(apperrors.GenericMessage); werr != nil {
			log.Warn("failed to write error part", "error", werr)
		}
		metrics.ChatRequests.WithLabelValues("stream_failed").Inc()
		return
	}

	log.Info("chat completed",
		"message_id", res.MessageID,
		"steps", res.Steps,
		"finish_reason", res.FinishReason,
		"prompt_tokens", res.Usage.PromptTokens,
		"completion_tokens", res.Usage.CompletionTokens,
	)
	metrics.ChatRequests.WithLabelValues("completed").Inc()
}

func (h *ChatHandler) validate(req model.ChatRequest) error {
	if req.Messages == nil {
		return apperrors.NewInvalidRequest("messages is required", nil)
	}
	msgs := *req.Messages
	if h.cfg.MaxMessages > 0 && len(msgs) > h.cfg.MaxMessages {
		return apperrors.NewInvalidRequest(fmt.Sprintf("too many messages: %d > %d", len(msgs), h.cfg.MaxMessages), nil)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return apperrors.NewInvalidRequest(fmt.Sprintf("messages[%d]: unsupported role %q", i, m.Role), nil)
		}
	}
	return nil
}

// badRequest answers 400 only when classification is enabled; otherwise the
// client sees the same generic failure as any other error.
func (h *ChatHandler) badRequest(c *gin.Context, err error) {
	logger.Warn("invalid chat request", "request_id", middleware.GetRequestID(c), "error", err)
	if h.cfg.ClassifyBadRequest {
		metrics.ChatRequests.WithLabelValues("bad_request").Inc()
		writeError(c, http.StatusBadRequest, badRequestMessage)
		return
	}
	h.fail(c, "bad_request")
}

func (h *ChatHandler) fail(c *gin.Context, outcome string) {
	metrics.ChatRequests.WithLabelValues(outcome).Inc()
	writeError(c, http.StatusInternalServerError, apperrors.GenericMessage)
}

func writeError(c *gin.Context, status int, msg string) {
	body, _ := json.Marshal(gin.H{"error": msg})
	c.Data(status, "application/json", body)
	c.Abort()
}
