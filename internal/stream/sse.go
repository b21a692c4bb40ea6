package stream

import (
	"github.com/GoPolymarket/polychat/internal/agent"
	"github.com/gin-gonic/gin"
)

// SSEWriter emits named server-sent events through gin's SSE renderer.
type SSEWriter struct {
	c       *gin.Context
	started bool
}

func NewSSE(c *gin.Context) *SSEWriter {
	return &SSEWriter{c: c}
}

func (s *SSEWriter) Started() bool { return s.started }

func (s *SSEWriter) event(name string, data any) error {
	if !s.started {
		s.c.Header("Cache-Control", "no-cache")
		s.c.Header("Connection", "keep-alive")
		s.c.Header("X-Accel-Buffering", "no")
		s.started = true
	}
	s.c.SSEvent(name, data)
	s.c.Writer.Flush()
	return s.c.Request.Context().Err()
}

func (s *SSEWriter) Start(messageID string) error {
	return s.event("start", gin.H{"messageId": messageID})
}

func (s *SSEWriter) Text(delta string) error {
	return s.event("text", gin.H{"delta": delta})
}

func (s *SSEWriter) ToolCall(id, name, args string) error {
	return s.event("tool-call", toolCallPart{ToolCallID: id, ToolName: name, Args: argsValue(args)})
}

func (s *SSEWriter) ToolResult(id, result string, isErr bool) error {
	return s.event("tool-result", toolResult(id, result, isErr))
}

func (s *SSEWriter) StepFinish(reason string, usage agent.Usage) error {
	return s.event("step-finish", finishPart{FinishReason: reason, Usage: usage})
}

func (s *SSEWriter) Finish(reason string, usage agent.Usage) error {
	return s.event("finish", finishPart{FinishReason: reason, Usage: usage})
}

func (s *SSEWriter) Error(msg string) error {
	return s.event("error", gin.H{"error": msg})
}
