package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoPolymarket/polychat/internal/agent"
	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/GoPolymarket/polychat/internal/middleware"
	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/stream"
	"github.com/GoPolymarket/polychat/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	err       error
	requestID string
}

func (f *fakeProvider) Build(ctx context.Context, requestID string) (*tools.Set, error) {
	f.requestID = requestID
	if f.err != nil {
		return nil, f.err
	}
	return tools.NewSet()
}

// fakeAgent plays a fixed script onto the sink.
type fakeAgent struct {
	history []model.Message
	script  func(sink agent.Sink) error
}

func (f *fakeAgent) Run(ctx context.Context, history []model.Message, set *tools.Set, sink agent.Sink) (*agent.Result, error) {
	f.history = history
	if err := f.script(sink); err != nil {
		return nil, err
	}
	return &agent.Result{MessageID: "msg-1", Steps: 1, FinishReason: agent.FinishStop}, nil
}

func replyWith(text string) func(agent.Sink) error {
	return func(s agent.Sink) error {
		if err := s.Start("msg-1"); err != nil {
			return err
		}
		if err := s.Text(text); err != nil {
			return err
		}
		if err := s.StepFinish(agent.FinishStop, agent.Usage{}); err != nil {
			return err
		}
		return s.Finish(agent.FinishStop, agent.Usage{})
	}
}

func newRouter(tp ToolProvider, ag Agent, cfg config.ChatConfig) *gin.Engine {
	if cfg.StreamFormat == "" {
		cfg.StreamFormat = "data"
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/api/chat", NewChatHandler(tp, ag, cfg).Chat)
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func assertGeneric500(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestChatStreamsAssistantText(t *testing.T) {
	ag := &fakeAgent{script: replyWith("Your address is 0xabc")}
	tp := &fakeProvider{}
	w := post(newRouter(tp, ag, config.ChatConfig{}), `{"messages":[{"role":"user","content":"what's my wallet address?"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Header().Get(stream.DataStreamHeader))
	assert.Contains(t, w.Body.String(), `0:"Your address is 0xabc"`)
	assert.True(t, strings.HasPrefix(w.Body.String(), `f:{"messageId":"msg-1"}`))
	require.Len(t, ag.history, 1)
	assert.Equal(t, model.RoleUser, ag.history[0].Role)
	assert.NotEmpty(t, tp.requestID)
}

func TestChatSSEFormat(t *testing.T) {
	ag := &fakeAgent{script: replyWith("hi")}
	w := post(newRouter(&fakeProvider{}, ag, config.ChatConfig{StreamFormat: "sse"}), `{"messages":[{"role":"user","content":"hello"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), "event:text")
}

func TestChatEmptyMessagesIsForwarded(t *testing.T) {
	ag := &fakeAgent{script: replyWith("")}
	w := post(newRouter(&fakeProvider{}, ag, config.ChatConfig{}), `{"messages":[]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, ag.history)
	assert.Empty(t, ag.history)
}

// emptyRejectingModel fails like hosted providers do on an empty message list.
type emptyRejectingModel struct {
	calls int
}

func (m *emptyRejectingModel) Stream(ctx context.Context, msgs []openai.ChatCompletionMessage, _ []openai.Tool) (agent.ChunkStream, error) {
	m.calls++
	if len(msgs) == 0 {
		return nil, errors.New("400 Bad Request: messages must not be empty")
	}
	return nil, errors.New("unexpected call")
}

func TestChatEmptyMessagesStreamsWithRunner(t *testing.T) {
	m := &emptyRejectingModel{}
	w := post(newRouter(&fakeProvider{}, agent.NewRunner(m, agent.Options{}), config.ChatConfig{}), `{"messages":[]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, m.calls)
	assert.Equal(t, "v1", w.Header().Get(stream.DataStreamHeader))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, `f:{"messageId":"msg-`))
	assert.Contains(t, body, `e:{"finishReason":"stop"`)
	assert.Contains(t, body, `d:{"finishReason":"stop"`)
	assert.NotContains(t, body, "3:")
}

func TestChatMalformedBody(t *testing.T) {
	bodies := map[string]string{
		"not json":         `not json`,
		"missing messages": `{}`,
		"wrong type":       `{"messages":"hello"}`,
		"tool role":        `{"messages":[{"role":"tool","content":"x"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			ag := &fakeAgent{script: replyWith("never")}
			w := post(newRouter(&fakeProvider{}, ag, config.ChatConfig{}), body)
			assertGeneric500(t, w)
			assert.Nil(t, ag.history)

			w = post(newRouter(&fakeProvider{}, ag, config.ChatConfig{ClassifyBadRequest: true}), body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Bad request"}`, w.Body.String())
		})
	}
}

func TestChatTooManyMessages(t *testing.T) {
	ag := &fakeAgent{script: replyWith("never")}
	body := `{"messages":[{"role":"user","content":"a"},{"role":"assistant","content":"b"},{"role":"user","content":"c"}]}`
	w := post(newRouter(&fakeProvider{}, ag, config.ChatConfig{MaxMessages: 2, ClassifyBadRequest: true}), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatToolInitFailure(t *testing.T) {
	tp := &fakeProvider{err: apperrors.NewUpstreamTool("tool initialization", errors.New("missing polymarket api credentials"))}
	ag := &fakeAgent{script: replyWith("never")}
	w := post(newRouter(tp, ag, config.ChatConfig{}), `{"messages":[{"role":"user","content":"hi"}]}`)

	assertGeneric500(t, w)
	assert.NotContains(t, w.Body.String(), "polymarket")
	assert.Nil(t, ag.history)
}

func TestChatModelFailureBeforeFirstByte(t *testing.T) {
	ag := &fakeAgent{script: func(agent.Sink) error {
		return apperrors.NewModelStream("open completion stream", errors.New("invalid api key sk-..."))
	}}
	w := post(newRouter(&fakeProvider{}, ag, config.ChatConfig{}), `{"messages":[{"role":"user","content":"hi"}]}`)
	assertGeneric500(t, w)
}

func TestChatFailureAfterStreamingStarted(t *testing.T) {
	ag := &fakeAgent{script: func(s agent.Sink) error {
		_ = s.Start("msg-1")
		_ = s.Text("partial")
		return apperrors.NewModelStream("read completion stream", errors.New("connection reset"))
	}}
	w := post(newRouter(&fakeProvider{}, ag, config.ChatConfig{}), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `0:"partial"`)
	assert.True(t, strings.HasSuffix(body, "3:\"Internal server error\"\n"))
	assert.NotContains(t, body, "connection reset")
}
