package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/GoPolymarket/polychat/internal/pkg/metrics"
	"github.com/GoPolymarket/polychat/internal/tools"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishToolCalls     = "tool-calls"
	FinishContentFilter = "content-filter"
	FinishMaxSteps      = "max_steps"
	FinishUnknown       = "unknown"
)

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

func (u *Usage) add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
}

// Sink receives the run as it happens. A Sink error aborts the run.
type Sink interface {
	Start(messageID string) error
	Text(delta string) error
	ToolCall(id, name, args string) error
	ToolResult(id, result string, isErr bool) error
	StepFinish(reason string, usage Usage) error
	Finish(reason string, usage Usage) error
}

type Options struct {
	MaxSteps     int
	ToolTimeout  time.Duration
	SystemPrompt string
}

// Runner drives the model/tool loop for one conversation at a time.
type Runner struct {
	model Model
	opts  Options
}

func NewRunner(m Model, opts Options) *Runner {
	if opts.MaxSteps < 1 {
		opts.MaxSteps = 5
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 15 * time.Second
	}
	return &Runner{model: m, opts: opts}
}

type Result struct {
	MessageID    string
	Steps        int
	FinishReason string
	Usage        Usage
	Text         string
}

type toolCall struct {
	id   string
	name string
	args strings.Builder
}

type step struct {
	text   strings.Builder
	calls  []*toolCall
	reason string
	usage  Usage
}

// Run streams a completion for history using set, executing tool calls
// between rounds until the model stops or MaxSteps rounds have run.
func (r *Runner) Run(ctx context.Context, history []model.Message, set *tools.Set, sink Sink) (*Result, error) {
	msgs := r.buildMessages(history)
	oaTools := OpenAITools(set)
	res := &Result{MessageID: "msg-" + uuid.NewString()}
	var fullText strings.Builder

	defer func() { metrics.AgentSteps.Observe(float64(res.Steps)) }()

	if len(msgs) == 0 {
		return res, r.finishEmpty(res, sink)
	}

	for res.Steps < r.opts.MaxSteps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stream, err := r.model.Stream(ctx, msgs, oaTools)
		if err != nil {
			return res, apperrors.NewModelStream("open completion stream", err)
		}
		if res.Steps == 0 {
			if err := sink.Start(res.MessageID); err != nil {
				stream.Close()
				return res, err
			}
		}
		res.Steps++

		st, err := r.consume(stream, sink)
		stream.Close()
		if err != nil {
			return res, err
		}
		res.Usage.add(st.usage)
		fullText.WriteString(st.text.String())

		if len(st.calls) == 0 {
			if err := sink.StepFinish(st.reason, st.usage); err != nil {
				return res, err
			}
			res.FinishReason = st.reason
			res.Text = fullText.String()
			return res, sink.Finish(st.reason, res.Usage)
		}

		assistant := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: st.text.String(),
		}
		for _, c := range st.calls {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
				ID:       c.id,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: c.name, Arguments: c.args.String()},
			})
		}
		msgs = append(msgs, assistant)

		for _, c := range st.calls {
			args := c.args.String()
			if err := sink.ToolCall(c.id, c.name, args); err != nil {
				return res, err
			}
			out, isErr := r.execTool(ctx, set, c.name, args)
			if err := sink.ToolResult(c.id, out, isErr); err != nil {
				return res, err
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				Name:       c.name,
				ToolCallID: c.id,
			})
		}
		if err := sink.StepFinish(FinishToolCalls, st.usage); err != nil {
			return res, err
		}
	}

	res.FinishReason = FinishMaxSteps
	res.Text = fullText.String()
	logger.Info("agent run hit step limit", "message_id", res.MessageID, "steps", res.Steps)
	return res, sink.Finish(FinishMaxSteps, res.Usage)
}

// finishEmpty answers a conversation with nothing to send with an empty,
// well-formed stream. Providers reject an empty message list.
func (r *Runner) finishEmpty(res *Result, sink Sink) error {
	res.FinishReason = FinishStop
	if err := sink.Start(res.MessageID); err != nil {
		return err
	}
	if err := sink.StepFinish(FinishStop, Usage{}); err != nil {
		return err
	}
	return sink.Finish(FinishStop, Usage{})
}

func (r *Runner) buildMessages(history []model.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if r.opts.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: r.opts.SystemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}

// consume reads one round, forwarding text deltas and assembling tool calls.
func (r *Runner) consume(stream ChunkStream, sink Sink) (*step, error) {
	st := &step{}
	byIndex := map[int]*toolCall{}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewModelStream("read completion stream", err)
		}
		if chunk.Usage != nil {
			st.usage = Usage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens}
		}
		for _, choice := range chunk.Choices {
			if d := choice.Delta.Content; d != "" {
				st.text.WriteString(d)
				if err := sink.Text(d); err != nil {
					return nil, err
				}
			}
			for i, tc := range choice.Delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				call, ok := byIndex[idx]
				if !ok {
					call = &toolCall{}
					byIndex[idx] = call
					st.calls = append(st.calls, call)
				}
				if tc.ID != "" {
					call.id = tc.ID
				}
				if tc.Function.Name != "" {
					call.name = tc.Function.Name
				}
				call.args.WriteString(tc.Function.Arguments)
			}
			if choice.FinishReason != "" {
				st.reason = mapFinishReason(choice.FinishReason)
			}
		}
	}

	for _, c := range st.calls {
		if c.id == "" {
			c.id = "call_" + uuid.NewString()
		}
	}
	if st.reason == "" {
		st.reason = FinishUnknown
	}
	return st, nil
}

// execTool runs one call. Failures are returned as error results for the model.
func (r *Runner) execTool(ctx context.Context, set *tools.Set, name, args string) (string, bool) {
	def, ok := set.Get(name)
	if !ok {
		metrics.ToolCalls.WithLabelValues("unknown", "not_found").Inc()
		logger.Warn("model requested unknown tool", "tool", name)
		return fmt.Sprintf("tool %q not found", name), true
	}

	tctx, cancel := context.WithTimeout(ctx, r.opts.ToolTimeout)
	defer cancel()

	start := time.Now()
	out, err := def.Function(tctx, json.RawMessage(args))
	if err != nil {
		metrics.ToolCalls.WithLabelValues(name, "error").Inc()
		logger.Warn("tool call failed", "tool", name, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return err.Error(), true
	}
	metrics.ToolCalls.WithLabelValues(name, "ok").Inc()
	logger.Debug("tool call finished", "tool", name, "duration_ms", time.Since(start).Milliseconds(), "output_size", len(out))
	return out, false
}

func mapFinishReason(r openai.FinishReason) string {
	switch r {
	case openai.FinishReasonStop:
		return FinishStop
	case openai.FinishReasonLength:
		return FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishToolCalls
	case openai.FinishReasonContentFilter:
		return FinishContentFilter
	default:
		return FinishUnknown
	}
}

// OpenAITools converts a tool set into function tool declarations.
func OpenAITools(set *tools.Set) []openai.Tool {
	defs := set.List()
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		})
	}
	return out
}
