// Package stream renders agent runs onto an HTTP response as they happen.
package stream

import (
	"encoding/json"

	"github.com/GoPolymarket/polychat/internal/agent"
)

// Writer is an agent.Sink bound to one response.
type Writer interface {
	agent.Sink
	// Error emits a terminal error part after streaming has begun.
	Error(msg string) error
	// Started reports whether any byte has reached the client.
	Started() bool
}

type flusher interface {
	Flush()
}

// jsonValue passes valid JSON through and quotes anything else.
func jsonValue(s string) json.RawMessage {
	if s != "" && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

func argsValue(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(s)
}

type toolCallPart struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type toolResultPart struct {
	ToolCallID string          `json:"toolCallId"`
	Result     json.RawMessage `json:"result"`
	IsError    bool            `json:"isError,omitempty"`
}

type finishPart struct {
	FinishReason string      `json:"finishReason"`
	Usage        agent.Usage `json:"usage"`
	IsContinued  *bool       `json:"isContinued,omitempty"`
}

func toolResult(id, result string, isErr bool) toolResultPart {
	p := toolResultPart{ToolCallID: id, IsError: isErr}
	if isErr {
		b, _ := json.Marshal(map[string]string{"error": result})
		p.Result = b
	} else {
		p.Result = jsonValue(result)
	}
	return p
}
