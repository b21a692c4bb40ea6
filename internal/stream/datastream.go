package stream

import (
	"encoding/json"
	"net/http"

	"github.com/GoPolymarket/polychat/internal/agent"
)

const DataStreamHeader = "X-Vercel-AI-Data-Stream"

// DataStreamWriter emits the AI data stream protocol: one
// "<code>:<json>\n" line per part.
type DataStreamWriter struct {
	w       http.ResponseWriter
	started bool
}

func NewDataStream(w http.ResponseWriter) *DataStreamWriter {
	return &DataStreamWriter{w: w}
}

func (d *DataStreamWriter) Started() bool { return d.started }

func (d *DataStreamWriter) part(code string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !d.started {
		h := d.w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set(DataStreamHeader, "v1")
		h.Set("Cache-Control", "no-cache")
		d.w.WriteHeader(http.StatusOK)
		d.started = true
	}
	line := make([]byte, 0, len(code)+len(payload)+2)
	line = append(line, code...)
	line = append(line, ':')
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := d.w.Write(line); err != nil {
		return err
	}
	if f, ok := d.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

func (d *DataStreamWriter) Start(messageID string) error {
	return d.part("f", map[string]string{"messageId": messageID})
}

func (d *DataStreamWriter) Text(delta string) error {
	return d.part("0", delta)
}

func (d *DataStreamWriter) ToolCall(id, name, args string) error {
	return d.part("9", toolCallPart{ToolCallID: id, ToolName: name, Args: argsValue(args)})
}

func (d *DataStreamWriter) ToolResult(id, result string, isErr bool) error {
	return d.part("a", toolResult(id, result, isErr))
}

func (d *DataStreamWriter) StepFinish(reason string, usage agent.Usage) error {
	continued := false
	return d.part("e", finishPart{FinishReason: reason, Usage: usage, IsContinued: &continued})
}

func (d *DataStreamWriter) Finish(reason string, usage agent.Usage) error {
	return d.part("d", finishPart{FinishReason: reason, Usage: usage})
}

func (d *DataStreamWriter) Error(msg string) error {
	return d.part("3", msg)
}
