package model

import "time"

// ToolAudit records one tool invocation made on behalf of a chat request.
type ToolAudit struct {
	ID         string    `json:"id" db:"id"`
	RequestID  string    `json:"request_id" db:"request_id"`
	Tool       string    `json:"tool" db:"tool"`
	Arguments  string    `json:"arguments" db:"arguments"` // redacted
	ResultSize int       `json:"result_size" db:"result_size"`
	Error      string    `json:"error,omitempty" db:"error"`
	LatencyMs  int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
