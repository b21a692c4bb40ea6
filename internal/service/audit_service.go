package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
)

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.ToolAudit) error
	List(ctx context.Context, tool string, limit int) ([]*model.ToolAudit, error)
}

// AuditService writes tool audit records asynchronously to a JSONL file and,
// when configured, to a repository. Recent records stay in a ring buffer.
type AuditService struct {
	logChan chan *model.ToolAudit
	logFile *os.File
	buffer  *auditBuffer
	repo    AuditRepo
	done    chan struct{}
	closeMu sync.Once
}

// NewAuditService starts the writer goroutine. An empty logDir disables the file sink.
func NewAuditService(logDir string, bufferSize int, repo AuditRepo) (*AuditService, error) {
	var f *os.File
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		filename := filepath.Join(logDir, "tool-audit-"+time.Now().UTC().Format("2006-01-02")+".jsonl")
		var err error
		f, err = os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	svc := &AuditService{
		logChan: make(chan *model.ToolAudit, bufferSize),
		logFile: f,
		buffer:  newAuditBuffer(bufferSize),
		repo:    repo,
		done:    make(chan struct{}),
	}
	go svc.processLogs()
	return svc, nil
}

func (s *AuditService) Log(entry *model.ToolAudit) {
	if entry == nil {
		return
	}
	entry.Arguments = RedactArguments(entry.Arguments)
	s.buffer.Add(entry)
	select {
	case s.logChan <- entry:
	default:
		// never block a chat stream on audit I/O
		logger.Warn("tool audit buffer full, dropping entry", "tool", entry.Tool)
	}
}

func (s *AuditService) List(ctx context.Context, tool string, limit int) ([]*model.ToolAudit, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, tool, limit)
		if err == nil {
			return records, nil
		}
		logger.Warn("tool audit repo list failed, serving buffer", "error", err)
	}
	return s.buffer.List(tool, limit), nil
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	var encoder *json.Encoder
	if s.logFile != nil {
		encoder = json.NewEncoder(s.logFile)
	}
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.Error("failed to write tool audit to db", "error", err)
			}
		}
		if encoder != nil {
			if err := encoder.Encode(entry); err != nil {
				logger.Error("failed to write tool audit file", "error", err)
			}
		}
	}
}

// Close drains pending records and closes the file.
func (s *AuditService) Close() {
	s.closeMu.Do(func() {
		close(s.logChan)
		<-s.done
		if s.logFile != nil {
			s.logFile.Close()
		}
	})
}

var sensitiveArgKeys = []string{"secret", "passphrase", "private_key", "privatekey", "api_key", "apikey", "signature", "mnemonic"}

// RedactArguments masks sensitive fields in a JSON object of tool arguments.
// Non-object or invalid input is replaced wholesale.
func RedactArguments(args string) string {
	if strings.TrimSpace(args) == "" {
		return args
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(args), &data); err != nil {
		return "[redacted]"
	}
	redactMap(data)
	out, err := json.Marshal(data)
	if err != nil {
		return "[redacted]"
	}
	return string(out)
}

func redactMap(data map[string]any) {
	for k, v := range data {
		if isSensitiveKey(k) {
			data[k] = "***"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			redactMap(nested)
		}
	}
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, s := range sensitiveArgKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.ToolAudit
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.ToolAudit, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.ToolAudit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List returns newest first.
func (b *auditBuffer) List(tool string, limit int) []*model.ToolAudit {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.ToolAudit, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		var idx int
		if total < b.maxSize {
			idx = total - 1 - i
		} else {
			idx = (b.nextIndex + total - 1 - i) % total
		}
		entry := b.records[idx]
		if tool != "" && entry.Tool != tool {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
