// Package audit appends AI decisions and human feedback to a
// newline-delimited JSON log for later review.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/metrics"
	"github.com/T-Rylander/unifi-edtech-stack/internal/models"
)

// Logger records suggestion and feedback events. Record is best-effort:
// failures are logged and counted but never returned, so a broken audit
// file cannot fail a request.
type Logger interface {
	Record(ctx context.Context, query string, suggestion interface{}, decision, notes string)
}

type fileLogger struct {
	path   string
	logger *zap.Logger
}

// NewFileLogger creates a Logger appending to the file at path. The file is
// opened and closed per write; no handle is held across requests.
func NewFileLogger(path string, logger *zap.Logger) Logger {
	return &fileLogger{
		path:   path,
		logger: logger,
	}
}

func (l *fileLogger) Record(ctx context.Context, query string, suggestion interface{}, decision, notes string) {
	entry := models.AuditRecord{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Query:         query,
		AISuggestion:  suggestion,
		HumanDecision: decision,
		Notes:         notes,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("Failed to marshal audit entry", zap.Error(err))
		metrics.AuditWriteFailures.Inc()
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.logger.Error("Failed to log AI decision", zap.Error(err))
		metrics.AuditWriteFailures.Inc()
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.logger.Error("Failed to log AI decision", zap.Error(err))
		metrics.AuditWriteFailures.Inc()
		return
	}

	l.logger.Info("AI decision logged", zap.String("human_decision", decision))
}
