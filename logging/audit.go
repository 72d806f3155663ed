package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditLogger records who exported or downloaded certificate material
// and when the inventory was refreshed.
type AuditLogger interface {
	LogExport(ctx context.Context, event *ExportEvent) error
	LogDownload(ctx context.Context, event *DownloadEvent) error
	LogRefresh(ctx context.Context, event *RefreshEvent) error
	Query(ctx context.Context, filter *AuditFilter) ([]*AuditLog, error)
}

// FileAuditLogger appends JSON-line audit records to a file.
type FileAuditLogger struct {
	outputPath string
	logger     Logger
	file       *os.File
	mu         sync.Mutex
	logs       []*AuditLog // in-memory cache backing Query; a database would replace this in larger deployments
}

// NewFileAuditLogger creates a file-backed audit logger.
func NewFileAuditLogger(outputPath string, logger Logger) (*FileAuditLogger, error) {
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}

	return &FileAuditLogger{
		outputPath: outputPath,
		logger:     logger,
		file:       f,
		logs:       make([]*AuditLog, 0),
	}, nil
}

// LogExport records an export event.
func (a *FileAuditLogger) LogExport(ctx context.Context, event *ExportEvent) error {
	if event == nil {
		return fmt.Errorf("export event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return a.writeLog(&AuditLog{
		ID:        fmt.Sprintf("export_%d", time.Now().UnixNano()),
		Timestamp: event.Timestamp,
		EventType: "export",
		Data:      event,
		Indexed: map[string]interface{}{
			"format":    event.Format,
			"source_ip": event.SourceIP,
		},
	})
}

// LogDownload records an archive download.
func (a *FileAuditLogger) LogDownload(ctx context.Context, event *DownloadEvent) error {
	if event == nil {
		return fmt.Errorf("download event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return a.writeLog(&AuditLog{
		ID:        fmt.Sprintf("download_%d", time.Now().UnixNano()),
		Timestamp: event.Timestamp,
		EventType: "download",
		Data:      event,
		Indexed: map[string]interface{}{
			"archive_name": event.ArchiveName,
			"source_ip":    event.SourceIP,
			"result":       event.Result,
		},
	})
}

// LogRefresh records an inventory refresh. Degraded cycles are also
// surfaced on the structured log so offline mode is never silent.
func (a *FileAuditLogger) LogRefresh(ctx context.Context, event *RefreshEvent) error {
	if event == nil {
		return fmt.Errorf("refresh event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Source == "fallback" {
		a.logger.Warn("Inventory refreshed in degraded mode",
			"trigger", event.Trigger,
			"count", event.Count,
			"error", event.Error,
		)
	}

	return a.writeLog(&AuditLog{
		ID:        fmt.Sprintf("refresh_%d", time.Now().UnixNano()),
		Timestamp: event.Timestamp,
		EventType: "refresh",
		Data:      event,
		Indexed: map[string]interface{}{
			"source":  event.Source,
			"trigger": event.Trigger,
		},
	})
}

// Query returns cached audit records matching the filter. The cache
// only holds records written by this process instance.
func (a *FileAuditLogger) Query(ctx context.Context, filter *AuditFilter) ([]*AuditLog, error) {
	if filter == nil {
		filter = &AuditFilter{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var results []*AuditLog
	for _, log := range a.logs {
		if a.matchFilter(log, filter) {
			results = append(results, log)
		}
	}

	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}
	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return results[start:end], nil
}

func (a *FileAuditLogger) matchFilter(log *AuditLog, filter *AuditFilter) bool {
	if !filter.StartTime.IsZero() && log.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && log.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.EventType != "" && log.EventType != filter.EventType {
		return false
	}
	if filter.ArchiveName != "" {
		if v, ok := log.Indexed["archive_name"].(string); !ok || v != filter.ArchiveName {
			return false
		}
	}
	if filter.Source != "" {
		if v, ok := log.Indexed["source"].(string); !ok || v != filter.Source {
			return false
		}
	}
	return true
}

func (a *FileAuditLogger) writeLog(log *AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}

	if _, err := fmt.Fprintln(a.file, string(data)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	a.logs = append(a.logs, log)
	return nil
}

// Close flushes and closes the underlying file.
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
