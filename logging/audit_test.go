package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestAuditLogger(t *testing.T) (*FileAuditLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")

	audit, err := NewFileAuditLogger(path, Nop())
	if err != nil {
		t.Fatalf("create audit logger: %v", err)
	}
	t.Cleanup(func() { audit.Close() })
	return audit, path
}

func TestFileAuditLogger_LogExport(t *testing.T) {
	audit, path := newTestAuditLogger(t)

	event := &ExportEvent{
		Format:       "csv",
		StatusFilter: "expired",
		Count:        12,
		SourceIP:     "192.168.1.50",
		User:         "ops",
	}
	if err := audit.LogExport(context.Background(), event); err != nil {
		t.Fatalf("LogExport() error = %v", err)
	}
	if event.Timestamp.IsZero() {
		t.Error("LogExport() did not default the timestamp")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("audit file is empty")
	}
	var record AuditLog
	if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
		t.Fatalf("audit line is not valid JSON: %v", err)
	}
	if record.EventType != "export" {
		t.Errorf("EventType = %q, want export", record.EventType)
	}
	if record.Indexed["format"] != "csv" {
		t.Errorf("Indexed[format] = %v, want csv", record.Indexed["format"])
	}
}

func TestFileAuditLogger_RejectsNilEvents(t *testing.T) {
	audit, _ := newTestAuditLogger(t)
	ctx := context.Background()

	if err := audit.LogExport(ctx, nil); err == nil {
		t.Error("LogExport(nil) expected error")
	}
	if err := audit.LogDownload(ctx, nil); err == nil {
		t.Error("LogDownload(nil) expected error")
	}
	if err := audit.LogRefresh(ctx, nil); err == nil {
		t.Error("LogRefresh(nil) expected error")
	}
}

func TestFileAuditLogger_Query(t *testing.T) {
	audit, _ := newTestAuditLogger(t)
	ctx := context.Background()

	audit.LogExport(ctx, &ExportEvent{Format: "csv"})
	audit.LogDownload(ctx, &DownloadEvent{ArchiveName: "web-frontend", Result: "success"})
	audit.LogDownload(ctx, &DownloadEvent{ArchiveName: "mail-gateway", Result: "success"})
	audit.LogRefresh(ctx, &RefreshEvent{Source: "live", Count: 40, Trigger: "interval"})

	all, err := audit.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Query(nil) returned %d records, want 4", len(all))
	}

	downloads, err := audit.Query(ctx, &AuditFilter{EventType: "download"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(downloads) != 2 {
		t.Errorf("Query(download) returned %d records, want 2", len(downloads))
	}

	byArchive, err := audit.Query(ctx, &AuditFilter{ArchiveName: "web-frontend"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(byArchive) != 1 {
		t.Errorf("Query(archive) returned %d records, want 1", len(byArchive))
	}

	limited, err := audit.Query(ctx, &AuditFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Query(limit=2) returned %d records, want 2", len(limited))
	}

	offset, err := audit.Query(ctx, &AuditFilter{Offset: 3})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(offset) != 1 {
		t.Errorf("Query(offset=3) returned %d records, want 1", len(offset))
	}
}

func TestFileAuditLogger_QueryTimeWindow(t *testing.T) {
	audit, _ := newTestAuditLogger(t)
	ctx := context.Background()

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	audit.LogRefresh(ctx, &RefreshEvent{Timestamp: old, Source: "live", Trigger: "interval"})
	audit.LogRefresh(ctx, &RefreshEvent{Timestamp: recent, Source: "live", Trigger: "interval"})

	results, err := audit.Query(ctx, &AuditFilter{
		StartTime: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Query(window) returned %d records, want 1", len(results))
	}
	if !results[0].Timestamp.Equal(recent) {
		t.Errorf("Timestamp = %v, want %v", results[0].Timestamp, recent)
	}
}
