package logging

import "time"

// ExportEvent records a CSV or JSON export of the inventory.
type ExportEvent struct {
	Timestamp    time.Time              `json:"timestamp"`
	Format       string                 `json:"format"` // "csv", "json"
	StatusFilter string                 `json:"status_filter,omitempty"`
	Count        int                    `json:"count"`
	SourceIP     string                 `json:"source_ip"`
	User         string                 `json:"user,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// DownloadEvent records a certificate archive download.
type DownloadEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	ArchiveName string                 `json:"archive_name"`
	SourceIP    string                 `json:"source_ip"`
	User        string                 `json:"user,omitempty"`
	Result      string                 `json:"result"` // "success", "not_found"
	Details     map[string]interface{} `json:"details,omitempty"`
}

// RefreshEvent records an inventory refresh against the upstream
// authority, including degraded (fallback) cycles.
type RefreshEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"` // "live", "fallback"
	Count     int                    `json:"count"`
	Trigger   string                 `json:"trigger"` // "startup", "interval", "rescan"
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditFilter narrows an audit log query.
type AuditFilter struct {
	EventType   string    `json:"event_type,omitempty"` // "export", "download", "refresh"
	ArchiveName string    `json:"archive_name,omitempty"`
	Source      string    `json:"source,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}

// AuditLog is the generic persisted audit record.
type AuditLog struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Data      interface{}            `json:"data"`
	Indexed   map[string]interface{} `json:"indexed,omitempty"` // fields the Query filter matches against
}
