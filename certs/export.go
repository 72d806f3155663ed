package certs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrExport marks serialization failures. The canonical model is
// always serializable, so hitting this indicates a logic bug rather
// than a data-quality issue; callers should not fall back on it.
var ErrExport = errors.New("export failed")

// csvHeader is the fixed CSV column order. Changing it breaks
// downstream spreadsheet imports.
var csvHeader = []string{
	"Archive Name",
	"Subject CN",
	"Issuer",
	"Not Before",
	"Not After",
	"Days to Expiry",
	"Status",
	"Fingerprint SHA256",
	"Algorithm",
	"Key Length",
	"Domains",
}

// ExportCSV serializes the collection, optionally filtered by status,
// as CSV. Every field is double-quote wrapped (with embedded quotes
// doubled) regardless of content, header row first.
func ExportCSV(collection []Certificate, statusFilter string) ([]byte, error) {
	filtered := FilterByStatus(collection, statusFilter)

	var b strings.Builder
	writeCSVRow(&b, csvHeader)
	for _, c := range filtered {
		writeCSVRow(&b, []string{
			c.ArchiveName,
			c.SubjectCN,
			c.Issuer,
			csvTime(c.NotBefore),
			csvTime(c.NotAfter),
			strconv.Itoa(c.DaysToExpiry),
			string(c.Status),
			c.FingerprintSHA256,
			c.Algorithm,
			strconv.Itoa(c.KeyLength),
			strings.Join(c.Domains, ", "),
		})
	}
	return []byte(b.String()), nil
}

// ExportJSON serializes the collection, optionally filtered by
// status, as a pretty-printed array of the canonical record shape.
// Re-parsing the output yields a collection equal to the input.
func ExportJSON(collection []Certificate, statusFilter string) ([]byte, error) {
	filtered := FilterByStatus(collection, statusFilter)
	if filtered == nil {
		filtered = []Certificate{}
	}

	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal collection: %v", ErrExport, err)
	}
	return data, nil
}

func writeCSVRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
