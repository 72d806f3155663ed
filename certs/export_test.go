package certs

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExportCSV(t *testing.T) {
	data, err := ExportCSV(testCollection(), "")
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header plus 5 rows, got %d lines", len(lines))
	}

	header := `"Archive Name","Subject CN","Issuer","Not Before","Not After","Days to Expiry","Status","Fingerprint SHA256","Algorithm","Key Length","Domains"`
	if lines[0] != header {
		t.Errorf("unexpected header row:\n%s", lines[0])
	}

	// Every field is double-quote wrapped, including empty ones.
	for i, line := range lines {
		if !strings.HasPrefix(line, `"`) || !strings.HasSuffix(line, `"`) {
			t.Errorf("line %d not fully quoted: %s", i, line)
		}
	}
}

func TestExportCSV_StatusFilter(t *testing.T) {
	data, err := ExportCSV(testCollection(), "expired")
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 expired rows, got %d lines", len(lines))
	}
	for _, line := range lines[1:] {
		if !strings.Contains(line, `"expired"`) {
			t.Errorf("non-expired row in filtered export: %s", line)
		}
	}
}

func TestExportCSV_EmbeddedQuotesAndCommas(t *testing.T) {
	collection := []Certificate{{
		ID:          "SER-1",
		ArchiveName: `tricky "name", with comma`,
		Issuer:      "Let's Encrypt",
		Status:      StatusValid,
	}}

	data, err := ExportCSV(collection, "")
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if !strings.Contains(string(data), `"tricky ""name"", with comma"`) {
		t.Errorf("embedded quotes not doubled:\n%s", data)
	}
}

// Exporting then re-parsing JSON must yield a collection equal
// field-by-field, for any filtered subset.
func TestExportJSON_RoundTrip(t *testing.T) {
	collection := testCollection()
	collection[0].Domains = []string{"web.example.com", "www.example.com"}

	for _, filter := range []string{"", "valid", "expiring_soon", "expired"} {
		t.Run("filter "+filter, func(t *testing.T) {
			data, err := ExportJSON(collection, filter)
			if err != nil {
				t.Fatalf("ExportJSON failed: %v", err)
			}

			var parsed []Certificate
			if err := json.Unmarshal(data, &parsed); err != nil {
				t.Fatalf("re-parse failed: %v", err)
			}

			expected := FilterByStatus(collection, filter)
			if len(parsed) != len(expected) {
				t.Fatalf("expected %d records, got %d", len(expected), len(parsed))
			}
			for i := range expected {
				assertCertEqual(t, expected[i], parsed[i])
			}
		})
	}
}

func assertCertEqual(t *testing.T, want, got Certificate) {
	t.Helper()
	if got.ID != want.ID || got.ArchiveName != want.ArchiveName ||
		got.SerialNumber != want.SerialNumber || got.SubjectCN != want.SubjectCN ||
		got.SubjectDN != want.SubjectDN || got.Issuer != want.Issuer ||
		got.DaysToExpiry != want.DaysToExpiry || got.Status != want.Status ||
		got.Type != want.Type || got.FingerprintSHA256 != want.FingerprintSHA256 ||
		got.FingerprintSHA1 != want.FingerprintSHA1 || got.Algorithm != want.Algorithm ||
		got.KeyLength != want.KeyLength || got.FileSize != want.FileSize {
		t.Errorf("round-trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
	if !got.NotBefore.Equal(want.NotBefore) || !got.NotAfter.Equal(want.NotAfter) {
		t.Errorf("round-trip changed validity dates for %s", want.ID)
	}
	if len(got.Domains) != len(want.Domains) {
		t.Errorf("round-trip changed domains for %s: %v vs %v", want.ID, want.Domains, got.Domains)
		return
	}
	for i := range want.Domains {
		if got.Domains[i] != want.Domains[i] {
			t.Errorf("round-trip changed domain order for %s", want.ID)
		}
	}
}

func TestExportJSON_EmptyCollection(t *testing.T) {
	data, err := ExportJSON(nil, "")
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty array, got %s", data)
	}
}
