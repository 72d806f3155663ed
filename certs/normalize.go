package certs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// unknownName is the display name used when upstream gives us nothing
// to name a certificate with.
const unknownName = "Certificat inconnu"

// NormalizeOptions controls how raw records are normalized.
type NormalizeOptions struct {
	Now           time.Time // evaluation instant for expiry math
	ThresholdDays int       // expiring-soon window, DefaultExpiryThreshold when zero
}

// NormalizeAll converts a batch of raw records into canonical
// certificates, preserving input order. Normalization is total: a
// malformed field degrades to its sentinel value, it never fails the
// record or the batch.
//
// Records without a serial number are identified positionally
// ("cert-<index>"), so reordering upstream output changes their
// identity across fetches. Treated markers keyed on such identifiers
// may detach when the upstream reorders its output.
func NormalizeAll(records []RawRecord, opts NormalizeOptions) []Certificate {
	out := make([]Certificate, 0, len(records))
	for i, rec := range records {
		out = append(out, Normalize(rec, i, opts))
	}
	return out
}

// Normalize converts one raw record into a canonical certificate.
// Two upstream dialects are recognized: the distinguished-name
// dialect (slash-delimited "dn" plus "serno"/"not_aft") and the
// flat-field dialect (direct nom/issuer/notAfter/... fields). A
// record carrying a "dn" string is treated as the former.
func Normalize(rec RawRecord, index int, opts NormalizeOptions) Certificate {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.ThresholdDays <= 0 {
		opts.ThresholdDays = DefaultExpiryThreshold
	}

	var c Certificate
	if dn := stringField(rec, "dn"); dn != "" {
		c = normalizeDN(rec, dn)
	} else {
		c = normalizeFlat(rec)
	}

	if c.ID == "" {
		c.ID = fmt.Sprintf("cert-%d", index)
	}
	if c.ArchiveName == "" {
		c.ArchiveName = unknownName
	}
	if c.Type == "" {
		cn := c.SubjectCN
		if cn == "" {
			cn = c.ArchiveName
		}
		c.Type = InferType(cn)
	}

	c.DaysToExpiry = DaysToExpiry(c.NotAfter, opts.Now)
	c.Status = ClassifyAt(c.NotAfter, opts.Now, stringField(rec, "status"), opts.ThresholdDays)
	return c
}

// normalizeDN maps the distinguished-name dialect onto the canonical
// record: "dn" is parsed into key/value pairs, CN becomes the subject
// common name, O doubles as the issuer, and the display name is
// synthesized as "CN (O)".
func normalizeDN(rec RawRecord, dn string) Certificate {
	info := ParseDN(dn)
	cn := info["CN"]
	org := info["O"]

	return Certificate{
		ID:           stringField(rec, "serno"),
		SerialNumber: stringField(rec, "serno"),
		ArchiveName:  displayName(cn, org),
		SubjectCN:    cn,
		SubjectDN:    dn,
		Issuer:       org,
		NotBefore:    timeField(rec, "not_bef", "notBefore", "not_before"),
		NotAfter:     timeField(rec, "not_aft", "notAfter", "not_after"),
	}
}

// normalizeFlat maps the flat-field dialect onto the canonical record.
func normalizeFlat(rec RawRecord) Certificate {
	serial := stringField(rec, "serno", "serial_number", "serialNumber")
	name := stringField(rec, "nom", "name", "archive_name")
	cn := stringField(rec, "subject", "subject_cn", "subjectCN")
	if name == "" {
		name = cn
	}

	return Certificate{
		ID:                serial,
		SerialNumber:      serial,
		ArchiveName:       name,
		SubjectCN:         cn,
		SubjectDN:         stringField(rec, "subject_dn", "subjectDN"),
		Issuer:            stringField(rec, "issuer"),
		NotBefore:         timeField(rec, "notBefore", "not_before"),
		NotAfter:          timeField(rec, "notAfter", "not_after"),
		FingerprintSHA256: stringField(rec, "fingerprint", "fingerprint_sha256"),
		FingerprintSHA1:   stringField(rec, "fingerprint_sha1"),
		Algorithm:         stringField(rec, "algorithm"),
		KeyLength:         intField(rec, "keyLength", "key_length"),
		Domains:           domainsField(rec, "domains"),
		FileSize:          int64(intField(rec, "fileSize", "file_size")),
	}
}

// ParseDN splits a slash-delimited distinguished name such as
// "/CN=host/O=Org/C=FR" into a key/value map. Components without an
// "=" are ignored; only the first "=" in a component separates key
// from value.
func ParseDN(dn string) map[string]string {
	info := make(map[string]string)
	for _, part := range strings.Split(dn, "/") {
		if i := strings.Index(part, "="); i > 0 {
			info[part[:i]] = part[i+1:]
		}
	}
	return info
}

// displayName synthesizes a human-readable name from DN components.
func displayName(cn, org string) string {
	switch {
	case cn != "" && org != "":
		return fmt.Sprintf("%s (%s)", cn, org)
	case cn != "":
		return cn
	default:
		return unknownName
	}
}

// typeRules is the ordered keyword table for usage inference.
// First match wins, so the order is part of the contract: a name
// matching several rules always resolves to the earliest one.
var typeRules = []struct {
	keywords []string
	label    CertType
}{
	{[]string{"ssl", "tls", "web"}, TypeSSLTLS},
	{[]string{"code", "signing"}, TypeCodeSigning},
	{[]string{"email", "smtp"}, TypeEmail},
	{[]string{"client", "vpn"}, TypeClient},
	{[]string{"server", "api"}, TypeServer},
}

// InferType guesses the certificate usage from substrings of the
// lowercased common name. Best effort only.
func InferType(commonName string) CertType {
	cn := strings.ToLower(commonName)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(cn, kw) {
				return rule.label
			}
		}
	}
	return TypeOther
}

// stringField returns the first present key rendered as a string.
func stringField(rec RawRecord, keys ...string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case int:
			return strconv.Itoa(s)
		}
	}
	return ""
}

// intField returns the first present key coerced to a non-negative
// integer, zero when absent or malformed.
func intField(rec RawRecord, keys ...string) int {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return int(n)
			}
		case int:
			if n > 0 {
				return n
			}
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	return 0
}

// timeLayouts are the date-time formats seen across upstream versions.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timeField returns the first present key parsed as a timestamp, the
// zero time when absent or unparseable.
func timeField(rec RawRecord, keys ...string) time.Time {
	raw := stringField(rec, keys...)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// domainsField normalizes the domain list, which upstream delivers
// either as a JSON array or as a JSON-encoded string.
func domainsField(rec RawRecord, key string) []string {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}

	switch d := v.(type) {
	case []any:
		out := make([]string, 0, len(d))
		for _, item := range d {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return d
	case string:
		if d == "" {
			return nil
		}
		var decoded []string
		if err := json.Unmarshal([]byte(d), &decoded); err == nil {
			return decoded
		}
		// Not JSON: accept a plain comma-separated list.
		var out []string
		for _, s := range strings.Split(d, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
