package upstream

import (
	"time"

	"github.com/houzhh15/certindex/certs"
)

// FallbackRecords returns the fixed example set served when the
// upstream authority is unreachable. The records cover all three
// lifecycle states and both upstream dialects so the whole pipeline
// stays exercisable offline. Consumers see them flagged as degraded
// via FetchResult.Source; they are never mixed with live data.
func FallbackRecords() []certs.RawRecord {
	now := time.Now().UTC()

	return []certs.RawRecord{
		{
			"dn":      "/CN=www.entreprise.com/O=Entreprise Corp/C=FR",
			"serno":   "DEMO-001",
			"not_aft": now.AddDate(0, 8, 0).Format(time.RFC3339),
		},
		{
			"dn":      "/CN=vpn.entreprise.com/O=Entreprise Corp/C=FR",
			"serno":   "DEMO-002",
			"not_aft": now.AddDate(0, 0, 12).Format(time.RFC3339),
		},
		{
			"dn":      "/CN=smtp.entreprise.com/O=Entreprise Corp/C=FR",
			"serno":   "DEMO-003",
			"not_aft": now.AddDate(0, -2, 0).Format(time.RFC3339),
		},
		{
			"nom":       "exemple.com",
			"issuer":    "Let's Encrypt",
			"notBefore": now.AddDate(0, -3, 0).Format(time.RFC3339),
			"notAfter":  now.AddDate(0, 9, 0).Format(time.RFC3339),
			"algorithm": "SHA256-RSA",
			"keyLength": 2048,
			"domains":   []any{"exemple.com", "www.exemple.com"},
		},
	}
}
