package certs

import "time"

// Status is the lifecycle classification of a certificate.
type Status string

const (
	StatusValid        Status = "valid"         // more than the threshold away from expiry
	StatusExpiringSoon Status = "expiring_soon" // within the expiry threshold
	StatusExpired      Status = "expired"       // past expiry (or expiry unknown)
)

// CertType is the best-effort usage classification inferred from the
// common name. It is a heuristic, not an authoritative attribute.
type CertType string

const (
	TypeSSLTLS      CertType = "SSL/TLS"
	TypeCodeSigning CertType = "Code Signing"
	TypeEmail       CertType = "Email"
	TypeClient      CertType = "Client"
	TypeServer      CertType = "Server"
	TypeOther       CertType = "Other"
)

// Certificate is the canonical in-memory representation every
// downstream consumer (query engine, stats, export) works with.
// Instances are built once per fetch cycle and never mutated; a new
// fetch replaces the whole collection.
//
// String fields use the empty string as the "unknown" sentinel,
// KeyLength and FileSize use zero.
type Certificate struct {
	ID                string    `json:"id"`
	ArchiveName       string    `json:"archive_name"`
	SerialNumber      string    `json:"serial_number"`
	SubjectCN         string    `json:"subject_cn"`
	SubjectDN         string    `json:"subject_dn"`
	Issuer            string    `json:"issuer"`
	NotBefore         time.Time `json:"not_before"`
	NotAfter          time.Time `json:"not_after"`
	DaysToExpiry      int       `json:"days_to_expiry"`
	Status            Status    `json:"status"`
	Type              CertType  `json:"type"`
	FingerprintSHA256 string    `json:"fingerprint_sha256"`
	FingerprintSHA1   string    `json:"fingerprint_sha1"`
	Algorithm         string    `json:"algorithm"`
	KeyLength         int       `json:"key_length"`
	Domains           []string  `json:"domains"`
	FileSize          int64     `json:"file_size"`
}

// RawRecord is a shape-unknown certificate record as delivered by one
// upstream dialect. It is consumed exactly once by Normalize.
type RawRecord map[string]any
