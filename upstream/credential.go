package upstream

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

// CredentialChecker validates our own client credential before it is
// presented to the upstream authority: validity window now, optional
// OCSP revocation status. This inspects the dashboard's credential
// only; inventory records are taken on trust from upstream.
type CredentialChecker struct {
	checkOCSP  bool
	httpClient *http.Client
}

// CredentialCheckerConfig configures the checker.
type CredentialCheckerConfig struct {
	CheckOCSP bool          // query the certificate's OCSP responders
	Timeout   time.Duration // HTTP timeout for OCSP (default: 10s)
}

// NewCredentialChecker creates a credential checker.
func NewCredentialChecker(config *CredentialCheckerConfig) *CredentialChecker {
	if config == nil {
		config = &CredentialCheckerConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &CredentialChecker{
		checkOCSP: config.CheckOCSP,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Check validates the client certificate's validity window and, when
// enabled, its OCSP revocation status. An error here means the
// upstream will most likely reject our handshake.
func (c *CredentialChecker) Check(cert *x509.Certificate) error {
	if cert == nil {
		return errors.New("client certificate is nil")
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("client certificate not yet valid (NotBefore: %s)", cert.NotBefore)
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("client certificate has expired (NotAfter: %s)", cert.NotAfter)
	}

	if c.checkOCSP {
		if err := c.checkRevocation(cert); err != nil {
			return fmt.Errorf("OCSP check failed: %w", err)
		}
	}

	return nil
}

// ExpiresWithin reports whether the credential expires within the
// given number of days, so the operator can be warned before the
// upstream starts refusing the handshake.
func (c *CredentialChecker) ExpiresWithin(cert *x509.Certificate, days int) bool {
	if cert == nil {
		return false
	}
	return time.Until(cert.NotAfter) < time.Duration(days)*24*time.Hour
}

func (c *CredentialChecker) checkRevocation(cert *x509.Certificate) error {
	if len(cert.OCSPServer) == 0 {
		return errors.New("certificate does not carry OCSP server URLs")
	}

	// Self-signed credentials have no responder to ask.
	if cert.Issuer.String() == cert.Subject.String() {
		return nil
	}

	request, err := ocsp.CreateRequest(cert, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}

	for _, server := range cert.OCSPServer {
		raw, err := c.sendOCSPRequest(server, request)
		if err != nil {
			continue // try the next responder
		}

		resp, err := ocsp.ParseResponse(raw, nil)
		if err != nil {
			continue
		}

		switch resp.Status {
		case ocsp.Good:
			return nil
		case ocsp.Revoked:
			return fmt.Errorf("client certificate has been revoked (reason: %d)", resp.RevocationReason)
		case ocsp.Unknown:
			return errors.New("client certificate status unknown")
		}
	}

	return errors.New("no OCSP responder answered")
}

func (c *CredentialChecker) sendOCSPRequest(server string, request []byte) ([]byte, error) {
	resp, err := c.httpClient.Post(server, "application/ocsp-request", bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("failed to send OCSP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP responder returned status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
