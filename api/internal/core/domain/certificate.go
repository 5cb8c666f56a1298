package domain

import (
	"context"
	"time"
)

// Certificate is a PEM bundle ready to be written next to the site config.
type Certificate struct {
	Domain     string
	Fullchain  []byte
	PrivateKey []byte
	NotAfter   time.Time
}

// CertificateIssuer obtains certificates from an ACME directory.
type CertificateIssuer interface {
	Obtain(ctx context.Context, email string, domains []string) (*Certificate, error)
}

// CertificateRequest acknowledges an accepted issuance request. The outcome
// arrives later as a lifecycle event.
type CertificateRequest struct {
	Name    string `json:"name"`
	Domain  string `json:"domain"`
	Message string `json:"message"`
}
