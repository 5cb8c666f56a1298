package adapters

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/http/webroot"
	"github.com/go-acme/lego/v4/registration"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// ==============================================================================
// 1. ACME account (required by lego)
// ==============================================================================

type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// ==============================================================================
// 2. The issuer
// ==============================================================================

// AcmeIssuer obtains certificates over HTTP-01, dropping challenge tokens into
// the webroot that nginx already serves for every site.
type AcmeIssuer struct {
	directoryURL string
	webRoot      string
	logger       *slog.Logger

	mu       sync.Mutex
	accounts map[string]*lego.Client
}

var _ domain.CertificateIssuer = (*AcmeIssuer)(nil)

func NewAcmeIssuer(directoryURL, webRoot string, logger *slog.Logger) *AcmeIssuer {
	return &AcmeIssuer{
		directoryURL: directoryURL,
		webRoot:      webRoot,
		logger:       logger.With(slog.String("component", "acme_issuer")),
		accounts:     make(map[string]*lego.Client),
	}
}

func (p *AcmeIssuer) Obtain(ctx context.Context, email string, domains []string) (*domain.Certificate, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("at least one domain is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := p.client(email)
	if err != nil {
		return nil, err
	}

	p.logger.Info("starting ACME certificate request", slog.Any("domains", domains))

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: domains,
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate for %s: %w", domains[0], err)
	}

	cert := &domain.Certificate{
		Domain:     res.Domain,
		Fullchain:  res.Certificate,
		PrivateKey: res.PrivateKey,
	}
	if leaf, err := certcrypto.ParsePEMCertificate(res.Certificate); err == nil {
		cert.NotAfter = leaf.NotAfter
	}
	return cert, nil
}

// client returns a registered lego client for email, registering the account
// on first use.
func (p *AcmeIssuer) client(email string) (*lego.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.accounts[email]; ok {
		return c, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}
	user := &acmeUser{email: email, key: key}

	cfg := lego.NewConfig(user)
	cfg.CADirURL = p.directoryURL
	cfg.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create lego client: %w", err)
	}

	provider, err := webroot.NewHTTPProvider(p.webRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create webroot provider: %w", err)
	}
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return nil, fmt.Errorf("failed to set http01 provider: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register ACME account: %w", err)
	}
	user.registration = reg

	p.accounts[email] = client
	return client, nil
}
