package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const (
	opCertificate = "certificate"
	issueTimeout  = 5 * time.Minute
)

// ProxyLookup resolves a site name to what is on disk.
type ProxyLookup interface {
	Lookup(ctx context.Context, name string) (*domain.ProxySummary, error)
}

// CertificateService issues certificates for TLS sites in the background and
// installs them where the rendered placeholders expect them.
type CertificateService struct {
	proxies      ProxyLookup
	issuer       domain.CertificateIssuer
	certDir      string
	defaultEmail string
	audit        domain.AuditRepository
	events       domain.EventPublisher
	logger       *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	closed   bool
	wg       sync.WaitGroup

	// stopped is cancelled by Shutdown and aborts every running issuance.
	stopped context.Context
	stop    context.CancelFunc
}

func NewCertificateService(
	proxies ProxyLookup,
	issuer domain.CertificateIssuer,
	certDir, defaultEmail string,
	audit domain.AuditRepository,
	events domain.EventPublisher,
	logger *slog.Logger,
) *CertificateService {
	stopped, stop := context.WithCancel(context.Background())
	return &CertificateService{
		proxies:      proxies,
		issuer:       issuer,
		certDir:      certDir,
		defaultEmail: defaultEmail,
		audit:        audit,
		events:       events,
		logger:       logger.With(slog.String("component", "certificate_service")),
		inFlight:     make(map[string]bool),
		stopped:      stopped,
		stop:         stop,
	}
}

// Request validates the site and starts issuance. It returns as soon as the
// work is queued.
func (s *CertificateService) Request(ctx context.Context, name, email string) (*domain.CertificateRequest, error) {
	summary, err := s.proxies.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !summary.SSL {
		return nil, domain.NewError(domain.ErrValidation, opCertificate, name,
			"proxy is not configured for SSL; enable ssl before requesting a certificate", nil)
	}
	if summary.Domain == "" || summary.Domain == "unknown" {
		return nil, domain.NewError(domain.ErrValidation, opCertificate, name, "proxy has no server_name", nil)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = s.defaultEmail
	}
	if email == "" {
		return nil, domain.NewError(domain.ErrValidation, opCertificate, name, "email is required", nil)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.NewError(domain.ErrConflict, opCertificate, name, "server is shutting down", nil)
	}
	if s.inFlight[summary.Domain] {
		s.mu.Unlock()
		return nil, domain.NewError(domain.ErrConflict, opCertificate, name,
			fmt.Sprintf("a certificate request for %s is already in progress", summary.Domain), nil)
	}
	s.inFlight[summary.Domain] = true
	s.wg.Add(1)
	s.mu.Unlock()

	// The request context ends with the response; keep its values only.
	bg := context.WithoutCancel(ctx)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, summary.Domain)
			s.mu.Unlock()
		}()
		s.issue(bg, name, summary.Domain, email)
	}()

	return &domain.CertificateRequest{
		Name:    name,
		Domain:  summary.Domain,
		Message: fmt.Sprintf("certificate request for %s accepted", summary.Domain),
	}, nil
}

// Wait blocks until every issuance started so far has finished.
func (s *CertificateService) Wait() {
	s.wg.Wait()
}

// Shutdown refuses new requests, cancels running issuances and waits for them
// to record their outcome.
func (s *CertificateService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
}

func (s *CertificateService) issue(ctx context.Context, name, domainName, email string) {
	ctx, cancel := context.WithTimeout(ctx, issueTimeout)
	defer cancel()
	defer context.AfterFunc(s.stopped, cancel)()

	log := s.logger.With(slog.String("proxy", name), slog.String("domain", domainName))

	cert, err := s.issuer.Obtain(ctx, email, []string{domainName})
	if err == nil {
		err = s.install(domainName, cert)
	}

	evt := &domain.AuditEvent{
		Actor:    domain.ActorFromContext(ctx),
		Action:   "certificate.request",
		Resource: name,
	}

	if err != nil {
		log.Error("certificate issuance failed", slog.String("error", err.Error()))
		msg := fmt.Sprintf("certificate for %s failed: %v", domainName, err)
		s.events.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(domain.EventCertificateFailed, name, msg))
		evt.Outcome, evt.Message = domain.OutcomeFailure, msg
	} else {
		log.Info("certificate installed", slog.Time("not_after", cert.NotAfter))
		msg := fmt.Sprintf("certificate for %s installed in %s", domainName, filepath.Join(s.certDir, domainName))
		s.events.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(domain.EventCertificateIssued, name, msg))
		evt.Outcome, evt.Message = domain.OutcomeSuccess, msg
	}

	if err := s.audit.Record(context.WithoutCancel(ctx), evt); err != nil {
		log.Warn("failed to write audit event", slog.String("error", err.Error()))
	}
}

func (s *CertificateService) install(domainName string, cert *domain.Certificate) error {
	if cert == nil || len(cert.Fullchain) == 0 || len(cert.PrivateKey) == 0 {
		return errors.New("issuer returned an empty certificate")
	}

	dir := filepath.Join(s.certDir, domainName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create certificate directory: %w", err)
	}
	// Key first so a visible fullchain always has its key beside it
	if err := writeFileMode(filepath.Join(dir, "privkey.pem"), cert.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := writeFileMode(filepath.Join(dir, "fullchain.pem"), cert.Fullchain, 0o644); err != nil {
		return fmt.Errorf("write fullchain: %w", err)
	}
	return nil
}

// writeFileMode writes data and forces mode even when the file already existed.
func writeFileMode(path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
