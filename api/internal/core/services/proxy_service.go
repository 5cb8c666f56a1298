package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
	"github.com/irgordon/hostpanel/api/internal/core/nginxconf"
)

const (
	opUpsert = "upsert"
	opUpdate = "update"
	opRemove = "remove"
)

// OperationRecorder receives lifecycle counters. telemetry.Metrics satisfies it.
type OperationRecorder interface {
	ObserveOperation(operation, outcome string)
	ObserveRollback(result string)
}

// ProxyService runs the backup, write, enable, test, commit-or-rollback, reload
// transaction for reverse-proxy sites.
type ProxyService struct {
	sites   domain.SiteStore
	server  domain.WebServerManager
	audit   domain.AuditRepository
	events  domain.EventPublisher
	metrics OperationRecorder
	logger  *slog.Logger
	now     func() time.Time

	// nginx -t judges the whole tree, so mutations are serialized globally.
	mu sync.Mutex
}

var _ domain.ProxyService = (*ProxyService)(nil)

func NewProxyService(
	sites domain.SiteStore,
	server domain.WebServerManager,
	audit domain.AuditRepository,
	events domain.EventPublisher,
	metrics OperationRecorder,
	logger *slog.Logger,
) *ProxyService {
	return &ProxyService{
		sites:   sites,
		server:  server,
		audit:   audit,
		events:  events,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "proxy_service")),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for the generated-at banner.
func (s *ProxyService) WithClock(now func() time.Time) *ProxyService {
	s.now = now
	return s
}

// ==============================================================================
// 1. Mutating operations
// ==============================================================================

// Upsert creates the site or replaces it, always re-pointing the enabling link.
func (s *ProxyService) Upsert(ctx context.Context, def domain.ProxyDefinition) (*domain.ProxyResult, error) {
	res, err := s.apply(ctx, opUpsert, def, false)
	s.record(ctx, opUpsert, def.Name, res, err)
	return res, err
}

// Update replaces an existing site. The link is only created if it is missing.
func (s *ProxyService) Update(ctx context.Context, name string, def domain.ProxyDefinition) (*domain.ProxyResult, error) {
	if def.Name != name {
		err := domain.NewError(domain.ErrConflict, opUpdate, name,
			fmt.Sprintf("name in body (%q) does not match name in path (%q)", def.Name, name), nil)
		s.record(ctx, opUpdate, name, nil, err)
		return nil, err
	}

	res, err := s.apply(ctx, opUpdate, def, true)
	s.record(ctx, opUpdate, name, res, err)
	return res, err
}

// Remove deletes the link and the config, then reloads. A failed reload is
// reported on the result, not as an error.
func (s *ProxyService) Remove(ctx context.Context, name string) (*domain.RemoveResult, error) {
	res, err := s.remove(ctx, name)
	s.recordRemove(ctx, name, res, err)
	return res, err
}

func (s *ProxyService) remove(ctx context.Context, name string) (*domain.RemoveResult, error) {
	if err := domain.ValidateSiteName(name); err != nil {
		return nil, domain.NewError(domain.ErrValidation, opRemove, name, err.Error(), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	exists, err := s.sites.Exists(name)
	if err != nil {
		return nil, domain.NewError(domain.ErrFilesystem, opRemove, name, "failed to stat config", err)
	}
	enabled, err := s.sites.IsEnabled(name)
	if err != nil {
		return nil, domain.NewError(domain.ErrFilesystem, opRemove, name, "failed to stat enabled link", err)
	}
	if !exists && !enabled {
		return nil, domain.NewError(domain.ErrNotFound, opRemove, name, fmt.Sprintf("proxy %q not found", name), nil)
	}

	// 1. Stop serving first
	if enabled {
		if err := s.sites.Disable(name); err != nil {
			return nil, domain.NewError(domain.ErrFilesystem, opRemove, name, "failed to remove enabled link", err)
		}
	}

	// 2. Drop the config itself
	if exists {
		if err := s.sites.Delete(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewError(domain.ErrFilesystem, opRemove, name, "failed to remove config", err)
		}
	}

	res := &domain.RemoveResult{
		Name:    name,
		Message: fmt.Sprintf("proxy %q removed", name),
	}

	// 3. Reload is advisory here
	if err := s.server.Reload(ctx); err != nil {
		s.logger.Warn("reload after remove failed", slog.String("proxy", name), slog.String("error", err.Error()))
		res.ReloadError = err.Error()
		res.Message += "; nginx reload failed, run it manually"
	}
	return res, nil
}

// ==============================================================================
// 2. The transaction
// ==============================================================================

// txn tracks what has been changed so a rollback can undo exactly that.
type txn struct {
	name       string
	hadBackup  bool
	wasEnabled bool
}

func (s *ProxyService) apply(ctx context.Context, op string, def domain.ProxyDefinition, mustExist bool) (*domain.ProxyResult, error) {
	site, err := prepare(op, def)
	if err != nil {
		return nil, err
	}
	name := def.Name

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	if !s.sites.AvailableDirExists() {
		return nil, domain.NewError(domain.ErrFilesystem, op, name, "sites-available directory does not exist", nil)
	}

	exists, err := s.sites.Exists(name)
	if err != nil {
		return nil, domain.NewError(domain.ErrFilesystem, op, name, "failed to stat config", err)
	}
	if mustExist && !exists {
		return nil, domain.NewError(domain.ErrNotFound, op, name, fmt.Sprintf("proxy %q not found", name), nil)
	}

	enabled, err := s.sites.IsEnabled(name)
	if err != nil {
		return nil, domain.NewError(domain.ErrFilesystem, op, name, "failed to stat enabled link", err)
	}
	tx := &txn{name: name, wasEnabled: enabled}

	// 1. Backup
	if exists {
		if err := s.sites.Backup(name); err != nil {
			return nil, domain.NewError(domain.ErrFilesystem, op, name, "failed to back up existing config", err)
		}
		tx.hadBackup = true
	}

	// 2. Write
	content := nginxconf.Render(site, s.now())
	if err := s.sites.Write(name, []byte(content)); err != nil {
		return nil, s.rollback(tx, domain.NewError(domain.ErrFilesystem, op, name, "failed to write config", err))
	}

	// 3. Enable
	if err := s.link(op, tx); err != nil {
		return nil, s.rollback(tx, domain.NewError(domain.ErrFilesystem, op, name, "failed to enable site", err))
	}

	// 4. External test over the whole tree
	if err := s.server.TestConfig(ctx); err != nil {
		kind := domain.ErrValidation
		var cmdErr *domain.CommandError
		if errors.As(err, &cmdErr) && !cmdErr.Started {
			kind = domain.ErrExternalTool
		}
		return nil, s.rollback(tx, domain.NewError(kind, op, name, "nginx configuration test failed", err))
	}

	// 5. Commit
	if tx.hadBackup {
		if err := s.sites.DiscardBackup(name); err != nil {
			s.logger.Warn("failed to remove backup after commit", slog.String("proxy", name), slog.String("error", err.Error()))
		}
	}

	res := &domain.ProxyResult{
		Name:      name,
		Created:   !exists,
		HadBackup: tx.hadBackup,
		Message:   fmt.Sprintf("proxy %q saved and nginx reloaded", name),
	}

	// 6. Reload; failure leaves the committed config in place
	if err := s.server.Reload(ctx); err != nil {
		res.Message = fmt.Sprintf("proxy %q saved but nginx reload failed", name)
		return res, domain.NewError(domain.ErrReload, op, name, "configuration saved but nginx reload failed", err)
	}
	return res, nil
}

// prepare validates the definition and formats any extra block. No I/O.
func prepare(op string, def domain.ProxyDefinition) (nginxconf.Site, error) {
	if err := def.Validate(); err != nil {
		return nginxconf.Site{}, domain.NewError(domain.ErrValidation, op, def.Name, err.Error(), nil)
	}

	site := nginxconf.Site{
		Name:    def.Name,
		Domain:  strings.TrimSpace(def.Domain),
		Backend: strings.TrimSpace(def.Backend),
		SSL:     def.SSL,
	}

	if strings.TrimSpace(def.ExtraConfig) != "" {
		formatted, err := nginxconf.Validate(def.ExtraConfig)
		if err != nil {
			return nginxconf.Site{}, domain.NewError(domain.ErrValidation, op, def.Name, "invalid extra configuration", err)
		}
		site.ExtraConfig = formatted
	}
	return site, nil
}

func (s *ProxyService) link(op string, tx *txn) error {
	if op == opUpdate && tx.wasEnabled {
		return nil
	}
	if tx.wasEnabled {
		if err := s.sites.Disable(tx.name); err != nil {
			s.logger.Warn("failed to remove stale link", slog.String("proxy", tx.name), slog.String("error", err.Error()))
		}
	}
	return s.sites.Enable(tx.name)
}

// rollback puts the site back the way it was before the transaction and
// annotates cause with the outcome.
func (s *ProxyService) rollback(tx *txn, cause *domain.ProxyError) *domain.ProxyError {
	log := s.logger.With(slog.String("proxy", tx.name), slog.String("cause", cause.UserMessage()))

	if !tx.hadBackup {
		var errs []error
		if err := s.sites.Disable(tx.name); err != nil {
			errs = append(errs, fmt.Errorf("remove link: %w", err))
		}
		if err := s.sites.Delete(tx.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove config: %w", err))
		}
		if len(errs) > 0 {
			return s.rollbackFailed(log, cause, errors.Join(errs...))
		}
		s.metrics.ObserveRollback("removed")
		log.Warn("new config rejected and removed")
		cause.Note = "invalid configuration removed"
		return cause
	}

	if err := s.sites.Restore(tx.name); err != nil {
		return s.rollbackFailed(log, cause, err)
	}
	if err := s.restoreLink(tx); err != nil {
		return s.rollbackFailed(log, cause, err)
	}
	if err := s.sites.DiscardBackup(tx.name); err != nil {
		log.Warn("failed to remove backup after restore", slog.String("error", err.Error()))
	}

	s.metrics.ObserveRollback("restored")
	log.Warn("config rejected, previous version restored")
	cause.Note = "previous configuration restored"
	return cause
}

func (s *ProxyService) restoreLink(tx *txn) error {
	enabled, err := s.sites.IsEnabled(tx.name)
	if err != nil {
		return fmt.Errorf("stat link: %w", err)
	}
	switch {
	case tx.wasEnabled && !enabled:
		return s.sites.Enable(tx.name)
	case !tx.wasEnabled && enabled:
		return s.sites.Disable(tx.name)
	}
	return nil
}

func (s *ProxyService) rollbackFailed(log *slog.Logger, cause *domain.ProxyError, restoreErr error) *domain.ProxyError {
	s.metrics.ObserveRollback("failed")
	log.Error("rollback failed, manual intervention required", slog.String("restore_error", restoreErr.Error()))

	cause.Kind = domain.ErrRollback
	cause.RollbackErr = restoreErr
	return cause
}

// ==============================================================================
// 3. Read-only operations
// ==============================================================================

// List projects sites-available into summaries. Directory problems are
// reported on the listing rather than as an error.
func (s *ProxyService) List(ctx context.Context) domain.ProxyListing {
	listing := domain.ProxyListing{Proxies: []domain.ProxySummary{}}

	names, err := s.sites.Names()
	if errors.Is(err, fs.ErrNotExist) {
		listing.Warning = "sites-available directory does not exist"
		return listing
	}
	if err != nil {
		listing.Error = fmt.Sprintf("failed to read sites-available: %v", err)
		return listing
	}

	for _, name := range names {
		if !listable(name) {
			continue
		}
		summary, err := s.summarize(name)
		if err != nil {
			s.logger.Warn("skipping unreadable site", slog.String("proxy", name), slog.String("error", err.Error()))
			continue
		}
		listing.Proxies = append(listing.Proxies, *summary)
	}
	return listing
}

// Lookup returns the summary of one site.
func (s *ProxyService) Lookup(ctx context.Context, name string) (*domain.ProxySummary, error) {
	if err := domain.ValidateSiteName(name); err != nil {
		return nil, domain.NewError(domain.ErrValidation, "lookup", name, err.Error(), nil)
	}
	summary, err := s.summarize(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NewError(domain.ErrNotFound, "lookup", name, fmt.Sprintf("proxy %q not found", name), nil)
	}
	if err != nil {
		return nil, domain.NewError(domain.ErrFilesystem, "lookup", name, "failed to read config", err)
	}
	return summary, nil
}

// Format validates a free-form fragment without touching disk.
func (s *ProxyService) Format(text string) (string, error) {
	return nginxconf.Validate(text)
}

func (s *ProxyService) summarize(name string) (*domain.ProxySummary, error) {
	data, err := s.sites.Read(name)
	if err != nil {
		return nil, err
	}
	enabled, err := s.sites.IsEnabled(name)
	if err != nil {
		return nil, err
	}

	info := nginxconf.Inspect(string(data))
	return &domain.ProxySummary{
		Name:    name,
		Domain:  info.Domain,
		Backend: info.Backend,
		SSL:     info.SSL,
		Enabled: enabled,
	}, nil
}

func listable(name string) bool {
	switch {
	case name == "default":
		return false
	case strings.Contains(name, "example"):
		return false
	case strings.HasSuffix(name, domain.BackupSuffix):
		return false
	case strings.HasPrefix(name, "."):
		return false
	}
	return true
}

// ==============================================================================
// 4. Telemetry, audit and events
// ==============================================================================

func (s *ProxyService) record(ctx context.Context, op, name string, res *domain.ProxyResult, err error) {
	outcome := outcomeOf(err)
	s.metrics.ObserveOperation(op, outcome)

	switch {
	case err == nil && res.Created:
		s.publish(domain.EventProxyCreated, name, res.Message)
	case err == nil:
		s.publish(domain.EventProxyUpdated, name, res.Message)
	case errors.Is(err, domain.ErrReload):
		s.publish(domain.EventProxyReloadFailed, name, userMessage(err))
	case errors.Is(err, domain.ErrRollback):
		s.publish(domain.EventProxyRollbackFail, name, userMessage(err))
	case rolledBack(err):
		s.publish(domain.EventProxyRolledBack, name, userMessage(err))
	}

	var message string
	switch {
	case err != nil:
		message = userMessage(err)
	case res != nil:
		message = res.Message
	}
	s.writeAudit(ctx, "proxy."+op, name, err == nil, message)
}

func (s *ProxyService) recordRemove(ctx context.Context, name string, res *domain.RemoveResult, err error) {
	s.metrics.ObserveOperation(opRemove, outcomeOf(err))
	if err != nil {
		s.writeAudit(ctx, "proxy."+opRemove, name, false, userMessage(err))
		return
	}
	s.publish(domain.EventProxyRemoved, name, res.Message)
	s.writeAudit(ctx, "proxy."+opRemove, name, true, res.Message)
}

func (s *ProxyService) publish(eventType, name, message string) {
	s.events.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(eventType, name, message))
}

func (s *ProxyService) writeAudit(ctx context.Context, action, resource string, ok bool, message string) {
	outcome := domain.OutcomeSuccess
	if !ok {
		outcome = domain.OutcomeFailure
	}
	evt := &domain.AuditEvent{
		Actor:    domain.ActorFromContext(ctx),
		Action:   action,
		Resource: resource,
		Outcome:  outcome,
		Message:  message,
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Warn("failed to write audit event", slog.String("action", action), slog.String("error", err.Error()))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
		return "rejected"
	case errors.Is(err, domain.ErrReload):
		return "reload_failed"
	default:
		return "failed"
	}
}

func rolledBack(err error) bool {
	var pe *domain.ProxyError
	return errors.As(err, &pe) && pe.Note != ""
}

func userMessage(err error) string {
	var pe *domain.ProxyError
	if errors.As(err, &pe) {
		return pe.UserMessage()
	}
	return err.Error()
}
