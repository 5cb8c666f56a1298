package router_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/irgordon/hostpanel/api/internal/api/handlers"
	"github.com/irgordon/hostpanel/api/internal/api/middleware"
	"github.com/irgordon/hostpanel/api/internal/api/router"
	"github.com/irgordon/hostpanel/api/internal/core/domain"
	"github.com/irgordon/hostpanel/api/internal/core/nginxconf"
	"github.com/irgordon/hostpanel/api/internal/core/services"
	"github.com/irgordon/hostpanel/api/internal/telemetry"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct horse battery staple"
)

// ==============================================================================
// Fakes
// ==============================================================================

type fakeProxies struct {
	mu        sync.Mutex
	err       error
	created   bool
	reloadErr string
	listing   domain.ProxyListing
	lastName  string
	lastDef   domain.ProxyDefinition
}

// set mutates the fake under its lock; handlers read it from server goroutines.
func (f *fakeProxies) set(fn func(*fakeProxies)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeProxies) last() (string, domain.ProxyDefinition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastName, f.lastDef
}

func (f *fakeProxies) Upsert(_ context.Context, def domain.ProxyDefinition) (*domain.ProxyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDef = def
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProxyResult{Name: def.Name, Created: f.created, Message: "Proxy " + def.Name + " saved"}, nil
}

func (f *fakeProxies) Update(_ context.Context, name string, def domain.ProxyDefinition) (*domain.ProxyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastName, f.lastDef = name, def
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProxyResult{Name: name, Message: "Proxy " + name + " updated"}, nil
}

func (f *fakeProxies) Remove(_ context.Context, name string) (*domain.RemoveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastName = name
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RemoveResult{Name: name, Message: "Proxy " + name + " removed", ReloadError: f.reloadErr}, nil
}

func (f *fakeProxies) List(context.Context) domain.ProxyListing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listing
}

func (f *fakeProxies) Format(text string) (string, error) { return nginxconf.Validate(text) }

func (f *fakeProxies) Lookup(_ context.Context, name string) (*domain.ProxySummary, error) {
	return nil, domain.NewError(domain.ErrNotFound, "lookup", name, "proxy not found", nil)
}

type fakeCertificates struct{ err error }

func (f fakeCertificates) Request(_ context.Context, name, email string) (*domain.CertificateRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CertificateRequest{Name: name, Domain: "shop.example.com", Message: "accepted for " + email}, nil
}

type fakeSweeps struct {
	mu     sync.Mutex
	report *domain.SweepReport
}

func (f *fakeSweeps) LastReport() *domain.SweepReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

func (f *fakeSweeps) store(r *domain.SweepReport) {
	f.mu.Lock()
	f.report = r
	f.mu.Unlock()
}

type fakeHost struct{}

func (fakeHost) SystemInfo(context.Context) (*domain.SystemInfo, error) {
	return &domain.SystemInfo{Hostname: "box", OSName: "Debian GNU/Linux"}, nil
}
func (fakeHost) CPUInfo(context.Context) (*domain.CPUInfo, error) {
	return &domain.CPUInfo{LogicalCores: 4}, nil
}
func (fakeHost) CPUUsage(context.Context) (*domain.CPUUsage, error) {
	return &domain.CPUUsage{OverallUsage: 12.5, PerCoreUsage: []float64{10, 15}}, nil
}
func (fakeHost) Memory(context.Context) (*domain.MemoryInfo, error) {
	return &domain.MemoryInfo{TotalBytes: 1 << 30}, nil
}
func (fakeHost) Disks(context.Context) ([]domain.DiskInfo, error) { return nil, nil }
func (fakeHost) Network(context.Context) ([]domain.NetworkInterface, error) {
	return []domain.NetworkInterface{{Name: "eth0"}}, nil
}
func (fakeHost) Processes(_ context.Context, limit int) ([]domain.ProcessInfo, error) {
	procs := make([]domain.ProcessInfo, limit)
	for i := range procs {
		procs[i] = domain.ProcessInfo{PID: i + 1, Name: "proc"}
	}
	return procs, nil
}
func (fakeHost) LoadAverage(context.Context) (*domain.LoadAverage, error) {
	return &domain.LoadAverage{OneMinute: 0.5}, nil
}
func (fakeHost) KillProcess(_ context.Context, pid int) (string, error) {
	if pid != 4242 {
		return "", domain.NewError(domain.ErrNotFound, "kill", "", "process not found", nil)
	}
	return "worker", nil
}

type fakeEngine struct{}

func (fakeEngine) ListContainers(context.Context) ([]domain.Container, error) {
	return []domain.Container{{ID: "abc123", Name: "web", State: "running"}}, nil
}
func (fakeEngine) StartContainer(_ context.Context, id string) error   { return known(id) }
func (fakeEngine) StopContainer(_ context.Context, id string) error    { return known(id) }
func (fakeEngine) RestartContainer(_ context.Context, id string) error { return known(id) }
func (fakeEngine) RemoveContainer(_ context.Context, id string) error  { return known(id) }
func (fakeEngine) ContainerLogs(_ context.Context, id string) (string, error) {
	return "listening on :80\n", known(id)
}
func (fakeEngine) ListImages(context.Context) ([]domain.ContainerImage, error) { return nil, nil }
func (fakeEngine) RemoveImage(_ context.Context, id string) error             { return known(id) }
func (fakeEngine) ListVolumes(context.Context) ([]domain.ContainerVolume, error) {
	return nil, nil
}
func (fakeEngine) RemoveVolume(_ context.Context, name string) error { return known(name) }
func (fakeEngine) ListNetworks(context.Context) ([]domain.ContainerNetwork, error) {
	return nil, errors.New("daemon exploded")
}
func (fakeEngine) RemoveNetwork(_ context.Context, id string) error { return known(id) }

func known(id string) error {
	if id == "abc123" {
		return nil
	}
	return domain.NewError(domain.ErrNotFound, "docker", id, "no such container: "+id, nil)
}

type fakeAudit struct{ events []domain.AuditEvent }

func (f *fakeAudit) Record(context.Context, *domain.AuditEvent) error { return nil }
func (f *fakeAudit) List(_ context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit > 0 && limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

// ==============================================================================
// Harness
// ==============================================================================

type testServer struct {
	*httptest.Server
	proxies *fakeProxies
	hub     *telemetry.Hub
	sweeps  *fakeSweeps
}

type serverOptions struct {
	authEnabled bool
	certErr     error
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	secret := ""
	if opts.authEnabled {
		secret = testSecret
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	auth := services.NewAdminAuthService(secret, "admin", string(hash))

	mw := middleware.NewAuthMiddleware(auth, logger)
	t.Cleanup(mw.Close)

	proxies := &fakeProxies{created: true}
	hub := telemetry.NewHub()
	sweeps := &fakeSweeps{}
	audit := &fakeAudit{events: []domain.AuditEvent{
		{Action: "proxy.upsert", Resource: "shop", Outcome: domain.OutcomeSuccess},
		{Action: "proxy.remove", Resource: "old", Outcome: domain.OutcomeSuccess},
	}}

	r := router.NewRouter(router.RouterConfig{
		Logger:         logger,
		AuthMiddleware: mw,
		AuthHandler:    handlers.NewAuthHandler(auth, false),
		ProxyHandler:   handlers.NewProxyHandler(proxies, fakeCertificates{err: opts.certErr}, sweeps),
		SystemHandler:  handlers.NewSystemHandler(fakeHost{}, "test"),
		DockerHandler:  handlers.NewDockerHandler(fakeEngine{}),
		EventsHandler:  handlers.NewEventsHandler(hub, nil, logger),
		AuditHandler:   handlers.NewAuditHandler(audit),
		MetricsHandler: telemetry.NewMetrics().Handler(),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, proxies: proxies, hub: hub, sweeps: sweeps}
}

func (s *testServer) do(t *testing.T, method, path, body string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

// ==============================================================================
// Tests
// ==============================================================================

func TestRouter_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{authEnabled: true})

	resp, body := srv.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hostpanel", body["name"])
	assert.Equal(t, "test", body["version"])

	resp, body = srv.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestRouter_Authentication(t *testing.T) {
	srv := newTestServer(t, serverOptions{authEnabled: true})

	resp, body := srv.do(t, http.MethodGet, "/api/nginx/proxies", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, _ = srv.do(t, http.MethodGet, "/api/nginx/proxies", "", "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body["message"])

	resp, body = srv.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer", body["token_type"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == domain.AccessTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp, _ = srv.do(t, http.MethodGet, "/api/nginx/proxies", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/nginx/proxies", "", "Cookie", cookie.Name+"="+cookie.Value)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Public routes stay public.
	resp, _ = srv.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_AuthDisabled(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, body := srv.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "authentication is disabled", body["message"])

	resp, _ = srv.do(t, http.MethodGet, "/api/nginx/proxies", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyRoutes_Create(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, body := srv.do(t, http.MethodPost, "/api/nginx/proxies",
		`{"name":"shop","domain":"shop.example.com","backend":"127.0.0.1:3000","ssl":true}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Proxy shop saved", body["message"])
	_, def := srv.proxies.last()
	assert.Equal(t, domain.ProxyDefinition{Name: "shop", Domain: "shop.example.com", Backend: "127.0.0.1:3000", SSL: true}, def)

	srv.proxies.set(func(f *fakeProxies) { f.created = false })
	resp, _ = srv.do(t, http.MethodPost, "/api/nginx/proxies",
		`{"name":"shop","domain":"shop.example.com","backend":"127.0.0.1:3000"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyRoutes_RejectsBadPayloads(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"name":`, "invalid JSON payload"},
		{"unknown field", `{"name":"shop","domain":"a","backend":"b","port":80}`, "invalid JSON payload"},
		{"missing domain", `{"name":"shop","backend":"b"}`, "domain is required"},
		{"traversal", `{"name":"../etc","domain":"a","backend":"b"}`, "name may only contain"},
		{"directive injection", `{"name":"shop","domain":"a; include /etc/passwd","backend":"b"}`, "domain must not contain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := srv.do(t, http.MethodPost, "/api/nginx/proxies", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["message"], tt.message)
		})
	}
}

func TestProxyRoutes_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	payload := `{"name":"shop","domain":"shop.example.com","backend":"127.0.0.1:3000"}`

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			"validation after rollback",
			&domain.ProxyError{Kind: domain.ErrValidation, Message: "nginx configuration test failed", Note: "invalid configuration removed"},
			http.StatusBadRequest, "nginx configuration test failed; invalid configuration removed",
		},
		{"not found", domain.NewError(domain.ErrNotFound, "update", "shop", "proxy not found", nil), http.StatusNotFound, "proxy not found"},
		{"filesystem", domain.NewError(domain.ErrFilesystem, "upsert", "shop", "sites-available directory does not exist", nil), http.StatusInternalServerError, "sites-available directory does not exist"},
		{"external tool", domain.NewError(domain.ErrExternalTool, "upsert", "shop", "failed to run nginx", nil), http.StatusInternalServerError, "failed to run nginx"},
		{"reload", domain.NewError(domain.ErrReload, "upsert", "shop", "configuration saved but reload failed", nil), http.StatusInternalServerError, "reload failed"},
		{
			"rollback",
			&domain.ProxyError{Kind: domain.ErrRollback, Message: "nginx configuration test failed", RollbackErr: errors.New("disk full")},
			http.StatusInternalServerError, "restore failed: disk full",
		},
		{"unknown", errors.New("secret internals"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.proxies.set(func(f *fakeProxies) { f.err = tt.err })
			resp, body := srv.do(t, http.MethodPost, "/api/nginx/proxies", payload)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["message"], tt.message)
			assert.NotContains(t, body["message"], "secret internals")
		})
	}
}

func TestProxyRoutes_UpdateAndDelete(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, body := srv.do(t, http.MethodPut, "/api/nginx/proxies/shop",
		`{"name":"shop","domain":"shop.example.com","backend":"127.0.0.1:4000"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Proxy shop updated", body["message"])
	name, _ := srv.proxies.last()
	assert.Equal(t, "shop", name)

	srv.proxies.set(func(f *fakeProxies) {
		f.err = domain.NewError(domain.ErrConflict, "update", "shop", "proxy name in body must match the path", nil)
	})
	resp, _ = srv.do(t, http.MethodPut, "/api/nginx/proxies/shop",
		`{"name":"other","domain":"shop.example.com","backend":"127.0.0.1:4000"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	srv.proxies.set(func(f *fakeProxies) {
		f.err = nil
		f.reloadErr = "systemctl: exit status 1"
	})
	resp, body = srv.do(t, http.MethodDelete, "/api/nginx/proxies/old", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "systemctl: exit status 1", body["reload_error"])
	name, _ = srv.proxies.last()
	assert.Equal(t, "old", name)
}

func TestProxyRoutes_List(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.proxies.set(func(f *fakeProxies) {
		f.listing = domain.ProxyListing{
			Proxies: []domain.ProxySummary{{Name: "shop", Domain: "shop.example.com", Enabled: true}},
		}
	})

	resp, body := srv.do(t, http.MethodGet, "/api/nginx/proxies", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	proxies, ok := body["proxies"].([]any)
	require.True(t, ok)
	require.Len(t, proxies, 1)
	assert.Equal(t, "shop", proxies[0].(map[string]any)["name"])
}

func TestProxyRoutes_Format(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, body := srv.do(t, http.MethodPost, "/api/nginx/format", `{"config":"location /api {\nproxy_pass http://b;\n}"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "location /api {\n    proxy_pass http://b;\n}", body["formatted"])

	resp, body = srv.do(t, http.MethodPost, "/api/nginx/format", `{"config":"location / {"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestProxyRoutes_CertificateAndSweep(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, body := srv.do(t, http.MethodPost, "/api/nginx/proxies/shop/certificate", `{"email":"ops@example.com"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "shop.example.com", body["domain"])

	resp, _ = srv.do(t, http.MethodPost, "/api/nginx/proxies/shop/certificate", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/nginx/proxies/shop/certificate", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/nginx/sweep", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	srv.sweeps.store(&domain.SweepReport{OrphanedBackups: []string{"shop.backup"}, DanglingLinks: []string{}})
	resp, body = srv.do(t, http.MethodGet, "/api/nginx/sweep", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"shop.backup"}, body["orphaned_backups"])
}

func TestProxyRoutes_CertificateRejected(t *testing.T) {
	srv := newTestServer(t, serverOptions{
		certErr: domain.NewError(domain.ErrConflict, "certificate", "shop", "a certificate request for shop.example.com is already in progress", nil),
	})

	resp, body := srv.do(t, http.MethodPost, "/api/nginx/proxies/shop/certificate", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "already in progress")
}

func TestSystemRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, body := srv.do(t, http.MethodGet, "/api/system", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "box", body["hostname"])

	resp, body = srv.do(t, http.MethodGet, "/api/cpu/usage", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 12.5, body["overall_usage"])

	resp, err := http.Get(srv.URL + "/api/processes?limit=3")
	require.NoError(t, err)
	var procs []domain.ProcessInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&procs))
	resp.Body.Close()
	assert.Len(t, procs, 3)

	resp, _ = srv.do(t, http.MethodGet, "/api/processes?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = srv.do(t, http.MethodDelete, "/api/processes/4242", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Process 'worker' (PID: 4242) terminated successfully", body["message"])

	resp, _ = srv.do(t, http.MethodDelete, "/api/processes/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/processes/self", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDockerRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, err := http.Get(srv.URL + "/api/docker/containers")
	require.NoError(t, err)
	var containers []domain.Container
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&containers))
	resp.Body.Close()
	require.Len(t, containers, 1)
	assert.Equal(t, "web", containers[0].Name)

	resp, body := srv.do(t, http.MethodPost, "/api/docker/containers/abc123/restart", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Container restarted successfully", body["message"])

	resp, body = srv.do(t, http.MethodPost, "/api/docker/containers/missing/start", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["message"], "missing")

	resp, body = srv.do(t, http.MethodGet, "/api/docker/containers/abc123/logs", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "listening on :80\n", body["logs"])

	resp, body = srv.do(t, http.MethodGet, "/api/docker/networks", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["message"])
}

func TestAuditRoute(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, err := http.Get(srv.URL + "/api/audit?limit=1")
	require.NoError(t, err)
	var events []domain.AuditEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	resp.Body.Close()
	require.Len(t, events, 1)
	assert.Equal(t, "proxy.upsert", events[0].Action)

	resp2, _ := srv.do(t, http.MethodGet, "/api/audit?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestEventsRoute_ServerSentEvents(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return srv.hub.Subscribers(domain.TopicNginx) == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.hub.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(domain.EventProxyCreated, "shop", "Proxy shop created"))

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, dataLine)
	assert.Equal(t, domain.EventProxyCreated, eventLine)

	var evt domain.LifecycleEvent
	require.NoError(t, json.Unmarshal([]byte(dataLine), &evt))
	assert.Equal(t, "shop", evt.Proxy)
}

func TestEventsRoute_WebSocket(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws?topic=" + domain.TopicNginx
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return srv.hub.Subscribers(domain.TopicNginx) == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.hub.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(domain.EventProxyRemoved, "old", "Proxy old removed"))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var evt domain.LifecycleEvent
	require.NoError(t, ws.ReadJSON(&evt))
	assert.Equal(t, domain.EventProxyRemoved, evt.Type)
	assert.Equal(t, "old", evt.Proxy)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return srv.hub.Subscribers(domain.TopicNginx) == 0 }, 2*time.Second, 10*time.Millisecond)
}
