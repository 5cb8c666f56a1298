package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// CommandObserver receives the wall time of every external invocation.
type CommandObserver interface {
	ObserveCommand(command string, d time.Duration)
}

// NginxAdapter implements domain.WebServerManager by shelling out to the local
// nginx binary and service manager.
type NginxAdapter struct {
	binary    string
	testArgs  []string
	reloadCmd []string
	timeout   time.Duration
	observer  CommandObserver
	logger    *slog.Logger
}

var _ domain.WebServerManager = (*NginxAdapter)(nil)

func NewNginxAdapter(binary string, reloadCmd []string, timeout time.Duration, observer CommandObserver, logger *slog.Logger) *NginxAdapter {
	return &NginxAdapter{
		binary:    binary,
		testArgs:  []string{"-t"},
		reloadCmd: reloadCmd,
		timeout:   timeout,
		observer:  observer,
		logger:    logger.With(slog.String("component", "nginx")),
	}
}

// WithTestArgs overrides the arguments passed to the binary for a config test.
func (a *NginxAdapter) WithTestArgs(args ...string) *NginxAdapter {
	a.testArgs = args
	return a
}

func (a *NginxAdapter) TestConfig(ctx context.Context) error {
	return a.run(ctx, "test", append([]string{a.binary}, a.testArgs...))
}

func (a *NginxAdapter) Reload(ctx context.Context) error {
	return a.run(ctx, "reload", a.reloadCmd)
}

func (a *NginxAdapter) run(ctx context.Context, label string, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return &domain.CommandError{Command: label, Err: errors.New("no command configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if a.observer != nil {
		a.observer.ObserveCommand(label, elapsed)
	}

	command := strings.Join(argv, " ")
	if err == nil {
		a.logger.Debug("command succeeded", slog.String("command", command), slog.Duration("took", elapsed))
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		a.logger.Error("command timed out", slog.String("command", command), slog.Duration("timeout", a.timeout))
		return &domain.CommandError{Command: command, Err: fmt.Errorf("timed out after %s", a.timeout)}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		a.logger.Error("command could not start", slog.String("command", command), slog.String("error", err.Error()))
		return &domain.CommandError{Command: command, Err: err}
	}

	output := stderr.String()
	if strings.TrimSpace(output) == "" {
		output = stdout.String()
	}
	a.logger.Warn("command reported failure",
		slog.String("command", command),
		slog.Int("exit_code", exitErr.ExitCode()),
		slog.String("output", strings.TrimSpace(output)),
	)
	return &domain.CommandError{Command: command, Output: output, Started: true, Err: err}
}
