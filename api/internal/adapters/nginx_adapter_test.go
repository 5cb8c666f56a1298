//go:build unix

package adapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irgordon/hostpanel/api/internal/adapters"
	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveCommand(command string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, command)
}

func TestNginxAdapter_TestConfig(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		obs := &recordingObserver{}
		a := adapters.NewNginxAdapter("sh", []string{"true"}, time.Second, obs, discardLogger()).
			WithTestArgs("-c", "exit 0")

		require.NoError(t, a.TestConfig(context.Background()))
		assert.Equal(t, []string{"test"}, obs.calls)
	})

	t.Run("Reported failure carries stderr", func(t *testing.T) {
		a := adapters.NewNginxAdapter("sh", []string{"true"}, time.Second, nil, discardLogger()).
			WithTestArgs("-c", "echo 'nginx: [emerg] unknown directive \"foo\"' >&2; exit 1")

		err := a.TestConfig(context.Background())
		require.Error(t, err)

		var cmdErr *domain.CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.True(t, cmdErr.Started)
		assert.Contains(t, cmdErr.Error(), `unknown directive "foo"`)
	})

	t.Run("Missing binary is a failure to execute", func(t *testing.T) {
		a := adapters.NewNginxAdapter("/nonexistent/nginx", []string{"true"}, time.Second, nil, discardLogger())

		err := a.TestConfig(context.Background())
		var cmdErr *domain.CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.False(t, cmdErr.Started)
	})

	t.Run("Timeout is a failure to execute", func(t *testing.T) {
		a := adapters.NewNginxAdapter("sh", []string{"true"}, 100*time.Millisecond, nil, discardLogger()).
			WithTestArgs("-c", "exec sleep 5")

		err := a.TestConfig(context.Background())
		var cmdErr *domain.CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.False(t, cmdErr.Started)
		assert.Contains(t, cmdErr.Error(), "timed out")
	})
}

func TestNginxAdapter_Reload(t *testing.T) {
	obs := &recordingObserver{}

	ok := adapters.NewNginxAdapter("nginx", []string{"true"}, time.Second, obs, discardLogger())
	require.NoError(t, ok.Reload(context.Background()))

	failing := adapters.NewNginxAdapter("nginx", []string{"false"}, time.Second, obs, discardLogger())
	assert.Error(t, failing.Reload(context.Background()))

	empty := adapters.NewNginxAdapter("nginx", nil, time.Second, obs, discardLogger())
	assert.Error(t, empty.Reload(context.Background()))

	assert.Equal(t, []string{"reload", "reload"}, obs.calls)
}
