package daemon

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/fika-labs/agentrelay/internal/config"
	"github.com/fika-labs/agentrelay/internal/logger"
	"github.com/fika-labs/agentrelay/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// createTestDaemon creates a daemon on an ephemeral port with an
// isolated database
func createTestDaemon(t *testing.T) (*Daemon, *logger.Logger) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Database.Path = filepath.Join(tmpDir, "sessions.db")
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Providers.Anthropic.APIKey = "sk-ant-test-key"

	log, err := logger.New(logger.Config{
		Level:   "info",
		Console: false,
	})
	require.NoError(t, err)

	d, err := New(cfg, log)
	require.NoError(t, err)

	return d, log
}

func TestNew(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	assert.NotNil(t, d.store)
	assert.NotNil(t, d.registry)
	assert.NotNil(t, d.queue)
	assert.NotNil(t, d.apiServer)
	assert.NotNil(t, d.gatewayServer)
}

func TestNew_GatewayDisabled(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Database.Path = filepath.Join(tmpDir, "sessions.db")
	cfg.Server.Port = freePort(t)
	cfg.Gateway.Enabled = false
	cfg.Providers.Anthropic.APIKey = "sk-ant-test-key"

	log, err := logger.New(logger.Config{Level: "info"})
	require.NoError(t, err)
	defer log.Close()

	d, err := New(cfg, log)
	require.NoError(t, err)
	assert.Nil(t, d.gatewayServer)

	require.NoError(t, d.store.Close())
}

func TestDaemonStartStop(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	err := d.Start()
	require.NoError(t, err)

	status := d.Status()
	assert.True(t, status.Running)

	time.Sleep(100 * time.Millisecond)

	err = d.Stop()
	require.NoError(t, err)

	status = d.Status()
	assert.False(t, status.Running)
}

func TestDaemonStart_Twice(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, d.Start())
	defer d.Stop()

	err := d.Start()
	assert.Error(t, err)
}

func TestDaemonStatus(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	require.NoError(t, d.Start())
	defer d.Stop()

	time.Sleep(100 * time.Millisecond)
	status = d.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.Uptime, time.Duration(0))
}

func storeSessionFixture() store.Session {
	return store.Session{
		ID:          "sess-1",
		Model:       "claude-sonnet-4-20250514",
		ToolVersion: "computer_use_20250124",
	}
}

func TestCoordinatorFactory_RequiresAPIKey(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()
	defer d.store.Close()

	d.config.Providers.Anthropic.APIKey = ""

	_, err := d.coordinatorFactory(storeSessionFixture())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no API key")
}

func TestCoordinatorFactory_Builds(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()
	defer d.store.Close()

	coord, err := d.coordinatorFactory(storeSessionFixture())
	require.NoError(t, err)
	assert.NotNil(t, coord)
}
