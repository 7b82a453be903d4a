package cli

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flowstate/internal/config"
	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ticketYAML = `name: ticket
entity_type: ticket
initial_state: OPEN
states: [OPEN, CLOSED]
transitions:
  - event: close
    from: OPEN
    to: CLOSED
`

func testConfig(t *testing.T, environ map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeWorkflow(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func closeTicket(t *testing.T, app *App, entity string) *domain.WorkflowInstance {
	t.Helper()
	ctx := context.Background()
	_, err := app.LoadWorkflows(ctx, writeWorkflow(t, t.TempDir(), "ticket.yaml", ticketYAML))
	require.NoError(t, err)
	inst, err := app.Engine.Transition(ctx, "ticket", entity, "close", domain.TransitionOptions{
		Data: map[string]any{"email": "jane@example.com"},
	})
	require.NoError(t, err)
	return inst
}

func TestNewApp_Memory(t *testing.T) {
	app := newTestApp(t, testConfig(t, map[string]string{}))

	inst := closeTicket(t, app, "T-1")
	assert.Equal(t, "CLOSED", inst.CurrentState)

	count, err := testutil.GatherAndCount(app.Registry, "flowstate_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewApp_MetricsDisabled(t *testing.T) {
	app := newTestApp(t, testConfig(t, map[string]string{"FLOWSTATE_METRICS": "false"}))
	closeTicket(t, app, "T-1")

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestNewApp_FileStoreWithMiddlewares(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	cfg := testConfig(t, map[string]string{
		"FLOWSTATE_STORE":          "file",
		"FLOWSTATE_FILE_DIR":       dir,
		"FLOWSTATE_PII_FIELDS":     "email",
		"FLOWSTATE_ENCRYPTION_KEY": key,
	})
	app := newTestApp(t, cfg)

	inst := closeTicket(t, app, "T-1")
	assert.Equal(t, "jane@example.com", inst.Metadata["email"])

	raw, err := os.ReadFile(filepath.Join(dir, "ticket", "T-1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "jane@example.com")
	assert.Contains(t, string(raw), "__encrypted__")

	loaded, err := app.Engine.GetInstance(context.Background(), "ticket", "T-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "***", loaded.Metadata["email"])
}

func TestNewApp_InvalidKey(t *testing.T) {
	_, err := NewApp(context.Background(), testConfig(t, map[string]string{
		"FLOWSTATE_ENCRYPTION_KEY": "c2hvcnQ=",
	}), logging.NewNop())
	assert.ErrorContains(t, err, "invalid encryption key")
}

func TestNewApp_InvalidPIIPattern(t *testing.T) {
	// Built directly so Validate does not reject it first.
	cfg := testConfig(t, map[string]string{})
	cfg.PIIFields = []string{"email", "(card"}

	_, err := NewApp(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "invalid PII pattern")
}

func TestNewApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, testConfig(t, map[string]string{
		"FLOWSTATE_STORE":         "redis",
		"FLOWSTATE_REDIS_ADDR":    mr.Addr(),
		"FLOWSTATE_REDIS_PUBLISH": "true",
	}))

	closeTicket(t, app, "T-7")
	assert.True(t, mr.Exists("flowstate:instance:ticket:T-7"))
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	_, err := NewApp(context.Background(), testConfig(t, map[string]string{
		"FLOWSTATE_STORE":      "redis",
		"FLOWSTATE_REDIS_ADDR": addr,
	}), logging.NewNop())
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestLoadWorkflows(t *testing.T) {
	app := newTestApp(t, testConfig(t, map[string]string{}))

	n, err := app.LoadWorkflows(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = app.LoadWorkflows(context.Background(), "../../pkg/loader/testdata")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = app.LoadWorkflows(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func startWatch(t *testing.T, app *App, path string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done, err := app.WatchDefinitions(ctx, path, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatchDefinitions(t *testing.T) {
	app := newTestApp(t, testConfig(t, map[string]string{}))
	dir := t.TempDir()
	writeWorkflow(t, dir, "ticket.yaml", ticketYAML)
	_, err := app.LoadWorkflows(context.Background(), dir)
	require.NoError(t, err)

	startWatch(t, app, dir)

	writeWorkflow(t, dir, "ticket.yaml", strings.Replace(ticketYAML, "entity_type: ticket", "entity_type: issue", 1))

	assert.Eventually(t, func() bool {
		def, ok := app.Engine.GetWorkflow("ticket")
		return ok && def.EntityType == "issue"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchDefinitions_SurvivesBrokenFile(t *testing.T) {
	app := newTestApp(t, testConfig(t, map[string]string{}))
	dir := t.TempDir()
	path := writeWorkflow(t, dir, "ticket.yaml", ticketYAML)
	_, err := app.LoadWorkflows(context.Background(), path)
	require.NoError(t, err)

	startWatch(t, app, path)

	writeWorkflow(t, dir, "ticket.yaml", "name: [unclosed")
	time.Sleep(100 * time.Millisecond)
	def, ok := app.Engine.GetWorkflow("ticket")
	require.True(t, ok, "previous definition stays in place")
	assert.Equal(t, "ticket", def.EntityType)

	writeWorkflow(t, dir, "ticket.yaml", strings.Replace(ticketYAML, "entity_type: ticket", "entity_type: issue", 1))
	assert.Eventually(t, func() bool {
		def, ok := app.Engine.GetWorkflow("ticket")
		return ok && def.EntityType == "issue"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchDefinitions_MissingPath(t *testing.T) {
	app := newTestApp(t, testConfig(t, map[string]string{}))
	_, err := app.WatchDefinitions(context.Background(), filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)
}
