package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"clawctl/pkg/envfile"
)

type fakeRunner struct {
	calls  []string
	dirs   []string
	output []byte
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.dirs = append(f.dirs, dir)
	return f.output, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestDriver(runner *fakeRunner) *Driver {
	return NewDriverWithRunner(Config{
		ProjectDir: "/srv/openclaw",
		Logger:     quietLogger(),
	}, runner)
}

func TestVersionCheck(t *testing.T) {
	runner := &fakeRunner{output: []byte("2.27.0\n")}
	driver := newTestDriver(runner)

	version, err := driver.VersionCheck(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "2.27.0", version)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "docker compose version --short", runner.calls[0])
	assert.Equal(t, "/srv/openclaw", runner.dirs[0])
}

func TestLifecycleCommands(t *testing.T) {
	runner := &fakeRunner{}
	driver := newTestDriver(runner)
	ctx := t.Context()

	require.NoError(t, driver.Pull(ctx))
	require.NoError(t, driver.Up(ctx))
	require.NoError(t, driver.Restart(ctx))
	require.NoError(t, driver.Down(ctx))

	assert.Equal(t, []string{
		"docker compose pull openclaw",
		"docker compose up -d openclaw",
		"docker compose restart openclaw",
		"docker compose down",
	}, runner.calls)
}

func TestExecRunsWithoutTTY(t *testing.T) {
	runner := &fakeRunner{output: []byte("ok")}
	driver := newTestDriver(runner)

	out, err := driver.Exec(t.Context(), "openclaw", "doctor", "--fix", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "docker compose exec -T openclaw openclaw doctor --fix --yes", runner.calls[0])
}

func TestLogsBoundedTail(t *testing.T) {
	runner := &fakeRunner{output: []byte("line one\nline two\n")}
	driver := newTestDriver(runner)

	out, err := driver.Logs(t.Context(), 200)
	require.NoError(t, err)
	assert.Contains(t, out, "line two")
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "docker compose logs --no-color --tail 200 openclaw", runner.calls[0])
}

func TestCommandFailureIncludesOutput(t *testing.T) {
	runner := &fakeRunner{output: []byte("no configuration file provided"), err: errors.New("exit status 1")}
	driver := newTestDriver(runner)

	err := driver.Up(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker compose up -d openclaw")
	assert.Contains(t, err.Error(), "no configuration file provided")
}

func TestMaterializeFile(t *testing.T) {
	dir := t.TempDir()

	created, err := MaterializeFile(dir, "/etc/openclaw/.env", "/home/op/.openclaw")
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var doc composeDocument
	require.NoError(t, yaml.Unmarshal(data, &doc))
	svc, ok := doc.Services[ServiceName]
	require.True(t, ok)
	assert.Equal(t, "${OPENCLAW_IMAGE:-"+DefaultImage+"}", svc.Image)
	assert.Equal(t, []string{"/etc/openclaw/.env"}, svc.EnvFile)
	assert.Contains(t, svc.Volumes, "/home/op/.openclaw:/home/openclaw/.openclaw")
	assert.Contains(t, svc.Ports[0], "${OPENCLAW_BIND:-127.0.0.1}")
}

func TestMaterializeFilePassesHostCredentialThrough(t *testing.T) {
	dir := t.TempDir()

	_, err := MaterializeFile(dir, "/etc/openclaw/.env", "/home/op/.openclaw")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var doc composeDocument
	require.NoError(t, yaml.Unmarshal(data, &doc))
	svc := doc.Services[ServiceName]

	// A credential resolved into the host environment must reach the
	// container even though the env file only carries a placeholder. The
	// bare form must not override the env file when the host variable is
	// unset.
	assert.Contains(t, svc.Environment, envfile.KeyAPIKey)
	assert.NotContains(t, string(data), envfile.KeyAPIKey+"=")
}

func TestMaterializeFileNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("services: {}\n"), 0644))

	created, err := MaterializeFile(dir, ".env", "/home/op/.openclaw")
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", string(data))
}
