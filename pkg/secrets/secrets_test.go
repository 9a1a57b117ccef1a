package secrets

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawctl/pkg/envfile"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func loadEnv(t *testing.T, content string) *envfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	f, err := envfile.Load(path)
	require.NoError(t, err)
	return f
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Regexp(t, hexToken, token)

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestEnsureGatewayTokenGeneratesOnce(t *testing.T) {
	f := loadEnv(t, "ANTHROPIC_API_KEY=sk-ant-real\n")

	token, generated, err := EnsureGatewayToken(f, quietLogger())
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Regexp(t, hexToken, token)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), envfile.KeyGatewayToken+"="))

	// Second run: no mutation, same token.
	reloaded, err := envfile.Load(f.Path())
	require.NoError(t, err)
	again, generated, err := EnsureGatewayToken(reloaded, quietLogger())
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, token, again)

	after, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, string(data), string(after))
}

func TestEnsureGatewayTokenExportsEnv(t *testing.T) {
	f := loadEnv(t, "")

	token, _, err := EnsureGatewayToken(f, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, token, os.Getenv(envfile.KeyGatewayToken))
	t.Cleanup(func() { os.Unsetenv(envfile.KeyGatewayToken) })
}

func TestResolveAPIKeyLiteral(t *testing.T) {
	f := loadEnv(t, "ANTHROPIC_API_KEY=sk-ant-api03-real\n")

	key, err := ResolveAPIKey(t.Context(), f, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-api03-real", key)
}

func TestResolveAPIKeyPlaceholderFails(t *testing.T) {
	for _, content := range []string{
		"",
		"ANTHROPIC_API_KEY=changeme\n",
		"ANTHROPIC_API_KEY=your-anthropic-api-key\n",
	} {
		f := loadEnv(t, content)
		_, err := ResolveAPIKey(t.Context(), f, quietLogger())
		assert.Error(t, err, "content %q", content)
	}
}
