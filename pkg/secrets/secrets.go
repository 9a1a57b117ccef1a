package secrets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/sirupsen/logrus"

	"clawctl/pkg/envfile"
)

// tokenBytes is the entropy of a generated gateway token: 256 bits,
// rendered as 64 hex characters.
const tokenBytes = 32

// GenerateToken returns a new cryptographically random gateway token.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// EnsureGatewayToken makes sure the secrets file carries a gateway token,
// generating one on first run. An existing non-empty token is never
// rewritten. The token is exported into the process environment either way
// so later steps (compose interpolation) can see it. The second return
// value reports whether a new token was generated.
func EnsureGatewayToken(f *envfile.File, logger *logrus.Logger) (string, bool, error) {
	log := logger.WithField("component", "secrets")

	if token := f.Get(envfile.KeyGatewayToken); token != "" {
		log.Debug("Gateway token already present")
		if err := os.Setenv(envfile.KeyGatewayToken, token); err != nil {
			return "", false, fmt.Errorf("failed to export gateway token: %w", err)
		}
		return token, false, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", false, err
	}

	f.Set(envfile.KeyGatewayToken, token)
	if err := f.Save(); err != nil {
		return "", false, fmt.Errorf("failed to persist gateway token: %w", err)
	}
	if err := os.Setenv(envfile.KeyGatewayToken, token); err != nil {
		return "", false, fmt.Errorf("failed to export gateway token: %w", err)
	}

	log.WithField("env_file", f.Path()).Info("Generated gateway token")
	return token, true, nil
}

// ResolveAPIKey returns the AI provider credential for the gateway. A
// literal, non-placeholder ANTHROPIC_API_KEY in the secrets file wins.
// Otherwise, when ANTHROPIC_API_KEY_SECRET names a Google Secret Manager
// resource, the latest version is fetched and exported into the process
// environment so the compose environment picks it up.
func ResolveAPIKey(ctx context.Context, f *envfile.File, logger *logrus.Logger) (string, error) {
	log := logger.WithField("component", "secrets")

	if key := f.Get(envfile.KeyAPIKey); !envfile.IsPlaceholder(key) {
		return key, nil
	}

	ref := f.Get(envfile.KeyAPIKeySecret)
	if ref == "" {
		return "", fmt.Errorf("%s is missing or still a placeholder in %s", envfile.KeyAPIKey, f.Path())
	}

	key, err := fetchSecret(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to fetch API key from secret manager: %w", err)
	}
	if envfile.IsPlaceholder(key) {
		return "", fmt.Errorf("secret %s resolved to an empty or placeholder value", ref)
	}

	if err := os.Setenv(envfile.KeyAPIKey, key); err != nil {
		return "", fmt.Errorf("failed to export API key: %w", err)
	}

	log.WithField("secret", ref).Info("Resolved API key from Secret Manager")
	return key, nil
}

// fetchSecret reads a secret value from Google Secret Manager. ref may be
// a full version resource name or a bare secret name, in which case the
// latest version is used.
func fetchSecret(ctx context.Context, ref string) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create secret manager client: %w", err)
	}
	defer client.Close()

	name := ref
	if !strings.Contains(ref, "/versions/") {
		name = ref + "/versions/latest"
	}

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}

	return strings.TrimSpace(string(result.Payload.Data)), nil
}
