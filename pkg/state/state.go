package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConfigFileName is the gateway's runtime config document, seeded from the
// template on first run and owned by the gateway process afterwards.
const ConfigFileName = "openclaw.json"

// markerFileName records the install id of the first successful init.
const markerFileName = ".install.json"

// ownerUID is the uid the gateway container runs as. Ownership is applied
// best-effort; user-namespace mapping may already satisfy it.
const ownerUID = 1000

// subdirs is the persisted state tree owned by the gateway: pairing
// credentials, paired-device records, per-agent session history, and the
// agent workspace.
var subdirs = []string{"credentials", "devices", "agents", "workspace"}

// Config holds settings for runtime directory initialization.
type Config struct {
	// RuntimeDir is the root of the persisted state tree.
	RuntimeDir string
	// TemplateRef optionally overrides the embedded config template with a
	// local file path or a gs://bucket/object reference.
	TemplateRef string
}

// InitResult reports what Initialize did.
type InitResult struct {
	FirstRun   bool
	InstallID  string
	ConfigPath string
}

type installMarker struct {
	InstallID string    `json:"install_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Exists reports whether the runtime directory has been initialized.
func Exists(runtimeDir string) bool {
	info, err := os.Stat(runtimeDir)
	return err == nil && info.IsDir()
}

// Initialize creates the runtime state tree on first run: subdirectories,
// the config document seeded from the template, restrictive permissions,
// and an install marker. If the tree already exists this is a pure no-op
// preserving all existing state, which is what makes the whole setup
// pipeline safe to re-run.
func Initialize(ctx context.Context, cfg Config, logger *logrus.Logger) (*InitResult, error) {
	log := logger.WithField("component", "state")
	configPath := filepath.Join(cfg.RuntimeDir, ConfigFileName)

	if Exists(cfg.RuntimeDir) {
		log.WithField("runtime_dir", cfg.RuntimeDir).Debug("Runtime directory already initialized")
		return &InitResult{
			FirstRun:   false,
			InstallID:  readInstallID(cfg.RuntimeDir),
			ConfigPath: configPath,
		}, nil
	}

	log.WithField("runtime_dir", cfg.RuntimeDir).Info("Initializing runtime directory")

	// Resolve the template before touching the filesystem: a half-created
	// tree would look initialized to the next run and never get seeded.
	template, err := loadTemplate(ctx, cfg.TemplateRef)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.RuntimeDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(cfg.RuntimeDir, sub), 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}
	if err := os.WriteFile(configPath, template, 0600); err != nil {
		return nil, fmt.Errorf("failed to seed config file: %w", err)
	}

	if err := chownTree(cfg.RuntimeDir, ownerUID, ownerUID); err != nil {
		log.WithError(err).WithField("uid", ownerUID).Warn("Failed to apply ownership; continuing")
	}
	if err := os.Chmod(cfg.RuntimeDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to restrict runtime directory permissions: %w", err)
	}

	marker := installMarker{
		InstallID: uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := writeJSON(filepath.Join(cfg.RuntimeDir, markerFileName), marker); err != nil {
		return nil, fmt.Errorf("failed to write install marker: %w", err)
	}

	log.WithFields(logrus.Fields{
		"install_id":  marker.InstallID,
		"config_path": configPath,
	}).Info("Runtime directory initialized")

	return &InitResult{
		FirstRun:   true,
		InstallID:  marker.InstallID,
		ConfigPath: configPath,
	}, nil
}

// Reset deletes the entire runtime state tree. Destructive and
// irreversible; callers gate this behind explicit confirmation.
func Reset(runtimeDir string, logger *logrus.Logger) error {
	log := logger.WithField("component", "state")

	if !Exists(runtimeDir) {
		log.WithField("runtime_dir", runtimeDir).Info("Runtime directory does not exist; nothing to reset")
		return nil
	}

	if err := os.RemoveAll(runtimeDir); err != nil {
		return fmt.Errorf("failed to delete runtime directory: %w", err)
	}

	log.WithField("runtime_dir", runtimeDir).Info("Runtime directory deleted")
	return nil
}

func readInstallID(runtimeDir string) string {
	data, err := os.ReadFile(filepath.Join(runtimeDir, markerFileName))
	if err != nil {
		return ""
	}
	var marker installMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return ""
	}
	return marker.InstallID
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
