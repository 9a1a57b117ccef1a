package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"clawctl/pkg/envfile"
)

type composeDocument struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Restart       string   `yaml:"restart"`
	EnvFile       []string `yaml:"env_file"`
	Environment   []string `yaml:"environment,omitempty"`
	Ports         []string `yaml:"ports"`
	Volumes       []string `yaml:"volumes"`
}

// MaterializeFile writes the compose file into projectDir unless one already
// exists; a hand-edited file is never clobbered. envFile should be an
// absolute path, since compose resolves env_file relative to the compose
// file's own directory, not the invocation directory. Values the operator may
// want to change without regenerating the file use compose variable
// interpolation with defaults, so the secrets file remains the single tuning
// point. Returns whether a file was written.
func MaterializeFile(projectDir, envFile, runtimeDir string) (bool, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	doc := composeDocument{
		Services: map[string]composeService{
			ServiceName: {
				Image:         fmt.Sprintf("${OPENCLAW_IMAGE:-%s}", DefaultImage),
				ContainerName: ServiceName,
				Restart:       "unless-stopped",
				EnvFile:       []string{envFile},
				// The secrets file may hold a placeholder when the real
				// credential is resolved from Secret Manager into the host
				// environment; this passthrough is the only path from there
				// into the container. A bare entry is excluded when the host
				// variable is unset, so the literal key in the secrets file
				// still wins on that path.
				Environment: []string{envfile.KeyAPIKey},
				Ports: []string{
					fmt.Sprintf("${OPENCLAW_BIND:-%s}:${OPENCLAW_PORT:-%d}:%d", DefaultBind, DefaultPort, DefaultPort),
					fmt.Sprintf("${OPENCLAW_BIND:-%s}:${OPENCLAW_BRIDGE_PORT:-%d}:%d", DefaultBind, DefaultBridgePort, DefaultBridgePort),
				},
				Volumes: []string{
					fmt.Sprintf("%s:/home/openclaw/.openclaw", runtimeDir),
				},
			},
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal compose file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
