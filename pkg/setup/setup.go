package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"clawctl/pkg/compose"
	"clawctl/pkg/envfile"
	"clawctl/pkg/gateway"
	"clawctl/pkg/secrets"
	"clawctl/pkg/state"
)

// ErrNotConfirmed signals a declined reset prompt. The caller treats it as a
// clean abort, not a failure.
var ErrNotConfirmed = errors.New("reset not confirmed")

// ErrPlaceholderCredential signals that the secrets file still carries the
// template's placeholder API key.
var ErrPlaceholderCredential = errors.New("API credential is missing or still a placeholder")

// Config holds the operational knobs for a pipeline run.
type Config struct {
	// RuntimeDir is the gateway's persisted state tree.
	RuntimeDir string
	// EnvFile is the path to the KEY=VALUE secrets file.
	EnvFile string
	// ProjectDir is where the compose file lives and compose commands run.
	ProjectDir string
	// TemplateRef optionally overrides the embedded config template with a
	// local file or a gs:// object.
	TemplateRef string
	// Ready tunes the readiness poll.
	Ready gateway.MonitorConfig
	// RepairSettle is the pause after the post-repair restart; zero means
	// the default.
	RepairSettle time.Duration
}

// Pipeline runs the provisioning steps in order, failing fast on the first
// error. Every step except Reset is idempotent, so any aborted run is safe to
// repeat.
type Pipeline struct {
	config   Config
	driver   *compose.Driver
	lookPath func(string) (string, error)
	confirm  io.Reader
	logger   *logrus.Logger
	log      *logrus.Entry
}

// New creates a pipeline driving the given compose driver.
func New(cfg Config, driver *compose.Driver, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		config:   cfg,
		driver:   driver,
		lookPath: exec.LookPath,
		confirm:  os.Stdin,
		logger:   logger,
		log:      logger.WithField("component", "setup"),
	}
}

// validate checks the local preconditions: container runtime on PATH, the
// compose plugin answering, the secrets file present, and the API credential
// resolvable to a real value. It runs before any container state is touched.
func (p *Pipeline) validate(ctx context.Context) (*envfile.File, error) {
	bin := p.driver.DockerBin()
	if _, err := p.lookPath(bin); err != nil {
		return nil, fmt.Errorf("%s not found on PATH, install it from https://docs.docker.com/get-docker/: %w", bin, err)
	}

	version, err := p.driver.VersionCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("the compose plugin is not working, install docker-compose-plugin: %w", err)
	}
	p.log.WithField("compose_version", version).Debug("Container runtime is available")

	envFile, err := envfile.Load(p.config.EnvFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("secrets file %s is missing, copy .env.example and fill in %s: %w",
			p.config.EnvFile, envfile.KeyAPIKey, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", p.config.EnvFile, err)
	}

	if envfile.IsPlaceholder(envFile.Get(envfile.KeyAPIKey)) && envFile.Get(envfile.KeyAPIKeySecret) == "" {
		return nil, fmt.Errorf("set %s in %s to a real credential: %w",
			envfile.KeyAPIKey, p.config.EnvFile, ErrPlaceholderCredential)
	}

	return envFile, nil
}

// Run executes the full setup sequence.
func (p *Pipeline) Run(ctx context.Context) error {
	envFile, err := p.validate(ctx)
	if err != nil {
		return err
	}

	if _, err := secrets.ResolveAPIKey(ctx, envFile, p.logger); err != nil {
		return err
	}
	if _, _, err := secrets.EnsureGatewayToken(envFile, p.logger); err != nil {
		return err
	}

	initResult, err := state.Initialize(ctx, state.Config{
		RuntimeDir:  p.config.RuntimeDir,
		TemplateRef: p.config.TemplateRef,
	}, p.logger)
	if err != nil {
		return err
	}

	// Compose resolves env_file against the compose file's directory, so a
	// relative -env-file outside the project dir would dangle.
	envPath, err := filepath.Abs(p.config.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to resolve secrets file path: %w", err)
	}
	created, err := compose.MaterializeFile(p.config.ProjectDir, envPath, p.config.RuntimeDir)
	if err != nil {
		return err
	}
	if created {
		p.log.WithField("path", filepath.Join(p.config.ProjectDir, compose.FileName)).Info("Wrote compose file")
	}

	if err := p.driver.Pull(ctx); err != nil {
		return err
	}
	if err := p.driver.Up(ctx); err != nil {
		return err
	}

	monitor := gateway.NewMonitor(p.config.Ready, p.driver.Logs, p.logger)
	if err := monitor.WaitReady(ctx); err != nil {
		return fmt.Errorf("%w, inspect the logs with: docker compose logs %s", err, compose.ServiceName)
	}

	if initResult.FirstRun {
		repairer := gateway.NewRepairer(p.driver, p.config.RepairSettle, p.logger)
		if err := repairer.Run(ctx); err != nil {
			return err
		}
		if err := monitor.WaitReady(ctx); err != nil {
			return fmt.Errorf("gateway did not come back after repair restart: %w", err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"runtime_dir": p.config.RuntimeDir,
		"first_run":   initResult.FirstRun,
	}).Info("Gateway is up")
	return nil
}

// Reset tears down the service and deletes all persisted runtime state after
// an interactive confirmation. Anything other than the exact literal "yes"
// aborts with ErrNotConfirmed and no side effects.
func (p *Pipeline) Reset(ctx context.Context) error {
	fmt.Printf("This deletes %s and all paired devices, sessions, and credentials.\n", p.config.RuntimeDir)
	fmt.Print(`Type "yes" to delete all gateway state: `)

	line, err := bufio.NewReader(p.confirm).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != "yes" {
		p.log.Info("Reset aborted")
		return ErrNotConfirmed
	}

	// Best effort: the service may never have been started.
	if err := p.driver.Down(ctx); err != nil {
		p.log.WithError(err).Warn("Compose down failed, continuing with state deletion")
	}

	return state.Reset(p.config.RuntimeDir, p.logger)
}
