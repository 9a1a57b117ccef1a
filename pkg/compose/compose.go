package compose

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ServiceName is the compose service running the gateway.
const ServiceName = "openclaw"

// FileName is the compose file materialized into the project directory.
const FileName = "docker-compose.yml"

// Default connection settings, overridable through the secrets file.
const (
	DefaultImage      = "ghcr.io/openclaw/openclaw:latest"
	DefaultBind       = "127.0.0.1"
	DefaultPort       = 18789
	DefaultBridgePort = 18790
)

// Runner executes an external command in dir and returns its combined
// output. Injectable so the driver can be exercised without a container
// runtime on the host.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	return cmd.CombinedOutput()
}

// Config holds settings for the compose driver.
type Config struct {
	// ProjectDir is where the compose file and env file live; all commands
	// run with it as their working directory.
	ProjectDir string
	// DockerBin is the container runtime binary, normally "docker".
	DockerBin string
	Logger    *logrus.Logger
}

// Driver issues the five lifecycle call classes the harness needs (version
// check, pull, up, restart, down) plus exec and a bounded log tail, all
// through the `docker compose` plugin.
type Driver struct {
	config Config
	runner Runner
	logger *logrus.Entry
}

// NewDriver creates a driver backed by the real container runtime.
func NewDriver(cfg Config) *Driver {
	return NewDriverWithRunner(cfg, execRunner{})
}

// NewDriverWithRunner creates a driver with a custom command runner.
func NewDriverWithRunner(cfg Config, runner Runner) *Driver {
	if cfg.DockerBin == "" {
		cfg.DockerBin = "docker"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Driver{
		config: cfg,
		runner: runner,
		logger: logger.WithField("component", "compose"),
	}
}

// DockerBin returns the container runtime binary the driver shells out to.
func (d *Driver) DockerBin() string {
	return d.config.DockerBin
}

func (d *Driver) compose(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"compose"}, args...)
	d.logger.WithField("args", strings.Join(full, " ")).Debug("Running compose command")

	out, err := d.runner.Run(ctx, d.config.ProjectDir, d.config.DockerBin, full...)
	if err != nil {
		return out, fmt.Errorf("docker %s failed: %s: %w", strings.Join(full, " "), strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// VersionCheck confirms the compose plugin is installed and returns its
// version string.
func (d *Driver) VersionCheck(ctx context.Context) (string, error) {
	out, err := d.compose(ctx, "version", "--short")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Pull fetches the configured gateway image.
func (d *Driver) Pull(ctx context.Context) error {
	d.logger.Info("Pulling gateway image")
	_, err := d.compose(ctx, "pull", ServiceName)
	return err
}

// Up starts the gateway service detached.
func (d *Driver) Up(ctx context.Context) error {
	d.logger.Info("Starting gateway service")
	_, err := d.compose(ctx, "up", "-d", ServiceName)
	return err
}

// Restart restarts the gateway service.
func (d *Driver) Restart(ctx context.Context) error {
	d.logger.Info("Restarting gateway service")
	_, err := d.compose(ctx, "restart", ServiceName)
	return err
}

// Down stops and removes the gateway service.
func (d *Driver) Down(ctx context.Context) error {
	d.logger.Info("Stopping gateway service")
	_, err := d.compose(ctx, "down")
	return err
}

// Exec runs a command inside the running gateway container without a TTY.
func (d *Driver) Exec(ctx context.Context, command ...string) ([]byte, error) {
	args := append([]string{"exec", "-T", ServiceName}, command...)
	return d.compose(ctx, args...)
}

// Logs returns up to tail lines of the gateway service's log stream.
func (d *Driver) Logs(ctx context.Context, tail int) (string, error) {
	out, err := d.compose(ctx, "logs", "--no-color", "--tail", strconv.Itoa(tail), ServiceName)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
