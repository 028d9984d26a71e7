// Package config loads and defaults the orchestrator's YAML configuration
// (spec §6 configuration table).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all aegisd configuration, unmarshalled from a single YAML
// file and then defaulted section by section.
type Config struct {
	Swarm     SwarmConfig     `yaml:"swarm"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Container ContainerConfig `yaml:"container"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
}

// SwarmConfig configures C3.
type SwarmConfig struct {
	MaxWorkers             int `yaml:"maxWorkers"`
	TaskTimeoutMs          int `yaml:"taskTimeoutMs"`
	HealthCheckIntervalMs  int `yaml:"healthCheckIntervalMs"`
}

// WorkspaceConfig configures C1.
type WorkspaceConfig struct {
	RootPath         string `yaml:"rootPath"`
	TempPath         string `yaml:"tempPath"`
	TTLMs            int64  `yaml:"ttlMs"`
	SweepIntervalMs  int    `yaml:"sweepIntervalMs"`
	MaxFileBytes     int64  `yaml:"maxFileBytes"`
}

// ContainerConfig configures the containerised worker-slot strategy.
type ContainerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Image      string `yaml:"image"`
	SocketPath string `yaml:"socketPath"`
	Network    string `yaml:"network"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"jsonOutput"`
}

// APIConfig configures the HTTP control plane.
type APIConfig struct {
	ListenAddr          string `yaml:"listenAddr"`
	MaxRequestBodyBytes int64  `yaml:"maxRequestBodyBytes"`
}

// Default returns the configuration's zero-value-filled defaults (spec §4,
// §6): 16 workers, 5s health sweep, 24h workspace TTL.
func Default() *Config {
	return &Config{
		Swarm: SwarmConfig{
			MaxWorkers:            16,
			TaskTimeoutMs:         120_000,
			HealthCheckIntervalMs: 5_000,
		},
		Workspace: WorkspaceConfig{
			RootPath:        "data/workspaces",
			TempPath:        "data/tmp",
			TTLMs:           24 * 60 * 60 * 1000,
			SweepIntervalMs: 60_000,
			MaxFileBytes:    10 << 20,
		},
		Container: ContainerConfig{
			Enabled:    false,
			Image:      "aegis/worker:latest",
			SocketPath: "",
			Network:    "bridge",
		},
		Log: LogConfig{
			Level:      "info",
			JSONOutput: false,
		},
		API: APIConfig{
			ListenAddr:          ":8080",
			MaxRequestBodyBytes: 1 << 20, // 1MB; mission briefs are small JSON documents
		},
	}
}

// Load reads a YAML config file at path and layers it over Default(). A
// missing file is not an error: Default() is returned as-is, mirroring the
// teacher's "no config file means use defaults" behavior.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in any zero-value fields left empty after
// unmarshalling a partial YAML document.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Swarm.MaxWorkers == 0 {
		cfg.Swarm.MaxWorkers = d.Swarm.MaxWorkers
	}
	if cfg.Swarm.TaskTimeoutMs == 0 {
		cfg.Swarm.TaskTimeoutMs = d.Swarm.TaskTimeoutMs
	}
	if cfg.Swarm.HealthCheckIntervalMs == 0 {
		cfg.Swarm.HealthCheckIntervalMs = d.Swarm.HealthCheckIntervalMs
	}

	if cfg.Workspace.RootPath == "" {
		cfg.Workspace.RootPath = d.Workspace.RootPath
	}
	if cfg.Workspace.TempPath == "" {
		cfg.Workspace.TempPath = d.Workspace.TempPath
	}
	if cfg.Workspace.TTLMs == 0 {
		cfg.Workspace.TTLMs = d.Workspace.TTLMs
	}
	if cfg.Workspace.SweepIntervalMs == 0 {
		cfg.Workspace.SweepIntervalMs = d.Workspace.SweepIntervalMs
	}
	if cfg.Workspace.MaxFileBytes == 0 {
		cfg.Workspace.MaxFileBytes = d.Workspace.MaxFileBytes
	}

	if cfg.Container.Image == "" {
		cfg.Container.Image = d.Container.Image
	}
	if cfg.Container.Network == "" {
		cfg.Container.Network = d.Container.Network
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}

	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = d.API.ListenAddr
	}
	if cfg.API.MaxRequestBodyBytes == 0 {
		cfg.API.MaxRequestBodyBytes = d.API.MaxRequestBodyBytes
	}
}
