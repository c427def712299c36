package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDevicePort     = 8728
	DefaultDeviceTLSPort  = 8729
	DefaultCallTimeoutSec = 20
	DefaultPingCount      = 4
	DefaultTracerouteHops = 30
	DefaultCardCeiling    = 100
	DefaultDatabasePath   = "hotspotctl.db"

	vaultKeyBytes = 32
)

// Config holds bot, storage and diagnostic settings.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Device  DeviceConfig  `yaml:"device"`
	Cards   CardsConfig   `yaml:"cards"`
	Health  HealthConfig  `yaml:"health"`
	Storage StorageConfig `yaml:"storage"`
}

// BotConfig configures the Telegram front end.
type BotConfig struct {
	Token string `yaml:"token"`
	// AllowedUsers are chat user IDs authorized on first contact. Empty
	// means users must be authorized through the store out of band.
	AllowedUsers []int64 `yaml:"allowed_users,omitempty"`
	Debug        bool    `yaml:"debug,omitempty"`
}

// DeviceConfig carries per-call diagnostic settings for device sessions.
type DeviceConfig struct {
	DefaultPort    int `yaml:"default_port"`
	DefaultTLSPort int `yaml:"default_tls_port"`
	CallTimeoutSec int `yaml:"call_timeout_sec"`
	PingCount      int `yaml:"ping_count"`
	TracerouteHops int `yaml:"traceroute_hops"`
}

// CardsConfig bounds access-card batch generation.
type CardsConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
}

// HealthConfig holds diagnostic thresholds (percentages and ratios).
type HealthConfig struct {
	CPUWarnPercent      float64 `yaml:"cpu_warn_percent"`
	CPUErrorPercent     float64 `yaml:"cpu_error_percent"`
	MemoryWarnPercent   float64 `yaml:"memory_warn_percent"`
	MemoryErrorPercent  float64 `yaml:"memory_error_percent"`
	InterfaceWarnRatio  float64 `yaml:"interface_warn_ratio"`
	InterfaceErrorRatio float64 `yaml:"interface_error_ratio"`
}

// StorageConfig configures the SQLite store and the credential vault.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	// VaultKey is a base64-encoded 32-byte key sealing stored device
	// passwords. Generated by `hotspotctl init`.
	VaultKey string `yaml:"vault_key"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot.token is required")
	}
	if cfg.Storage.VaultKey == "" {
		return fmt.Errorf("storage.vault_key is required")
	}
	key, err := base64.StdEncoding.DecodeString(cfg.Storage.VaultKey)
	if err != nil {
		return fmt.Errorf("storage.vault_key is not valid base64: %v", err)
	}
	if len(key) != vaultKeyBytes {
		return fmt.Errorf("storage.vault_key must decode to %d bytes, got %d", vaultKeyBytes, len(key))
	}
	if cfg.Health.CPUWarnPercent >= cfg.Health.CPUErrorPercent {
		return fmt.Errorf("health.cpu_warn_percent must be below cpu_error_percent")
	}
	if cfg.Health.MemoryWarnPercent >= cfg.Health.MemoryErrorPercent {
		return fmt.Errorf("health.memory_warn_percent must be below memory_error_percent")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Device.DefaultPort == 0 {
		cfg.Device.DefaultPort = DefaultDevicePort
	}
	if cfg.Device.DefaultTLSPort == 0 {
		cfg.Device.DefaultTLSPort = DefaultDeviceTLSPort
	}
	if cfg.Device.CallTimeoutSec == 0 {
		cfg.Device.CallTimeoutSec = DefaultCallTimeoutSec
	}
	if cfg.Device.PingCount == 0 {
		cfg.Device.PingCount = DefaultPingCount
	}
	if cfg.Device.TracerouteHops == 0 {
		cfg.Device.TracerouteHops = DefaultTracerouteHops
	}
	if cfg.Cards.MaxBatchSize == 0 {
		cfg.Cards.MaxBatchSize = DefaultCardCeiling
	}
	if cfg.Health.CPUWarnPercent == 0 {
		cfg.Health.CPUWarnPercent = 60
	}
	if cfg.Health.CPUErrorPercent == 0 {
		cfg.Health.CPUErrorPercent = 80
	}
	if cfg.Health.MemoryWarnPercent == 0 {
		cfg.Health.MemoryWarnPercent = 70
	}
	if cfg.Health.MemoryErrorPercent == 0 {
		cfg.Health.MemoryErrorPercent = 85
	}
	if cfg.Health.InterfaceWarnRatio == 0 {
		cfg.Health.InterfaceWarnRatio = 0.8
	}
	if cfg.Health.InterfaceErrorRatio == 0 {
		cfg.Health.InterfaceErrorRatio = 0.5
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = DefaultDatabasePath
	}
}

// NewVaultKey generates a fresh base64-encoded vault key.
func NewVaultKey() (string, error) {
	key := make([]byte, vaultKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// VaultKeyBytes decodes the configured vault key.
func (s StorageConfig) VaultKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s.VaultKey)
	if err != nil {
		return nil, err
	}
	if len(key) != vaultKeyBytes {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", vaultKeyBytes, len(key))
	}
	return key, nil
}
