// Package config loads entrypass settings: defaults, then an optional YAML
// file, then ENTRYPASS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "ENTRYPASS_"

var ErrInvalid = errors.New("invalid entrypass config")

type Config struct {
	Keystore   KeystoreConfig
	Issuance   IssuanceConfig
	Checkpoint CheckpointConfig
	Log        LogConfig
}

type KeystoreConfig struct {
	Dir string
}

type IssuanceConfig struct {
	CertificateValidity time.Duration
	PassValidity        time.Duration
}

type CheckpointConfig struct {
	RatePerSecond float64
	Burst         int
	// TrustedRoots lists files holding root certificates in canonical binary form.
	TrustedRoots []string
}

type LogConfig struct {
	Level  string
	Format string
}

// File mirrors the YAML layout. Zero values leave defaults untouched.
type File struct {
	Keystore struct {
		Dir string `yaml:"dir"`
	} `yaml:"keystore"`
	Issuance struct {
		CertificateValidity time.Duration `yaml:"certificateValidity"`
		PassValidity        time.Duration `yaml:"passValidity"`
	} `yaml:"issuance"`
	Checkpoint struct {
		RatePerSecond float64  `yaml:"ratePerSecond"`
		Burst         int      `yaml:"burst"`
		TrustedRoots  []string `yaml:"trustedRoots"`
	} `yaml:"checkpoint"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func Default() Config {
	dir := ".entrypass/keys"
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dir = filepath.Join(home, ".entrypass", "keys")
	}
	return Config{
		Keystore: KeystoreConfig{Dir: dir},
		Issuance: IssuanceConfig{
			CertificateValidity: 365 * 24 * time.Hour,
			PassValidity:        24 * time.Hour,
		},
		Checkpoint: CheckpointConfig{RatePerSecond: 2, Burst: 10},
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// LoadFromPath reads configPath, or the first readable default location when
// configPath is empty. A missing default file is not an error; a missing or
// broken explicit file is.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	candidates := []string{configPath}
	if configPath == "" {
		candidates = []string{"configs/entrypass.yaml", "entrypass.yaml"}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}
		var parsed File
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Merge(dst *Config, src File) {
	if src.Keystore.Dir != "" {
		dst.Keystore.Dir = src.Keystore.Dir
	}
	if src.Issuance.CertificateValidity != 0 {
		dst.Issuance.CertificateValidity = src.Issuance.CertificateValidity
	}
	if src.Issuance.PassValidity != 0 {
		dst.Issuance.PassValidity = src.Issuance.PassValidity
	}
	if src.Checkpoint.RatePerSecond != 0 {
		dst.Checkpoint.RatePerSecond = src.Checkpoint.RatePerSecond
	}
	if src.Checkpoint.Burst != 0 {
		dst.Checkpoint.Burst = src.Checkpoint.Burst
	}
	if src.Checkpoint.TrustedRoots != nil {
		dst.Checkpoint.TrustedRoots = src.Checkpoint.TrustedRoots
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
}

func ApplyEnvOverrides(cfg *Config) error {
	if v := env("KEYSTORE_DIR"); v != "" {
		cfg.Keystore.Dir = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("TRUSTED_ROOTS"); v != "" {
		var roots []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				roots = append(roots, part)
			}
		}
		cfg.Checkpoint.TrustedRoots = roots
	}
	for name, dst := range map[string]*time.Duration{
		"CERT_VALIDITY": &cfg.Issuance.CertificateValidity,
		"PASS_VALIDITY": &cfg.Issuance.PassValidity,
	} {
		if v := env(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s: %v", ErrInvalid, envPrefix, name, err)
			}
			*dst = d
		}
	}
	if v := env("CHECKPOINT_RATE"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sCHECKPOINT_RATE: %v", ErrInvalid, envPrefix, err)
		}
		cfg.Checkpoint.RatePerSecond = rps
	}
	if v := env("CHECKPOINT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sCHECKPOINT_BURST: %v", ErrInvalid, envPrefix, err)
		}
		cfg.Checkpoint.Burst = burst
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Keystore.Dir) == "" {
		return fmt.Errorf("%w: keystore.dir is empty", ErrInvalid)
	}
	if c.Issuance.CertificateValidity <= 0 || c.Issuance.PassValidity <= 0 {
		return fmt.Errorf("%w: issuance validity must be positive", ErrInvalid)
	}
	if c.Checkpoint.RatePerSecond < 0 || c.Checkpoint.Burst < 0 {
		return fmt.Errorf("%w: checkpoint rate and burst must not be negative", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}
