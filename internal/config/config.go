package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/rcon"
)

type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Secret     string `yaml:"secret"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"`

	YMin    int64   `yaml:"y_min"`
	YMax    int64   `yaml:"y_max"`
	GroundY int64   `yaml:"ground_y"`
	Scale   float64 `yaml:"scale"`

	// MaxPoints rejects absurdly large inputs before processing.
	MaxPoints int `yaml:"max_points"`

	AuditDir     string `yaml:"audit_dir"`
	ReportDB     string `yaml:"report_db"`
	ProgressAddr string `yaml:"progress_addr"`
}

// Load reads the optional YAML file, applies environment overrides and
// validates. Empty path means defaults + environment only.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("geovoxel.yaml: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("geovoxel.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Host:       "localhost",
		Port:       25575,
		TimeoutMS:  5000,
		MaxRetries: 3,
		YMin:       10,
		YMax:       130,
		GroundY:    100,
		Scale:      1,
		MaxPoints:  250_000,
	}
}

// Environment overrides, highest precedence.
func (c *Config) applyEnv() {
	envStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envInt64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	envStr("GEOVOXEL_HOST", &c.Host)
	envInt("GEOVOXEL_PORT", &c.Port)
	envStr("GEOVOXEL_SECRET", &c.Secret)
	envInt("GEOVOXEL_TIMEOUT_MS", &c.TimeoutMS)
	envInt("GEOVOXEL_MAX_RETRIES", &c.MaxRetries)
	envInt64("GEOVOXEL_Y_MIN", &c.YMin)
	envInt64("GEOVOXEL_Y_MAX", &c.YMax)
	envInt64("GEOVOXEL_GROUND_Y", &c.GroundY)
	envInt("GEOVOXEL_MAX_POINTS", &c.MaxPoints)
	envStr("GEOVOXEL_AUDIT_DIR", &c.AuditDir)
	envStr("GEOVOXEL_REPORT_DB", &c.ReportDB)
	envStr("GEOVOXEL_PROGRESS_ADDR", &c.ProgressAddr)
	if v, ok := os.LookupEnv("GEOVOXEL_SCALE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scale = f
		}
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if c.Scale <= 0 {
		return fmt.Errorf("scale must be > 0")
	}
	if c.YMin > c.YMax {
		return fmt.Errorf("y_min %d > y_max %d", c.YMin, c.YMax)
	}
	if c.GroundY < c.YMin || c.GroundY > c.YMax {
		return fmt.Errorf("ground_y %d outside [y_min, y_max]", c.GroundY)
	}
	if c.MaxPoints <= 0 {
		return fmt.Errorf("max_points must be > 0")
	}
	return nil
}

func (c Config) TransformConfig() geo.TransformConfig {
	return geo.TransformConfig{
		Scale:   c.Scale,
		GroundY: c.GroundY,
		YMin:    c.YMin,
		YMax:    c.YMax,
	}
}

func (c Config) ClientOptions() rcon.Options {
	return rcon.Options{
		Host:       c.Host,
		Port:       c.Port,
		Secret:     c.Secret,
		Timeout:    time.Duration(c.TimeoutMS) * time.Millisecond,
		MaxRetries: c.MaxRetries,
	}
}
