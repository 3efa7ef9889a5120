package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"journey-animator/internal/clock"
)

type Config struct {
	DatabaseURL string // postgres DSN or sqlite://path

	Start int // seconds from midnight, first frame
	End   int // seconds from midnight, exclusive
	Step  int // seconds between frames

	OutputDir  string
	OutputBase string
	Workers    int

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	AMQPURL           string
	AMQPExchange      string

	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from an optional YAML file (ANIMATION_CONFIG),
// then .env and the environment, which take precedence.
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		OutputDir:         "frames",
		OutputBase:        "DB_API_",
		Workers:           runtime.GOMAXPROCS(0),
		NATSSubjectPrefix: "markers",
		AMQPExchange:      "animator.frames",
		LogLevel:          "info",
	}
	start, end, step := "06:00:00", "08:00:01", "5"

	if path := os.Getenv("ANIMATION_CONFIG"); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		start, end = orDefault(fc.Window.Start, start), orDefault(fc.Window.End, end)
		if fc.Window.StepSec > 0 {
			step = strconv.Itoa(fc.Window.StepSec)
		}
		cfg.OutputDir = orDefault(fc.Output.Dir, cfg.OutputDir)
		cfg.OutputBase = orDefault(fc.Output.Basename, cfg.OutputBase)
		cfg.DatabaseURL = fc.Network.DSN
		cfg.NATSURL = fc.Streaming.NATSURL
		cfg.AMQPURL = fc.Streaming.AMQPURL
	}

	dsn, err := networkDSN(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dsn

	start = getenvDefault("ANIMATION_START", start)
	end = getenvDefault("ANIMATION_END", end)
	step = getenvDefault("ANIMATION_STEP_SEC", step)
	if cfg.Start, err = clock.Parse(start); err != nil {
		return nil, fmt.Errorf("invalid ANIMATION_START: %w", err)
	}
	if cfg.End, err = clock.Parse(end); err != nil {
		return nil, fmt.Errorf("invalid ANIMATION_END: %w", err)
	}
	if cfg.Step, err = strconv.Atoi(strings.TrimSpace(step)); err != nil || cfg.Step <= 0 {
		return nil, fmt.Errorf("invalid ANIMATION_STEP_SEC: %q", step)
	}
	if cfg.End <= cfg.Start {
		return nil, fmt.Errorf("invalid window: end %s is not after start %s", clock.Format(cfg.End), clock.Format(cfg.Start))
	}

	cfg.OutputDir = getenvDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputBase = getenvDefault("OUTPUT_BASENAME", cfg.OutputBase)

	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WORKERS: %q", v)
		}
		cfg.Workers = n
	}

	cfg.NATSURL = getenvDefault("NATS_URL", cfg.NATSURL)
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", cfg.NATSSubjectPrefix)
	cfg.LogNATSSubjects = truthy(os.Getenv("LOG_NATS_SUBJECTS"))
	cfg.AMQPURL = getenvDefault("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getenvDefault("AMQP_EXCHANGE", cfg.AMQPExchange)

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// networkDSN picks the network store: NETWORK_DB (sqlite), then
// DATABASE_URL / PG_DSN, then the config file, then PG* variables.
func networkDSN(fromFile string) (string, error) {
	if p := strings.TrimSpace(os.Getenv("NETWORK_DB")); p != "" {
		if !strings.Contains(p, "://") {
			p = "sqlite://" + p
		}
		return p, nil
	}
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"), fromFile); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("NETWORK_DB, DATABASE_URL or PGDATABASE must be set")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
