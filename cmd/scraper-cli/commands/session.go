package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cookiescraper/internal/components/telemetry"
	"cookiescraper/internal/scraper"
	"cookiescraper/lib/configutil"
	"cookiescraper/lib/restyutil"
	libtelemetry "cookiescraper/lib/telemetry"

	"github.com/spf13/afero"
)

type Config struct {
	CookiesFile      string `json:"cookies_file"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
	// DumpDir receives one file per http exchange when set.
	DumpDir string `json:"dump_dir"`
	Verbose bool   `json:"verbose"`
	// Telemetry is used by --otel, the nearest telemetry.json5 is read when it is unset.
	Telemetry *libtelemetry.Config `json:"telemetry"`
}

func defaultConfig() Config {
	return Config{
		CookiesFile:    scraper.DefaultCookiesFile,
		TimeoutSeconds: int(scraper.DefaultTimeout / time.Second),
	}
}

func readConfig() (Config, error) {
	cfg, err := configutil.ReadConfigWithDefaults(configPath, defaultConfig())
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file found, using defaults", "path", configPath)
		err = nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
	}
	if cookiesPath != "" {
		cfg.CookiesFile = cookiesPath
	}
	return cfg, nil
}

// session is the client every command works with plus the telemetry it was set up with.
type session struct {
	cfg    Config
	client *scraper.Client
	otel   libtelemetry.Telemetry
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	telemetry.InitSlog(verbose || cfg.Verbose)

	s := &session{cfg: cfg}
	if enableOtel {
		if cfg.Telemetry != nil {
			s.otel, err = libtelemetry.Setup(ctx, "scraper-cli", *cfg.Telemetry)
		} else {
			s.otel, err = libtelemetry.SetupFromEnv(ctx, "scraper-cli")
		}
		if err != nil {
			return nil, fmt.Errorf("setup telemetry: %w", err)
		}
	}

	fs := afero.NewOsFs()
	opts := scraper.ClientOptions{
		CookiesFile:      cfg.CookiesFile,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		Fs:               fs,
		CloudflareBypass: cfg.CloudflareBypass,
	}
	if cfg.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(fs, cfg.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("prepare dump dir: %w", err)
		}
		opts.DumpOutput = output
	}

	s.client, err = scraper.NewClient(opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}
