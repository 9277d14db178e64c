package commands

import (
	"context"

	"cookiescraper/lib/osutil"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	cookiesPath string
	verbose     bool
	enableOtel  bool
)

var rootCmd = &cobra.Command{
	Use:           "scraper-cli",
	Short:         "scraper-cli sends http requests while keeping cookies in a Netscape cookie file.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "scraper.json5", "The config file, scraper.local.json5 overrides it.")
	flags.StringVar(&cookiesPath, "cookies", "", "The cookie file, takes precedence over cookies_file in the config.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
	flags.BoolVar(&enableOtel, "otel", false, "Export traces using the nearest telemetry.json5.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		osutil.Fatal("command failed", err)
	}
}
