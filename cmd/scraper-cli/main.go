package main

import (
	"context"

	"cookiescraper/cmd/scraper-cli/commands"
	"cookiescraper/lib/osutil"
)

func main() {
	ctx, stop := osutil.SignalContext(context.Background())
	defer stop()
	commands.ExecuteContext(ctx)
}
