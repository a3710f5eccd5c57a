package main

import (
	"context"

	"cazy-scraper/cmd/cazy/commands"
	"cazy-scraper/lib/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext(context.Background())
	commands.ExecuteContext(ctx)
}
