package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cazy-scraper/lib/restyutil"
	"cazy-scraper/lib/scrapers/cazy/core"
	"cazy-scraper/lib/serviceutil"
	"cazy-scraper/lib/telemetry"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cazy",
	Short: "cazy scrapes the CAZy database into a relational database.",
	Long: `cazy scrapes genome and enzyme family tables from www.cazy.org and
writes them into SQLite (a file path), libsql (libsql://), PostgreSQL
(postgres://) or MySQL (mysql://).`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

var (
	configPath *string
	outputDest *string
	tableMode  *string
	workers    *int
	deadline   *time.Duration
	failFast   *bool
	logLevel   *string
	logFile    *string
	dumpHttp   *string
)

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.StringP("config", "c", "config.json5", "The config file with the CAZy urls, <name>.local.json5 overrides it.")
	outputDest = flags.StringP("output", "o", "cazy.db", "The database to write to: a sqlite path, libsql://, postgres:// or mysql:// url.")
	tableMode = flags.String("tablemode", "append", "What to do when a table already exists: append, replace or fail.")
	workers = flags.Int("workers", 0, "Concurrent page requests (1-64), overrides the config.")
	deadline = flags.Duration("deadline", 0, "Abort the whole run after this long, 0 disables it.")
	failFast = flags.Bool("fail-fast", false, "Abort on the first page that fails instead of skipping it.")
	logLevel = flags.String("log-level", "info", "Log level: debug, info, warn or error.")
	logFile = flags.String("log-file", "", "Also write logs to this file, rotated by size.")
	dumpHttp = flags.String("dump-http", "", "Write every http exchange into this directory (needs --log-level debug).")
}

var (
	closeLog        func() error
	telemetryHandle telemetry.Telemetry
)

func setup(cmd *cobra.Command, args []string) error {
	var level slog.Level
	err := level.UnmarshalText([]byte(*logLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	closeLog = telemetry.InitSlog(level, *logFile)

	telemetryHandle, err = telemetry.SetupFromEnv(cmd.Context(), "cazy")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	telemetry.InstrumentPerfStats(cmd.Context(), time.Second*30)
	return nil
}

func teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := telemetryHandle.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to shutdown telemetry", "err", err)
	}
	if closeLog != nil {
		closeLog()
	}
}

// runContext applies --deadline to the command's context.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if *deadline > 0 {
		return context.WithTimeout(cmd.Context(), *deadline)
	}
	return context.WithCancel(cmd.Context())
}

func newClient(cfg Config) (*core.Client, error) {
	var dump restyutil.InstrumentOutput
	if *dumpHttp != "" {
		output, err := restyutil.NewFilesystemOutput(*dumpHttp)
		if err != nil {
			return nil, err
		}
		dump = output
	}

	return core.NewClient(core.ClientOptions{
		BaseUrl:          cfg.BaseUrl,
		UserAgent:        cfg.UserAgent,
		Timeout:          time.Duration(cfg.RequestTimeout) * time.Second,
		CloudflareBypass: cfg.CloudflareBypass,
		RespectRobots:    cfg.RespectRobots,
		DumpOutput:       dump,
	})
}

func commandPath() string {
	cmd, _, err := rootCmd.Find(os.Args[1:])
	if err != nil || cmd == nil {
		return rootCmd.Name()
	}
	return cmd.CommandPath()
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	teardown()
	if err != nil {
		serviceutil.Fatal(fmt.Sprintf("%s failed", commandPath()), err)
	}
}
