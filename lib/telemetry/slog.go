package telemetry

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// InitSlog installs the default text logger on stderr. With a non-empty
// `file` records are also written to a size-rotated log file. The returned
// function closes the file.
func InitSlog(level slog.Level, file string) func() error {
	var out io.Writer = os.Stderr
	closer := func() error { return nil }

	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxBackups: 5,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotating)
		closer = rotating.Close
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return closer
}
