package main

import (
	"log/slog"
	"os"
)

// theLog writes terse text records to stderr so that command output on
// stdout stays clean. DEBUG enables debug records.
var theLog = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: cliLevel(),
	ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
		switch {
		case a.Key == slog.TimeKey:
			return slog.Attr{}
		case a.Key == slog.LevelKey && a.Value.String() == "INFO":
			return slog.Attr{}
		}
		return a
	},
}))

func cliLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
