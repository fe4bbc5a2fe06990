package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/murmur/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/murmur/config.toml)")
	logPath := flag.String("log", "", "log file path (optional, \"-\" for stderr)")
	debug := flag.Bool("debug", false, "enable debug logging")
	tail := flag.Int("tail", 0, "print the last N log entries and exit")
	level := flag.String("level", "", "minimum level for -tail (debug, info, warn, error)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		LogPath:    *logPath,
		Debug:      *debug,
	}

	if *tail > 0 {
		if err := app.TailLog(opts, *tail, *level, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "murmur: %v\n", err)
			return 1
		}
		return 0
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "murmur: %v\n", err)
		return 1
	}
	return 0
}
