package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/config"
	"github.com/five82/murmur/internal/localstore"
	"github.com/five82/murmur/internal/logtail"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/prefs"
	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/state"
	"github.com/five82/murmur/internal/ui"
)

// Options configure the murmur application.
type Options struct {
	ConfigPath string
	LogPath    string // empty uses <data_dir>/murmur.log; "-" logs to stderr
	Debug      bool
}

// eventBuffer bounds how many coordinator events may wait for the UI.
const eventBuffer = 64

// services are the long-lived collaborators the UI is built on.
type services struct {
	client  *api.Client
	session *session.Store
	store   *state.Store
	coord   *optimistic.Coordinator
	events  chan optimistic.Event
}

// Run boots the murmur TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logPath := opts.LogPath
	if logPath == "" {
		logPath = cfg.LogPath()
	}
	logger, closeLog, err := openLogger(logPath, opts.Debug)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	storage, err := localstore.OpenFile(cfg.SessionPath())
	if err != nil {
		return fmt.Errorf("open session storage: %w", err)
	}

	svc, err := newServices(cfg, storage, logger)
	if err != nil {
		return err
	}

	// Restore before the first frame so the feed is fetched as the viewer.
	if svc.session.Restore(ctx) {
		if user, ok := svc.session.Identity(); ok {
			logger.Info("session restored", "user", user.Username)
		}
	}

	userPrefs, err := prefs.Load(cfg.PrefsPath())
	if err != nil {
		logger.Warn("ignoring unreadable preferences", "err", err)
	}

	logger.Info("starting", "api_url", cfg.APIURL)
	return ui.Run(ui.Options{
		Context:    ctx,
		Gateway:    svc.client,
		Session:    svc.session,
		Store:      svc.store,
		Coord:      svc.coord,
		Events:     svc.events,
		Logger:     logger,
		ThemeName:  userPrefs.ThemeOr(cfg.Theme),
		PrefsPath:  cfg.PrefsPath(),
		ProfileTab: userPrefs.ProfileTab,
	})
}

// TailLog prints the last n entries of the log file at or above level to w.
func TailLog(opts Options, n int, level string, w io.Writer) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	minLevel, err := logtail.ParseLevel(level)
	if err != nil {
		return err
	}
	path := opts.LogPath
	if path == "" || path == "-" {
		path = cfg.LogPath()
	}
	lines, err := logtail.Read(path, n, minLevel)
	if err != nil {
		return err
	}
	return logtail.Write(w, lines)
}

// newServices wires the gateway, session, collections and coordinator.
func newServices(cfg config.Config, storage localstore.Store, logger *slog.Logger) (*services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sess *session.Store
	client, err := api.NewClient(api.Options{
		BaseURL:           cfg.APIURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Tokens:            api.TokenFunc(func() string { return sess.BearerToken() }),
	})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	sess = session.New(client, storage, session.Options{
		Logger: logger,
		OnSignedOut: func() {
			logger.Info("signed out")
		},
	})

	events := make(chan optimistic.Event, eventBuffer)
	store := state.NewStore()
	coord := optimistic.New(store, client, sess, optimistic.Options{
		Logger: logger,
		Observe: func(ev optimistic.Event) {
			select {
			case events <- ev:
			default:
				// The UI redraws on the next event or key press anyway.
			}
		},
	})

	return &services{
		client:  client,
		session: sess,
		store:   store,
		coord:   coord,
		events:  events,
	}, nil
}

// openLogger writes structured logs to path so they do not corrupt the
// terminal. "-" selects stderr.
func openLogger(path string, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if path == "-" {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, handlerOpts)), func() { _ = f.Close() }, nil
}
