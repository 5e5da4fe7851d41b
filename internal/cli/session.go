package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/api"
	"github.com/rescale/webup/internal/browser"
	"github.com/rescale/webup/internal/config"
	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/events"
	"github.com/rescale/webup/internal/logging"
	"github.com/rescale/webup/internal/models"
	"github.com/rescale/webup/internal/notify"
	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/transfer"
)

// session wires the components every command needs: one client, one event
// bus, one alert sink and one engine. The upload queue is created on first use.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	client   *api.Client
	bus      *events.EventBus
	sink     *alerts.Sink
	notifier *notify.Notifier
	engine   *browser.Engine

	queueOnce sync.Once
	queue     *transfer.Queue
}

// newSession loads configuration and builds the component graph.
func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := GetLogger()
	if !verbose {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	}
	if logFile == "" && cfg.LogFile != "" {
		if err := log.AttachFile(config.ResolveLogFile(cfg.LogFile)); err != nil {
			log.Warn().Err(err).Str("file", cfg.LogFile).Msg("Cannot open log file")
		}
	}

	client, err := api.NewClient(cfg, api.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	notifier := notify.NewNotifier(notify.FromConfig(cfg), log)
	sink := alerts.NewSink(log, bus, notifier)
	engine := browser.NewEngine(client, sink, browser.Options{
		EventBus:  bus,
		Logger:    log,
		RootLabel: constants.RootLabel,
	})

	log.Debug().Str("server", client.BaseURL()).Msg("Session ready")

	return &session{
		cfg:      cfg,
		logger:   log,
		client:   client,
		bus:      bus,
		sink:     sink,
		notifier: notifier,
		engine:   engine,
	}, nil
}

// uploads returns the session's upload queue, creating it on first use.
func (s *session) uploads() *transfer.Queue {
	s.queueOnce.Do(func() {
		opts := transfer.Options{
			EventBus: s.bus,
			Logger:   s.logger,
			Alerts:   s.sink,
		}
		if s.cfg.RefreshOnComplete {
			opts.Refresher = s.engine
		}
		s.queue = transfer.NewQueue(s.client, opts)
	})
	return s.queue
}

// Close aborts outstanding uploads and closes the event bus.
func (s *session) Close() {
	if s.queue != nil {
		s.queue.Close()
	}
	s.bus.Close()
}

// lookup lists the parent of remote and returns the entry it names.
// The engine is left at the parent.
func (s *session) lookup(ctx context.Context, remote string) (models.DirectoryEntry, error) {
	p := pathutil.ResolveFile(pathutil.Root, remote)
	if p == pathutil.Root {
		return models.DirectoryEntry{}, fmt.Errorf("the root folder cannot be changed")
	}
	if err := s.engine.Navigate(ctx, pathutil.Parent(p)); err != nil {
		return models.DirectoryEntry{}, err
	}
	entry, ok := s.engine.Lookup(pathutil.Base(p))
	if !ok {
		return models.DirectoryEntry{}, fmt.Errorf("%s: no such file or folder", p)
	}
	return entry, nil
}

// withSession runs fn with a session bound to the command's context.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(GetContext(cmd), s)
}

// lockedWriter serializes writes from the shell and the queue display
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
