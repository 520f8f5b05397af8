package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voicebank/internal/cache"
	"github.com/dgnsrekt/voicebank/internal/config"
	"github.com/dgnsrekt/voicebank/internal/objectstore"
	"github.com/dgnsrekt/voicebank/internal/progress"
	"github.com/dgnsrekt/voicebank/internal/synth"
	"github.com/dgnsrekt/voicebank/internal/words"
)

// app holds the stores every command shares.
type app struct {
	cfg      *config.Config
	progress *progress.Store
	cache    *cache.Store
	logger   *log.Logger
}

func openApp(cfg *config.Config) (*app, error) {
	logger := log.Default()

	prog, err := progress.Open(cfg.ProgressFile, progress.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("unable to open progress file: %w", err)
	}

	files, err := cache.New(cfg.Cache.Dir, cfg.CacheExt(), logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio cache: %w", err)
	}

	return &app{cfg: cfg, progress: prog, cache: files, logger: logger}, nil
}

// client builds the synthesis client for the configured provider.
func (a *app) client() (*synth.Client, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	var provider synth.Provider
	switch a.cfg.Provider.Name {
	case config.ProviderMock:
		provider = synth.NewMockProvider()
	default:
		p, err := synth.NewHTTPProvider(synth.HTTPConfig{
			BaseURL:           a.cfg.Provider.BaseURL,
			APIKey:            a.cfg.Secrets.Key(),
			Model:             a.cfg.Provider.Model,
			OutputFormat:      a.cfg.Provider.OutputFormat,
			RequestsPerMinute: a.cfg.Provider.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	}

	return synth.NewClient(provider,
		synth.WithMaxRetries(a.cfg.Provider.MaxRetries),
		synth.WithTimeout(a.cfg.Provider.Timeout),
		synth.WithVoiceSettings(a.cfg.VoiceSettings()),
		synth.WithLogger(a.logger),
	), nil
}

// lazyClient builds the synthesis client on the first generation, so work
// that only reads the cache runs without an API key.
type lazyClient struct {
	app    *app
	once   sync.Once
	client *synth.Client
	err    error
}

func (l *lazyClient) Generate(ctx context.Context, text, voiceID string) ([]byte, error) {
	l.once.Do(func() {
		l.client, l.err = l.app.client()
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.client.Generate(ctx, text, voiceID)
}

func (a *app) items() ([]words.Item, error) {
	items, err := words.LoadItems(a.cfg.WordsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to load word list: %w", err)
	}
	return items, nil
}

// objectStore opens the configured upload destination.
func (a *app) objectStore() (objectstore.Store, error) {
	switch a.cfg.Upload.Backend {
	case config.BackendDir:
		return objectstore.NewDirStore(a.cfg.Upload.Dir)
	case config.BackendNATS:
		return objectstore.DialNATS(objectstore.NATSConfig{
			URL:    a.cfg.Upload.NATS.URL,
			Bucket: a.cfg.Upload.NATS.Bucket,
		})
	default:
		return nil, errors.New("no upload backend configured")
	}
}

// interruptible returns a context cancelled on SIGINT or SIGTERM. Once it is
// done the default handlers are restored, so a second signal kills the process.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
