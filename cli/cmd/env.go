package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/adapter"
	"github.com/justapithecus/petframes/adapter/redis"
	"github.com/justapithecus/petframes/adapter/webhook"
	"github.com/justapithecus/petframes/cli/config"
	"github.com/justapithecus/petframes/download"
	"github.com/justapithecus/petframes/fetch"
	"github.com/justapithecus/petframes/framestore"
	"github.com/justapithecus/petframes/index"
	"github.com/justapithecus/petframes/log"
	"github.com/justapithecus/petframes/metrics"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitFailure     = 1
	exitPartial     = 2
	exitCanceled    = 3
	exitUnsupported = 4
	exitBusy        = 5
	exitConfig      = 6
)

// loadConfig reads the config file and applies storage flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(c.String("config"), c.IsSet("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfig)
	}
	if c.IsSet("root") {
		cfg.Storage.Root = c.String("root")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, nil
}

func phaseArgs(c *cli.Context) (string, string, error) {
	if c.NArg() < 2 {
		return "", "", cli.Exit(fmt.Sprintf("usage: petframes %s %s", c.Command.Name, c.Command.ArgsUsage), exitFailure)
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// env holds the components opened for one command.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Collector
	frames  *framestore.Store
	index   index.Index
	fetcher fetch.Fetcher
	adapter adapter.Adapter
}

// openEnv validates cfg and opens storage. Remote components are built only
// when remote is true; otherwise fetches fail with errOffline.
func openEnv(ctx context.Context, cfg *config.Config, component string, remote bool) (*env, error) {
	validate := cfg.ValidateLocal
	if remote {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfig)
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create frame root: %w", err)
	}

	e := &env{
		cfg:     cfg,
		logger:  cfg.Logger(component),
		fetcher: offlineFetcher{},
	}

	frames, err := framestore.NewFS(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}
	e.frames = frames

	switch cfg.Storage.IndexBackend {
	case config.IndexMemory:
		e.index = index.NewMemory()
	default:
		idx, err := index.OpenSQLite(ctx, cfg.IndexFile())
		if err != nil {
			return nil, err
		}
		e.index = idx
	}

	source := "offline"
	if remote {
		source = cfg.Remote.Backend
		if e.fetcher, err = buildFetcher(ctx, cfg.Remote); err != nil {
			e.Close()
			return nil, fmt.Errorf("remote %s: %w", cfg.Remote.Backend, err)
		}
		if e.adapter, err = buildAdapter(cfg.Adapter); err != nil {
			e.Close()
			return nil, fmt.Errorf("adapter %s: %w", cfg.Adapter.Type, err)
		}
	}
	e.metrics = metrics.NewCollector(source, "fs", cfg.Storage.IndexBackend)
	return e, nil
}

// Close releases everything openEnv opened. Errors are logged.
func (e *env) Close() {
	if e.adapter != nil {
		if err := e.adapter.Close(); err != nil {
			e.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			e.logger.Warn("index close failed", map[string]any{"error": err.Error()})
		}
	}
	_ = e.logger.Sync()
}

func (e *env) coordinator(player download.ClipLoader, hook download.LifecycleHook) (*download.Coordinator, error) {
	var lock download.Locker
	if e.cfg.LockEnabled() {
		lock = download.NewFileLock(e.cfg.Storage.Root)
	}

	cfg := download.Config{
		Catalog:       e.cfg.EffectiveCatalog(),
		Fetcher:       e.fetcher,
		Frames:        e.frames,
		Index:         e.index,
		Player:        player,
		Hook:          hook,
		Adapter:       e.adapter,
		Lock:          lock,
		Concurrency:   e.cfg.Download.Concurrency,
		MaxFrameBytes: e.cfg.Remote.MaxFrameBytes,
		Logger:        e.logger,
		Metrics:       e.metrics,
	}
	return download.New(cfg)
}

func buildFetcher(ctx context.Context, r config.RemoteConfig) (fetch.Fetcher, error) {
	switch r.Backend {
	case config.RemoteMirror:
		f, err := fetch.NewMirrorFetcher(r.MirrorPath)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		f, err := fetch.NewS3Fetcher(ctx, fetch.S3Config{
			Bucket:       r.Bucket,
			Prefix:       r.Prefix,
			Region:       r.Region,
			Endpoint:     r.Endpoint,
			UsePathStyle: r.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

func buildAdapter(a config.AdapterConfig) (adapter.Adapter, error) {
	retries := webhook.DefaultRetries
	if a.Retries != nil {
		retries = *a.Retries
	}

	switch a.Type {
	case config.AdapterWebhook:
		wh, err := webhook.New(webhook.Config{
			URL:     a.URL,
			Headers: a.Headers,
			Timeout: a.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return wh, nil
	case config.AdapterRedis:
		rd, err := redis.New(redis.Config{
			URL:          a.URL,
			Channel:      a.Channel,
			PerCharacter: a.PerCharacter,
			Timeout:      a.Timeout.Duration,
			Retries:      retries,
		})
		if err != nil {
			return nil, err
		}
		return rd, nil
	default:
		return nil, nil
	}
}

// errOffline is returned by the fetcher of commands that never download.
var errOffline = errors.New("remote fetch disabled for this command")

type offlineFetcher struct{}

func (offlineFetcher) Fetch(_ context.Context, path string, _ int64) ([]byte, error) {
	return nil, fetch.NewError(fetch.ErrTransport, path, errOffline)
}
