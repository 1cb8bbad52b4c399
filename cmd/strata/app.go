package main

import (
	"context"
	goerrors "errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/dataset"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/remote"
	"github.com/ajitpratap0/strata/pkg/store/parquet"
)

// app holds what every command shares: the resolved configuration, the
// logger and the parquet backend.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	fetcher *remote.Fetcher
	backend *parquet.Backend
	friends []*dataset.Chain

	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

// start resolves the configuration for cmd and brings up logging, tracing,
// metrics and the backend.
func (a *app) start(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flags")
	}
	if err := a.v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flags")
	}

	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Observability.Logging.Logger()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	if err := observability.Initialize(cfg.Observability.Tracing); err != nil {
		return err
	}

	a.started = time.Now()
	a.ctx, a.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a.ctx = logger.NewContext(a.ctx, logger.RunIDKey, strconv.FormatInt(a.started.UnixNano(), 36))
	a.logger = logger.WithContext(a.ctx).With(zap.String("command", cmd.Name()))

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(a.ctx, addr); err != nil {
				a.logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
			}
		}()
		a.logger.Info("serving metrics", zap.String("addr", addr))
	}
	if every := cfg.Observability.SummaryInterval; every > 0 {
		go a.summarize(every)
	}

	compression, err := parquet.ParseCompression(cfg.Writer.Compression)
	if err != nil {
		return err
	}
	a.fetcher = remote.NewFetcher(cfg.Remote, a.logger.Named("remote"))
	a.backend = parquet.New(
		parquet.WithCompression(compression),
		parquet.WithRowGroupLength(cfg.Writer.RowGroupLength),
		parquet.WithFetcher(a.fetcher),
		parquet.WithMemoryMap(cfg.Reader.MemoryMap),
		parquet.WithLogger(a.logger.Named("parquet")))
	return nil
}

// stop releases everything start acquired. It is safe to call when start
// never ran or failed part way.
func (a *app) stop() error {
	if a.cancel == nil {
		return nil
	}
	defer a.cancel()

	var errs []error
	for _, f := range a.friends {
		errs = append(errs, f.Close())
	}
	a.friends = nil
	if a.fetcher != nil {
		errs = append(errs, a.fetcher.Close())
	}

	a.logSummary("run finished")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, observability.Shutdown(ctx))
	_ = logger.Sync()
	return goerrors.Join(errs...)
}

func (a *app) summarize(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.logSummary("run progress")
		}
	}
}

func (a *app) logSummary(msg string) {
	fields := []zap.Field{zap.Duration("elapsed", time.Since(a.started))}
	if mem, err := metrics.ProcessMemory(); err == nil {
		fields = append(fields,
			zap.Uint64("rss_bytes", mem.RSS),
			zap.Uint64("vms_bytes", mem.VMS),
			zap.Float32("memory_percent", mem.Percent))
	}
	a.logger.Info(msg, fields...)
}

// loadConfig reads the configuration file, if any, and layers flags and
// STRATA_ environment variables over it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	name := v.GetString("dataset")
	cfg := config.New(name)
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path, name); err != nil {
			return nil, err
		}
	}

	if v.IsSet("dataset") {
		cfg.Dataset = name
	}
	if v.IsSet("log-level") {
		cfg.Observability.Logging.Level = v.GetString("log-level")
	}
	if v.IsSet("log-encoding") {
		cfg.Observability.Logging.Encoding = v.GetString("log-encoding")
	}
	if v.IsSet("metrics-addr") {
		cfg.Observability.MetricsAddr = v.GetString("metrics-addr")
	}
	if v.IsSet("cache-dir") {
		cfg.Remote.CacheDir = v.GetString("cache-dir")
	}
	for _, pair := range v.GetStringSlice("alias") {
		alias, target, ok := strings.Cut(pair, "=")
		if !ok || alias == "" || target == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "alias %q is not of the form new=old", pair)
		}
		if cfg.Reader.Aliases == nil {
			cfg.Reader.Aliases = make(map[string]string)
		}
		cfg.Reader.Aliases[alias] = target
	}

	r := &cfg.Reader
	if v.IsSet("selection") {
		r.Selection = v.GetString("selection")
	}
	if v.IsSet("print-every") {
		r.PrintEvery = v.GetInt64("print-every")
	}
	if v.IsSet("limit") {
		r.Limit = v.GetInt64("limit")
	}
	if v.IsSet("start-at") {
		r.StartAt = v.GetInt64("start-at")
	}
	if v.IsSet("quiet") {
		r.Quiet = v.GetBool("quiet")
	}
	if v.IsSet("eager") {
		r.Eager = v.GetBool("eager")
	}
	if v.IsSet("mmap") {
		r.MemoryMap = v.GetBool("mmap")
	}
	if v.IsSet("no-remaining") {
		r.Remaining = !v.GetBool("no-remaining")
	}

	w := &cfg.Writer
	if v.IsSet("output") {
		w.Path = v.GetString("output")
	}
	if v.IsSet("mode") {
		w.Mode = v.GetString("mode")
	}
	if v.IsSet("commit") {
		w.Commit = v.GetString("commit")
	}
	if v.IsSet("compression") {
		w.Compression = v.GetString("compression")
	}
	if v.IsSet("columns") {
		w.Columns = v.GetStringSlice("columns")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open opens the input files, attaches the configured friends and installs
// the aliases. Paths given on the command line replace reader.files.
func (a *app) open(paths []string) (*dataset.Session, error) {
	if len(paths) == 0 {
		paths = a.cfg.Reader.Files
	}
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "no input files; pass them as arguments or set reader.files")
	}

	s, err := dataset.Open(a.ctx, a.backend, a.cfg.Dataset, paths, dataset.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	for _, f := range a.cfg.Reader.Friends {
		chain := dataset.NewChain(f.Dataset, a.backend, dataset.WithLogger(a.logger))
		a.friends = append(a.friends, chain)
		if err := chain.AddFiles(a.ctx, f.Files...); err != nil && chain.Entries() == 0 {
			s.Close()
			return nil, err
		}
		if err := s.Chain().AddFriend(chain); err != nil {
			s.Close()
			return nil, err
		}
	}

	for alias, target := range a.cfg.Reader.Aliases {
		s.AddAlias(alias, target)
	}
	return s, nil
}

// iteration returns the row iterator options from the reader settings.
// Progress goes to stderr so that stdout carries only results.
func (a *app) iteration() []dataset.IterOption {
	r := a.cfg.Reader
	opts := []dataset.IterOption{
		dataset.PrintEvery(r.PrintEvery),
		dataset.Limit(r.Limit),
		dataset.StartAt(r.StartAt),
		dataset.ProgressTo(os.Stderr),
	}
	if r.Quiet {
		opts = append(opts, dataset.Quiet())
	}
	if r.Eager {
		opts = append(opts, dataset.Eager())
	}
	if !r.Remaining {
		opts = append(opts, dataset.WithoutRemaining())
	}
	return opts
}
