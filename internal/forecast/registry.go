package forecast

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"StockCast/internal/domain/errs"
	"StockCast/pkg/logger"
)

// RegistryConfig names the artifacts the registry loads.
type RegistryConfig struct {
	Symbols       []string
	ModelPattern  string // e.g. "{symbol}_lstm_model.json"
	ScalerPattern string // e.g. "{symbol}_minmax_scaler.json"
	GenericModel  string // empty disables the fallback pair
	GenericScaler string
	Concurrency   int
}

// DefaultRegistryConfig returns the naming convention the training pipeline writes.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Symbols:       []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"},
		ModelPattern:  "{symbol}_lstm_model.json",
		ScalerPattern: "{symbol}_minmax_scaler.json",
		GenericModel:  "stock_lstm_model.json",
		GenericScaler: "stock_minmax_scaler.json",
		Concurrency:   4,
	}
}

// Snapshot is an immutable view of everything one load produced. It is never mutated after publish.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time

	models  map[string]Model
	scalers map[string]Scaler
	generic *Pair
	// failed holds symbols whose artifacts existed but could not be loaded
	failed        map[string]struct{}
	genericFailed bool
}

// Symbols lists the symbols with a loaded specific pair.
func (s *Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.models))
	for sym := range s.models {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Failed lists the symbols whose artifacts are present but unusable.
func (s *Snapshot) Failed() []string {
	out := make([]string, 0, len(s.failed))
	for sym := range s.failed {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// HasGeneric reports whether the fallback pair is available.
func (s *Snapshot) HasGeneric() bool { return s.generic != nil }

// LoadStats summarizes one load.
type LoadStats struct {
	Version  uint64
	Loaded   int
	Absent   int
	Failed   int
	Generic  bool
	Duration time.Duration
}

// Registry owns the loaded pairs. Reads are lock-free against the current snapshot;
// loads are serialized and replace the snapshot atomically.
type Registry struct {
	cfg    RegistryConfig
	loader Loader
	log    *logger.Logger
	policy []Strategy

	snap    atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
	version uint64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPolicy replaces the ordered resolution strategies.
func WithPolicy(strategies ...Strategy) RegistryOption {
	return func(r *Registry) {
		r.policy = strategies
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry builds an empty registry. Nothing resolves until Load succeeds.
func NewRegistry(cfg RegistryConfig, loader Loader, opts ...RegistryOption) *Registry {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	r := &Registry{
		cfg:    cfg,
		loader: loader,
		log:    logger.Nop(),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current snapshot, or nil before the first load.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Load reads every configured pair and publishes a new snapshot. A symbol whose artifacts are
// missing or broken is logged and skipped; the load itself only fails on cancellation.
func (r *Registry) Load(ctx context.Context) (LoadStats, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	start := time.Now()
	next := &Snapshot{
		models:  make(map[string]Model),
		scalers: make(map[string]Scaler),
		failed:  make(map[string]struct{}),
	}
	var (
		mu    sync.Mutex
		stats LoadStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, raw := range r.cfg.Symbols {
		symbol := NormalizeSymbol(raw)
		if symbol == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pair, err := r.loadPair(symbol,
				ArtifactName(r.cfg.ModelPattern, symbol),
				ArtifactName(r.cfg.ScalerPattern, symbol))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				next.models[symbol] = pair.Model
				next.scalers[symbol] = pair.Scaler
				stats.Loaded++
			case errors.Is(err, fs.ErrNotExist):
				stats.Absent++
				r.log.Warn("Artifacts not found for symbol", logger.String("symbol", symbol), logger.Error(err))
			default:
				next.failed[symbol] = struct{}{}
				stats.Failed++
				r.log.Error("Failed to load artifacts for symbol", logger.String("symbol", symbol), logger.Error(err))
			}
			return nil
		})
	}

	if r.cfg.GenericModel != "" && r.cfg.GenericScaler != "" {
		g.Go(func() error {
			pair, err := r.loadPair("", r.cfg.GenericModel, r.cfg.GenericScaler)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				pair.Source = SourceGeneric
				next.generic = &pair
			case errors.Is(err, fs.ErrNotExist):
				r.log.Warn("Generic artifacts not found, fallback disabled", logger.Error(err))
			default:
				next.genericFailed = true
				r.log.Error("Failed to load generic artifacts, fallback disabled", logger.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return LoadStats{}, errs.Wrap(errs.KindUnavailable, "forecast.Registry.Load", err, "artifact load interrupted")
	}
	if err := ctx.Err(); err != nil {
		return LoadStats{}, errs.Wrap(errs.KindUnavailable, "forecast.Registry.Load", err, "artifact load interrupted")
	}

	r.version++
	next.Version = r.version
	next.LoadedAt = time.Now()
	r.snap.Store(next)

	stats.Version = next.Version
	stats.Generic = next.generic != nil
	stats.Duration = time.Since(start)

	if stats.Loaded == 0 && !stats.Generic {
		r.log.Error("No model artifacts loaded; every forecast will fail",
			logger.Int("symbols", len(r.cfg.Symbols)))
	} else {
		r.log.Info("Model artifacts loaded",
			logger.Int("loaded", stats.Loaded),
			logger.Int("absent", stats.Absent),
			logger.Int("failed", stats.Failed),
			logger.Bool("generic", stats.Generic),
			logger.Duration("duration_ms", stats.Duration),
			logger.Int64("version", int64(next.Version)))
	}
	return stats, nil
}

// Reload builds a fresh snapshot and swaps it in. In-flight resolutions keep the old one.
func (r *Registry) Reload(ctx context.Context) (LoadStats, error) {
	return r.Load(ctx)
}

// loadPair returns both artifacts or neither.
func (r *Registry) loadPair(symbol, modelPath, scalerPath string) (Pair, error) {
	model, err := r.loader.LoadModel(modelPath)
	if err != nil {
		return Pair{}, err
	}
	scaler, err := r.loader.LoadScaler(scalerPath)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Symbol: symbol, Source: SourceSpecific, Model: model, Scaler: scaler}, nil
}

// Resolve returns the pair for symbol by walking the resolution policy in order.
func (r *Registry) Resolve(symbol string) (Pair, error) {
	const op = "forecast.Registry.Resolve"

	s := r.snap.Load()
	if s == nil {
		return Pair{}, errs.Unavailable(op, "model artifacts are not loaded")
	}

	sym := NormalizeSymbol(symbol)
	for _, st := range r.policy {
		if pair, ok := st.Lookup(s, sym); ok {
			return pair, nil
		}
	}

	if _, failed := s.failed[sym]; failed {
		return Pair{}, errs.Unavailable(op, "model for %s is unavailable", sym)
	}
	if sym == "" {
		if s.genericFailed {
			return Pair{}, errs.Unavailable(op, "default model is unavailable")
		}
		return Pair{}, errs.NotFound(op, "no default model is configured")
	}
	return Pair{}, errs.NotFound(op, "no model available for symbol %s", sym)
}
