// Package app wires the wordwire subsystems into a running server.
//
// New builds the full object graph from a validated config: store, auth
// verifier, speech providers, translation orchestrator, connection registry,
// message router, voice coordinator, and the gateway that fronts them. Run
// serves HTTP until the context ends; Shutdown tears everything down in
// reverse construction order.
//
// For testing, inject doubles via functional options (WithStore, WithMT,
// etc.). When an option is not provided, New creates the real implementation
// from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	anyllm "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/wordwire/internal/auth"
	"github.com/MrWong99/wordwire/internal/config"
	"github.com/MrWong99/wordwire/internal/gateway"
	"github.com/MrWong99/wordwire/internal/health"
	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/internal/registry"
	"github.com/MrWong99/wordwire/internal/resilience"
	"github.com/MrWong99/wordwire/internal/router"
	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/internal/store/journal"
	"github.com/MrWong99/wordwire/internal/store/postgres"
	"github.com/MrWong99/wordwire/internal/translate"
	"github.com/MrWong99/wordwire/internal/voice"
	"github.com/MrWong99/wordwire/pkg/provider/mt"
	mtllm "github.com/MrWong99/wordwire/pkg/provider/mt/llm"
	"github.com/MrWong99/wordwire/pkg/provider/mt/m2m"
	"github.com/MrWong99/wordwire/pkg/provider/stt"
	"github.com/MrWong99/wordwire/pkg/provider/stt/whisper"
	"github.com/MrWong99/wordwire/pkg/provider/tts"
	"github.com/MrWong99/wordwire/pkg/provider/tts/coqui"
)

// shutdownTimeout bounds the graceful drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of connecting to Postgres.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithJournal injects a dead-letter journal instead of the JSONL file store.
func WithJournal(j store.DeadLetter) Option {
	return func(a *App) { a.journal = j }
}

// WithMetrics injects a metrics instance and skips OTel provider setup.
// Tests pass metrics built over a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSTT injects a transcription provider instead of the Whisper client.
func WithSTT(p stt.Provider) Option {
	return func(a *App) { a.stt = p }
}

// WithTTS injects a synthesis provider instead of the Coqui client.
func WithTTS(p tts.Provider) Option {
	return func(a *App) { a.tts = p }
}

// WithMT injects a translation backend instead of the configured M2M/LLM
// chain.
func WithMT(p mt.Provider) Option {
	return func(a *App) { a.mt = p }
}

// WithLogLevel hands the app the level var behind the process logger, so a
// config reload can change verbosity without a restart.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store    store.Store
	journal  store.DeadLetter
	verifier auth.Verifier
	metrics  *observe.Metrics

	stt stt.Provider
	tts tts.Provider
	mt  mt.Provider

	registry     *registry.Registry
	orchestrator *translate.Orchestrator
	persister    *router.Persister
	router       *router.Router
	coordinator  *voice.Coordinator
	gateway      *gateway.Gateway

	server   *http.Server
	watcher  *config.Watcher
	logLevel *slog.LevelVar

	// closers run in reverse order during Shutdown.
	closers  []func(context.Context) error
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. cfg must have passed
// [config.Validate]. Use Option functions to inject test doubles for any
// collaborator.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initObserve(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	if err := a.initAuth(); err != nil {
		return nil, fmt.Errorf("app: init auth: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}

	a.initTranslation()
	a.initRouting()
	a.initVoice()
	a.initGateway()
	a.initServer()

	return a, nil
}

func (a *App) initObserve(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "wordwire"})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

func (a *App) initAuth() error {
	switch {
	case len(a.cfg.Auth.Tokens) > 0:
		a.verifier = auth.NewStaticVerifier(a.cfg.Auth.Tokens)
		return nil
	case a.cfg.Auth.HMACSecret != "":
		v, err := auth.NewHMACVerifier([]byte(a.cfg.Auth.HMACSecret))
		if err != nil {
			return err
		}
		a.verifier = v
		return nil
	}
	return errors.New("no auth mode configured")
}

func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		st, err := postgres.New(ctx, a.cfg.Database.URL)
		if err != nil {
			return err
		}
		a.store = st
		a.closers = append(a.closers, func(context.Context) error {
			st.Close()
			return nil
		})
	}

	if a.journal == nil {
		path := a.cfg.Database.DeadLetterPath
		if path == "" {
			path = "dead_letters.jsonl"
		}
		a.journal = journal.NewFileJournal(path)
	}
	return nil
}

// initProviders builds the external speech and translation clients the config
// enables. A disabled service leaves its slot nil and the features depending
// on it degrade or report themselves unavailable.
func (a *App) initProviders() error {
	if a.stt == nil && a.cfg.Speech.Whisper.Enabled {
		var opts []whisper.Option
		if t := a.cfg.Speech.Whisper.Timeout; t > 0 {
			opts = append(opts, whisper.WithTimeout(t))
		}
		p, err := whisper.New(a.cfg.Speech.Whisper.BaseURL, opts...)
		if err != nil {
			return fmt.Errorf("whisper: %w", err)
		}
		a.stt = p
	}

	if a.tts == nil && a.cfg.Speech.TTS.Enabled {
		var opts []coqui.Option
		if t := a.cfg.Speech.TTS.Timeout; t > 0 {
			opts = append(opts, coqui.WithTimeout(t))
		}
		p, err := coqui.New(a.cfg.Speech.TTS.BaseURL, opts...)
		if err != nil {
			return fmt.Errorf("coqui: %w", err)
		}
		a.tts = p
	}

	if a.mt == nil {
		p, err := a.buildTranslationBackend()
		if err != nil {
			return err
		}
		a.mt = p
	}
	return nil
}

// buildTranslationBackend assembles the MT chain: the M2M service first, the
// LLM fallback behind it, each guarded by its own circuit breaker. With no
// backend configured every translation degrades to the original text.
func (a *App) buildTranslationBackend() (mt.Provider, error) {
	var m2mP mt.Provider
	if a.cfg.Speech.Translation.Enabled {
		var opts []m2m.Option
		if t := a.cfg.Speech.Translation.Timeout; t > 0 {
			opts = append(opts, m2m.WithTimeout(t))
		}
		p, err := m2m.New(a.cfg.Speech.Translation.BaseURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("m2m: %w", err)
		}
		m2mP = p
	}

	var llmP mt.Provider
	if fb := a.cfg.Translation.Fallback; fb.Enabled {
		var opts []anyllm.Option
		if fb.APIKey != "" {
			opts = append(opts, anyllm.WithAPIKey(fb.APIKey))
		}
		if fb.BaseURL != "" {
			opts = append(opts, anyllm.WithBaseURL(fb.BaseURL))
		}
		p, err := mtllm.New(fb.Provider, fb.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("llm fallback: %w", err)
		}
		llmP = p
	}

	switch {
	case m2mP != nil && llmP != nil:
		chain := resilience.NewMTFallback("m2m", m2mP, resilience.ChainConfig{})
		chain.Add(a.cfg.Translation.Fallback.Provider, llmP)
		return chain, nil
	case m2mP != nil:
		return m2mP, nil
	case llmP != nil:
		return llmP, nil
	}
	return disabledMT{}, nil
}

func (a *App) initTranslation() {
	var opts []translate.Option
	if lang := a.cfg.Translation.DefaultLanguage; lang != "" {
		opts = append(opts, translate.WithDefaultLanguage(lang))
	}
	a.orchestrator = translate.New(a.mt, opts...)
}

func (a *App) initRouting() {
	a.registry = registry.New(
		registry.WithUserStore(a.store),
		registry.WithMetrics(a.metrics),
	)

	a.persister = router.NewPersister(a.store,
		router.WithRetry(resilience.RetryConfig{
			Attempts:  a.cfg.Retry.Attempts,
			BaseDelay: a.cfg.Retry.BaseDelay,
			MaxDelay:  a.cfg.Retry.MaxDelay,
		}),
		router.WithDeadLetter(a.journal),
		router.WithPersisterMetrics(a.metrics),
	)

	routerOpts := []router.Option{router.WithMetrics(a.metrics)}
	if d := a.cfg.Translation.ContextDepth; d > 0 {
		routerOpts = append(routerOpts, router.WithContextDepth(d))
	}
	a.router = router.New(a.store, a.orchestrator, a.registry, a.persister, routerOpts...)
}

// initVoice builds the speech pipeline when both ends of it exist. Without a
// transcription or synthesis backend the gateway answers voice events with
// "voice processing is disabled".
func (a *App) initVoice() {
	if a.stt == nil || a.tts == nil {
		return
	}
	a.coordinator = voice.NewCoordinator(a.stt, a.orchestrator, a.tts,
		voice.WithSaver(a.persister),
		voice.WithMetrics(a.metrics),
	)
}

func (a *App) initGateway() {
	opts := []gateway.Option{
		gateway.WithMetrics(a.metrics),
	}
	if len(a.cfg.Listen.AllowedOrigins) > 0 {
		opts = append(opts, gateway.WithOriginPatterns(a.cfg.Listen.AllowedOrigins...))
	}
	if n := a.cfg.Listen.MaxUploadBytes; n > 0 {
		opts = append(opts, gateway.WithMaxUpload(n))
	}
	if a.coordinator != nil {
		var aggOpts []voice.AggregatorOption
		if w := a.cfg.Voice.Window; w > 0 {
			aggOpts = append(aggOpts, voice.WithWindow(w))
		}
		if n := a.cfg.Voice.MaxBufferBytes; n > 0 {
			aggOpts = append(aggOpts, voice.WithMaxBuffer(n))
		}
		opts = append(opts, gateway.WithVoice(a.coordinator, aggOpts...))
	}
	if a.tts != nil {
		opts = append(opts, gateway.WithTTS(a.tts))
	}

	a.gateway = gateway.New(a.verifier, a.registry, a.router, opts...)
	a.closers = append(a.closers, func(context.Context) error {
		a.gateway.Close()
		return nil
	})
}

func (a *App) initServer() {
	addr := a.cfg.Listen.Addr
	if addr == "" {
		addr = ":8080"
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.gateway.Routes(health.New(a.probes()...), promhttp.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// probes assembles the readiness checks for everything this deployment
// actually depends on. Injected test doubles without a Ping or Healthy
// method simply contribute no probe.
func (a *App) probes() []health.Probe {
	var probes []health.Probe
	if p, ok := a.store.(interface {
		Ping(ctx context.Context) error
	}); ok {
		probes = append(probes, health.Pinger("database", p))
	}
	type healthy interface {
		Healthy(ctx context.Context) error
	}
	if p, ok := a.stt.(healthy); ok {
		probes = append(probes, health.Service("whisper", p))
	}
	if p, ok := a.tts.(healthy); ok {
		probes = append(probes, health.Service("tts", p))
	}
	if p, ok := a.mt.(healthy); ok {
		probes = append(probes, health.Service("translation", p))
	}
	return probes
}

// WatchConfig starts polling path and applies live-appliable changes (log
// level, static token rotation) as they land. Everything else in the file
// needs a restart and is ignored until then.
func (a *App) WatchConfig(path string) error {
	w, err := config.NewWatcher(path, a.applyDiff)
	if err != nil {
		return fmt.Errorf("app: watch config: %w", err)
	}
	a.watcher = w
	a.closers = append(a.closers, func(context.Context) error {
		w.Stop()
		return nil
	})
	return nil
}

// applyDiff is the watcher callback.
func (a *App) applyDiff(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.TokensChanged {
		if sv, ok := a.verifier.(*auth.StaticVerifier); ok {
			sv.Swap(d.NewTokens)
			slog.Info("auth tokens rotated", "count", len(d.NewTokens))
		} else {
			slog.Warn("auth token change ignored; hmac mode needs a restart")
		}
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", a.server.Addr, "tls", a.cfg.Listen.TLS != nil)
		var err error
		if tls := a.cfg.Listen.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})

	return g.Wait()
}

// Shutdown tears subsystems down in reverse construction order: config
// watcher, gateway drain (voice intake), store, telemetry. Safe to call more
// than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if cerr := a.closers[i](ctx); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

// disabledMT stands in when no translation backend is configured. Every call
// errors, so the orchestrator falls back to heuristic detection and delivers
// messages in their original language.
type disabledMT struct{}

var errNoBackend = errors.New("app: no translation backend configured")

func (disabledMT) Translate(context.Context, mt.Request) (*mt.Result, error) {
	return nil, errNoBackend
}

func (disabledMT) DetectLanguage(context.Context, string) (*mt.Detection, error) {
	return nil, errNoBackend
}
