// Package bootstrap wires configuration, logging, the event bus, and the
// services, then supervises their lifecycle until shutdown.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sentrycam-go/internal/domain/capture"
	"sentrycam-go/internal/domain/confirm"
	"sentrycam-go/internal/domain/detect"
	"sentrycam-go/internal/domain/eventbus"
	"sentrycam-go/internal/domain/eventlog"
	"sentrycam-go/internal/domain/notify"
	"sentrycam-go/internal/domain/pipeline"
	"sentrycam-go/internal/domain/storage"
	platformconfig "sentrycam-go/internal/platform/config"
	platformerrors "sentrycam-go/internal/platform/errors"
	platformlogging "sentrycam-go/internal/platform/logging"
	httptransport "sentrycam-go/internal/transport/http"
	"sentrycam-go/internal/transport/http/dashboard"
)

// Mode selects which services the process hosts.
type Mode string

const (
	ModePipeline  Mode = "pipeline"
	ModeDashboard Mode = "dashboard"
	ModeAll       Mode = "all"
)

const shutdownTimeout = 15 * time.Second

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	mode       Mode
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	bus        *eventbus.Bus
	events     *eventlog.Log
	persister  *eventlog.Persister

	source       capture.Source
	detector     detect.Detector
	analyzer     confirm.Analyzer
	dispatcher   *notify.Dispatcher
	pool         *notify.WorkerPool
	store        *storage.ImageStore
	orchestrator *pipeline.Orchestrator
}

// Run loads configuration, builds the dependency graph for the selected
// mode, and supervises the services until a shutdown signal.
func Run(ctx context.Context, mode Mode) error {
	state := &appState{mode: mode}

	if err := executeInitSteps(ctx, initGraph(mode), state); err != nil {
		return err
	}

	logger := state.logger
	defer logger.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		return err
	}
	logger.InfoTag("BOOT", "services started in %s mode", mode)

	return waitForShutdown(signalCtx, logger, group, state)
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(platformerrors.KindBootstrap, step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if stderrors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func initGraph(mode Mode) []initStep {
	steps := []initStep{
		{
			ID:      "config:load",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "eventbus:init",
			DependsOn: []string{"logging:init"},
			Execute:   initEventBusStep,
		},
		{
			ID:        "eventlog:init",
			DependsOn: []string{"eventbus:init"},
			Execute:   initEventLogStep,
		},
	}

	if mode == ModePipeline || mode == ModeAll {
		steps = append(steps, initStep{
			ID:        "pipeline:init",
			DependsOn: []string{"eventlog:init"},
			Execute:   initPipelineStep,
		})
	}

	return steps
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init",
			"failed to initialize logging", err)
	}

	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s], config from %s", state.config.Log.Level, state.configPath)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	state.bus = eventbus.New(4)
	state.bus.Start()
	return nil
}

func initEventLogStep(_ context.Context, state *appState) error {
	state.events = eventlog.New(state.bus, eventlog.DefaultCapacity)

	eventsFile := state.config.Storage.EventsFile
	if eventsFile == "" {
		eventsFile = "events.json"
	}

	// In dashboard-only mode the pipeline process owns the file; this
	// process only reads it.
	if state.mode != ModeDashboard {
		state.persister = eventlog.NewPersister(state.events, eventsFile, state.logger)
		if err := state.persister.Subscribe(state.bus); err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "eventlog:init",
				"failed to attach event persister", err)
		}
	}
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	cfg := state.config
	logger := state.logger

	state.source = capture.NewRTSPSource(cfg.Camera.RTSPURL, cfg.Camera.Timeout)

	detector, err := detect.NewDNNDetector(cfg.Detector.ModelPath, cfg.Detector.ConfigPath, cfg.Detector.Confidence)
	if err != nil {
		return err
	}
	state.detector = detector

	state.analyzer = confirm.NewOpenAIAnalyzer(confirm.Options{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.ModelName,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryDelay:   cfg.LLM.RetryDelay,
		MaxImageSize: cfg.LLM.MaxImageSize,
	}, logger)

	dispatcher := notify.NewDispatcher(cfg.Notify.Targets, cfg.Notify.MinInterval, logger)
	dispatcher.Register(notify.NewLocalSpeaker(
		notify.NewEdgeSynthesizer(cfg.Notify.Voice),
		cfg.Notify.PlayerCmd, cfg.Notify.AudioDir, logger))
	if cfg.Notify.DeviceIP != "" {
		dispatcher.Register(notify.NewSmartSpeaker(notify.SmartSpeakerOptions{
			DeviceIP:   cfg.Notify.DeviceIP,
			Volume:     cfg.Notify.Volume,
			Timeout:    cfg.Notify.CastTimeout,
			MaxRetries: cfg.LLM.MaxRetries,
			RetryDelay: cfg.LLM.RetryDelay,
		}, nil, logger))
	}
	state.dispatcher = dispatcher
	state.pool = notify.NewWorkerPool(dispatcher, 2, 16)

	state.store = storage.NewImageStore(cfg.Storage.ImagesDir, cfg.Storage.MaxImages, logger)

	state.orchestrator = pipeline.New(state.source, state.detector, state.analyzer,
		state.dispatcher, state.store, state.events, pipeline.Options{
			CaptureInterval:    cfg.Pipeline.CaptureInterval,
			MaxConcurrentTasks: cfg.Pipeline.MaxConcurrentTasks,
			DrainTimeout:       cfg.Pipeline.DrainTimeout,
			MessageTemplate:    cfg.Notify.MessageTemplate,
		}, logger)

	return nil
}

func startServices(state *appState, group *errgroup.Group, groupCtx context.Context) error {
	if state.mode == ModePipeline || state.mode == ModeAll {
		group.Go(func() error {
			return state.orchestrator.Run(groupCtx)
		})
		// Announce over the speakers without delaying startup. Alerts from
		// the pipeline stay synchronous because their delivery outcome feeds
		// the event log.
		state.pool.DispatchAsync("Sentry camera monitoring started")
	}

	if serveDashboard(state.mode, state.config.Web.Enabled) {
		if err := startHTTPServer(state, group, groupCtx); err != nil {
			return err
		}
	}

	return nil
}

// serveDashboard reports whether the process hosts the HTTP dashboard.
// Explicit dashboard mode always serves; in all mode WEB_ENABLED can switch
// the dashboard off.
func serveDashboard(mode Mode, webEnabled bool) bool {
	return mode == ModeDashboard || (mode == ModeAll && webEnabled)
}

func startHTTPServer(state *appState, group *errgroup.Group, groupCtx context.Context) error {
	cfg := state.config
	logger := state.logger

	var reader dashboard.EventReader
	if state.mode == ModeDashboard {
		eventsFile := cfg.Storage.EventsFile
		if eventsFile == "" {
			eventsFile = "events.json"
		}
		reader = eventlog.NewFileReader(eventsFile)
	} else {
		reader = state.events
	}

	svc := dashboard.NewService(reader, cfg.Pipeline.CaptureInterval)
	hub, err := dashboard.NewHub(state.bus, logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:init-hub",
			"failed to create websocket hub", err)
	}

	router := httptransport.Build(cfg.Web.StaticDir, logger)
	svc.Register(router.API)
	router.Engine.GET("/ws", hub.HandleWebSocket)

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Web.Port),
		Handler: router.Engine,
	}

	group.Go(func() error {
		logger.InfoTag("HTTP", "dashboard listening on http://localhost:%d", cfg.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			}
		}()

		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return nil
}

func waitForShutdown(ctx context.Context, logger *platformlogging.Logger,
	group *errgroup.Group, state *appState) error {

	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown signal received, stopping services")

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	var err error
	select {
	case err = <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "shutdown finished with error: %v", err)
		} else {
			logger.InfoTag("BOOT", "all services stopped")
		}
	case <-time.After(shutdownTimeout):
		err = stderrors.New("shutdown timed out")
		logger.ErrorTag("BOOT", "shutdown timed out, forcing exit")
	}

	if state.pool != nil {
		state.pool.Stop()
	}
	if state.persister != nil {
		state.persister.Stop()
	}
	state.bus.Stop()
	if state.detector != nil {
		if closeErr := state.detector.Close(); closeErr != nil {
			logger.WarnTag("BOOT", "detector close failed: %v", closeErr)
		}
	}

	return err
}
