// Package main is the entry point for the KeepAliveAgent application.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"keepaliveagent/internal/config"
	"keepaliveagent/internal/heartbeat"
	"keepaliveagent/internal/keepalive"
	"keepaliveagent/internal/logger"
	"keepaliveagent/internal/metrics"
	"keepaliveagent/internal/presence"
	"keepaliveagent/internal/service"
	"keepaliveagent/internal/sink"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const startupErrorLogDir = "log/KeepAliveAgent"

func main() {
	var (
		configPath    = flag.String("config", "conf/KeepAliveAgent/KeepAliveAgent.json", "Path to main configuration file")
		loggingPath   = flag.String("logging", "conf/KeepAliveAgent/Logging.json", "Path to logging configuration file")
		serviceAction = flag.String("service", "", "Service control action: install, uninstall, start, stop, restart")
		showVersion   = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("KeepAliveAgent %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if *serviceAction != "" {
		if err := controlService(*serviceAction, *configPath, *loggingPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("KeepAliveAgent: %s done\n", *serviceAction)
		os.Exit(0)
	}

	// Under a service manager the cwd is not the install directory. An absolute
	// config path (<base>/conf/KeepAliveAgent/KeepAliveAgent.json) means service
	// mode: chdir to <base> so relative log paths resolve there.
	if filepath.IsAbs(*configPath) {
		basePath := baseDir(*configPath)
		if err := os.Chdir(basePath); err != nil {
			service.ReportStartupError(service.ServiceName, fmt.Errorf("failed to chdir to %s: %w", basePath, err))
			fmt.Fprintf(os.Stderr, "Failed to change directory to %s: %v\n", basePath, err)
			os.Exit(1)
		}
	}

	svcProbe := service.NewService(nil)
	if svcProbe.IsService() {
		logger.SetServiceMode(true)
	}

	cfg, lc, err := config.LoadSplit(*configPath, *loggingPath)
	if err != nil {
		exitStartup("Failed to load configuration", err)
	}

	if err := logger.Init(*lc); err != nil {
		exitStartup("Failed to initialize logger", err)
	}

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("config", *configPath).
		Str("logging", *loggingPath).
		Msg("Starting KeepAliveAgent")

	svc := service.NewService(func(ctx context.Context) error {
		return run(ctx, cfg, *configPath, *loggingPath)
	})

	if err := svc.Run(context.Background()); err != nil {
		service.WriteStartupErrorFile(startupErrorLogDir, err)
		log.Fatal().Err(err).Msg("Service exited with error")
	}

	log.Info().Msg("KeepAliveAgent stopped")
}

func exitStartup(msg string, err error) {
	service.ReportStartupError(service.ServiceName, err)
	service.WriteStartupErrorFile(startupErrorLogDir, err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

// baseDir returns the install directory three levels above the config file.
func baseDir(configPath string) string {
	return filepath.Dir(filepath.Dir(filepath.Dir(configPath)))
}

// controlService registers the agent with absolute config paths so the
// service manager can start it from any working directory.
func controlService(action, configPath, loggingPath string) error {
	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	absLogging, err := filepath.Abs(loggingPath)
	if err != nil {
		return fmt.Errorf("failed to resolve logging path: %w", err)
	}

	args := []string{"-config", absConfig, "-logging", absLogging}
	return service.Control(action, service.DefaultInstallConfig(args, baseDir(absConfig)))
}

// keepaliveOptions maps the KeepAlive section onto the tick loop options.
func keepaliveOptions(cfg *config.Config) keepalive.Options {
	return keepalive.Options{
		Name:           "keepalive",
		Interval:       cfg.KeepAlive.Interval(),
		OverlapAllowed: cfg.KeepAlive.OverlapAllowed,
	}
}

func presenceNotice(cfg *config.Config) presence.Notice {
	return presence.Notice{
		Title:  cfg.Presence.Title,
		Text:   cfg.Presence.Text,
		Action: cfg.Presence.Action,
	}
}

// restartRequired reports sections that are only read at startup.
func restartRequired(old, updated *config.Config) []string {
	var sections []string
	if old.Agent != updated.Agent {
		sections = append(sections, "Agent")
	}
	if old.Presence != updated.Presence {
		sections = append(sections, "Presence")
	}
	if old.Heartbeat != updated.Heartbeat {
		sections = append(sections, "Heartbeat")
	}
	if !reflect.DeepEqual(old.Sink, updated.Sink) || old.SOCKSProxy != updated.SOCKSProxy {
		sections = append(sections, "Sink")
	}
	if old.Metrics != updated.Metrics || old.StatsReport != updated.StatsReport {
		sections = append(sections, "Metrics")
	}
	return sections
}

// setupWatchers creates hot-reload watchers for KeepAliveAgent.json and Logging.json.
// Returns a cleanup function that stops all started watchers.
func setupWatchers(ctx context.Context, ka *keepalive.Service, current *config.Config, configPath, loggingPath string) func() {
	log := logger.WithComponent("main")
	var watcherMu sync.Mutex
	var cleanups []func()

	configWatcher, err := config.NewConfigWatcher(configPath, func(newCfg *config.Config) {
		watcherMu.Lock()
		defer watcherMu.Unlock()

		log.Info().Msg("Applying configuration changes")

		if sections := restartRequired(current, newCfg); len(sections) > 0 {
			log.Warn().Strs("sections", sections).Msg("Changes take effect after restart")
		}

		opts := keepaliveOptions(newCfg)
		if opts != ka.Options() {
			if err := ka.Reconfigure(ctx, opts); err != nil {
				log.Error().Err(err).Msg("Failed to reconfigure keep-alive, current cycle kept")
				return
			}
			log.Info().
				Dur("interval", opts.Interval).
				Bool("overlap_allowed", opts.OverlapAllowed).
				Msg("Keep-alive reconfigured")
		}
		current.KeepAlive = newCfg.KeepAlive
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, hot reload disabled")
	} else if err := configWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
	} else {
		cleanups = append(cleanups, func() {
			log.Info().Msg("Stopping config watcher")
			if err := configWatcher.Stop(); err != nil {
				log.Error().Err(err).Msg("Error stopping config watcher")
			}
		})
	}

	loggingWatcher, err := config.NewLoggingWatcher(loggingPath, func(newLC *logger.Config) {
		watcherMu.Lock()
		defer watcherMu.Unlock()

		log.Info().Msg("Applying logging configuration changes")
		if err := logger.Init(*newLC); err != nil {
			log.Error().Err(err).Msg("Failed to update logging configuration")
			return
		}
		log.Info().Msg("Logging configuration updated")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create logging watcher, hot reload disabled")
	} else if err := loggingWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start logging watcher")
	} else {
		cleanups = append(cleanups, func() {
			log.Info().Msg("Stopping logging watcher")
			if err := loggingWatcher.Stop(); err != nil {
				log.Error().Err(err).Msg("Error stopping logging watcher")
			}
		})
	}

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

func run(ctx context.Context, cfg *config.Config, configPath, loggingPath string) error {
	log := logger.WithComponent("main")

	agentID := config.GetAgentID(cfg)
	hostname := config.GetHostname(cfg)

	log.Info().
		Str("agent_id", agentID).
		Str("hostname", hostname).
		Msg("Agent initialized")

	// Phase 1: Sink
	snk, err := sink.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	defer func() {
		log.Info().Msg("Closing sink")
		if err := snk.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing sink")
		}
	}()

	// Phase 2: Heartbeat emitter (the update callback)
	probe, err := heartbeat.NewProbe(cfg.Heartbeat.ProbeInterval, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Process probe unavailable, beats will carry no resource usage")
	}
	emitter := heartbeat.NewEmitter(agentID, hostname, probe, snk, nil)

	// Phase 3: Keep-alive service
	options := []keepalive.Option{keepalive.WithUpdateCallback(emitter.Update)}
	if !cfg.Presence.Disabled {
		options = append(options, keepalive.WithIndicator(presence.New(presenceNotice(cfg))))
	}
	ka := keepalive.New(keepaliveOptions(cfg), options...)
	if err := ka.Start(ctx); err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}
	defer ka.Stop()

	// Phase 4: Metrics endpoint and stats report
	if cfg.Metrics.Address != "" {
		srv, err := metrics.NewServer(cfg.Metrics.Address, metrics.NewCollector(ka, agentID))
		if err != nil {
			return err
		}
		if err := srv.Start(); err != nil {
			log.Warn().Err(err).Msg("Metrics endpoint disabled")
		} else {
			defer srv.Stop()
		}
	}
	if cfg.StatsReport.Schedule != "" {
		reporter := metrics.NewReporter(ka, cfg.StatsReport.Schedule)
		if err := reporter.Start(); err != nil {
			log.Warn().Err(err).Msg("Stats report disabled")
		} else {
			defer reporter.Stop()
		}
	}

	// Phase 5: Watchers
	cleanupWatchers := setupWatchers(ctx, ka, cfg, configPath, loggingPath)
	defer cleanupWatchers()

	<-ctx.Done()
	log.Info().
		Uint64("beats", emitter.Sent()).
		Msg("Received shutdown signal")

	return nil
}
