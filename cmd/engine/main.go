package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"clickweaver.com/clickweaver-go/internal/capture"
	"clickweaver.com/clickweaver-go/internal/config"
	"clickweaver.com/clickweaver-go/internal/database"
	"clickweaver.com/clickweaver-go/internal/display"
	"clickweaver.com/clickweaver-go/internal/engine"
	"clickweaver.com/clickweaver-go/internal/events"
	"clickweaver.com/clickweaver-go/internal/gesture"
	"clickweaver.com/clickweaver-go/internal/logging"
)

func main() {
	configPath := flag.String("config", "Engine.ini", "Path to settings file")
	scenarioID := flag.String("scenario", "", "Scenario ID to run")
	detect := flag.Bool("detect", true, "Start detection immediately")
	flag.Parse()

	if *scenarioID == "" {
		fmt.Println("Usage: engine -scenario <id> [-config <file>] [-detect=false]")
		fmt.Println()
		fmt.Println("Use import-scenarios to load scenario definitions first.")
		os.Exit(1)
	}

	cfg, err := config.LoadFromINI(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Loggers pick up their level and outputs at construction, so the
	// settings must land before the first component logger exists.
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.LogFile, err)
			os.Exit(1)
		}
		defer logFile.Close()
		logging.Configure(cfg.LogLevel, logFile)
	} else {
		logging.Configure(cfg.LogLevel)
	}

	logger := logging.NewLogger("main")

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open database", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("failed to run migrations", err)
		os.Exit(1)
	}

	repo := database.NewRepository(db, cfg.ImageDir)

	sc, err := repo.GetScenario(*scenarioID)
	if err != nil {
		logger.Fatal("scenario not found", err)
		os.Exit(1)
	}
	if sc.Quality == 0 {
		sc.Quality = cfg.Quality
	}

	port := strconv.Itoa(cfg.ADBPort)
	provider := capture.NewADBProvider(cfg.ADBPath, port)

	token, err := provider.Connect()
	if err != nil {
		logger.Fatal("failed to connect to capture device", err)
		os.Exit(1)
	}

	actuator := gesture.NewADBActuator(cfg.ADBPath, port)
	if err := actuator.Connect(); err != nil {
		logger.Fatal("failed to connect gesture actuator", err)
		os.Exit(1)
	}
	defer actuator.Disconnect()

	bus := events.NewBus(64)
	defer bus.Stop()

	watcher := display.NewWatcher(provider.DisplaySize, cfg.DisplayPollInterval)

	eng := engine.Instance(engine.Dependencies{
		Provider:   provider,
		Repository: repo,
		Notifier:   watcher,
		Bus:        bus,
	})

	// The event projection fetches asynchronously after StartCapture, so the
	// outcome subscriptions must exist before the fetch can publish.
	var ready <-chan struct{}
	var fetchFailed <-chan string
	if *detect {
		var unwatch func()
		ready, fetchFailed, unwatch = watchEventList(bus)
		defer unwatch()
	}

	if err := eng.StartCapture(token, cfg.DisplaySize, sc, actuator); err != nil {
		logger.Fatal("failed to start capture", err)
		os.Exit(1)
	}

	if *detect {
		select {
		case <-ready:
		case reason := <-fetchFailed:
			logger.Fatal("failed to load scenario events", fmt.Errorf("%s", reason))
			eng.Teardown()
			os.Exit(1)
		}
		eng.StartDetecting()
	}

	logger.InfoWithContext("engine running", map[string]interface{}{
		"scenario": sc.Name,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	eng.Teardown()
}

// watchEventList subscribes to both outcomes of the projection fetch: a
// published event list (empty included) or a fetch error. Waiting only on
// the happy path would hang forever when the repository fails.
func watchEventList(bus events.Bus) (<-chan struct{}, <-chan string, func()) {
	ready := make(chan struct{}, 1)
	failed := make(chan string, 1)

	updatedID := bus.Subscribe(events.NotificationEventListUpdated, func(events.Notification) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	errorID := bus.Subscribe(events.NotificationError, func(n events.Notification) {
		if n.Source != "projection" {
			return
		}
		reason, _ := n.Data["error"].(string)
		if reason == "" {
			reason = "event list fetch failed"
		}
		select {
		case failed <- reason:
		default:
		}
	})

	return ready, failed, func() {
		bus.Unsubscribe(updatedID)
		bus.Unsubscribe(errorID)
	}
}
