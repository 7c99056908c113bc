package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aidin1998/pincex_matching/internal/infrastructure/config"
	"github.com/Aidin1998/pincex_matching/internal/infrastructure/telemetry"
	"github.com/Aidin1998/pincex_matching/internal/trading/eventjournal"
	"github.com/Aidin1998/pincex_matching/internal/trading/messaging"
	"github.com/Aidin1998/pincex_matching/internal/trading/report"
	"github.com/Aidin1998/pincex_matching/internal/trading/service"
	"github.com/Aidin1998/pincex_matching/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	feedPath := flag.String("feed", "", "journal-format order feed to apply")
	depth := flag.Int("depth", 0, "levels per side in the report, 0 for all")
	asYAML := flag.Bool("yaml", false, "print the book as a YAML depth snapshot")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	bootLogger, err := logger.NewLogger(os.Getenv(config.EnvPrefix + "_LOG_LEVEL"))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(bootLogger, paths...)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger, *feedPath, *depth, *asYAML); err != nil {
		zapLogger.Fatal("Matching engine failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger, feedPath string, depth int, asYAML bool) error {
	ctx := context.Background()

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: cfg.Tracing.ServiceName})
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				zapLogger.Error("Tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	tick, err := cfg.TickSize()
	if err != nil {
		return err
	}
	opts := []service.Option{}

	if cfg.Kafka.Enabled {
		kcfg := messaging.DefaultKafkaPublisherConfig()
		kcfg.Brokers = cfg.Kafka.Brokers
		kcfg.Topic = cfg.Kafka.Topic
		kcfg.BatchTimeout = cfg.Kafka.BatchTimeout
		kcfg.RequiredAcks = cfg.Kafka.RequiredAcks
		kcfg.Compression = cfg.Kafka.Compression
		kcfg.Async = cfg.Kafka.Async
		publisher, err := messaging.NewKafkaTradePublisher(kcfg, zapLogger.Named("kafka"))
		if err != nil {
			return fmt.Errorf("failed to create trade publisher: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
	}

	var journal *eventjournal.FileJournal
	if cfg.Journal.Enabled {
		journal, err = eventjournal.NewFileJournal(cfg.Journal.Path, zapLogger.Named("journal"))
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, service.WithJournal(journal))
	}

	svc := service.New(service.Config{
		Instrument: cfg.Matching.Instrument,
		TickSize:   tick,
		Replay:     cfg.Matching.Replay(),
	}, zapLogger, opts...)

	// Restore from the journal before anything new is appended to it.
	if journal != nil {
		if err := readFile(journal.Path(), true, func(f *os.File) error {
			_, err := svc.Replay(ctx, f)
			return err
		}); err != nil {
			return fmt.Errorf("failed to restore from journal: %w", err)
		}
	}
	// The feed runs as new operations in the configured clock mode, so it is
	// journaled and published.
	if feedPath != "" {
		if err := readFile(feedPath, false, func(f *os.File) error {
			_, err := svc.Feed(ctx, f)
			return err
		}); err != nil {
			return fmt.Errorf("failed to apply feed: %w", err)
		}
	}

	if asYAML {
		err = report.WriteYAML(os.Stdout, svc.Instrument(), svc.Snapshot(depth))
	} else {
		err = report.WriteText(os.Stdout, svc.Snapshot(depth), svc.RecentTrades(report.DefaultRecentTrades))
	}
	if err != nil {
		return err
	}

	if cfg.Tape.Path != "" {
		if err := svc.ExportTapeFile(cfg.Tape.Path, cfg.Tape.Append, cfg.Tape.WipeAfterExport); err != nil {
			return err
		}
	}

	if cfg.Metrics.Addr != "" {
		return serveMetrics(cfg.Metrics.Addr, zapLogger)
	}
	return nil
}

// readFile opens path and hands it to fn. A missing optional file is skipped.
func readFile(path string, optional bool, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return fn(f)
}

// serveMetrics exposes /metrics until SIGINT or SIGTERM.
func serveMetrics(addr string, zapLogger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
