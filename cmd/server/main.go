package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danghica/cliver/api/handlers"
	"github.com/danghica/cliver/internal/config"
	"github.com/danghica/cliver/internal/db"
	"github.com/danghica/cliver/internal/driver"
	"github.com/danghica/cliver/internal/eventlog"
	"github.com/danghica/cliver/internal/logging"
	"github.com/danghica/cliver/internal/repository"
	"github.com/danghica/cliver/internal/session"
	"github.com/danghica/cliver/internal/supervisor"
)

const shutdownTimeout = 10 * time.Second

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(settings.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if settings.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, log); err != nil {
		log.Errorw("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, settings *config.Settings, log *zap.SugaredLogger) error {
	toolDriver, err := driver.New(settings.ToolDriver, settings.ToolArgs)
	if err != nil {
		return err
	}

	sup, err := supervisor.New(supervisor.Options{
		Bin:    settings.CjpmBin,
		Driver: toolDriver,
		Dir:    settings.ToolDir,
		UsePTY: settings.UsePTY,
	}, log.Named("supervisor"))
	if err != nil {
		return err
	}

	recorder, events, err := openEventLog(settings, log.Named("eventlog"))
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Warnw("failed to close event log", "error", err)
		}
	}()

	registry := session.NewRegistry(sup, recorder, session.Config{
		IdleTimeout:    settings.IdleTimeout(),
		NormalizeInput: settings.NormalizeInput,
	}, log.Named("session"))

	srv := &http.Server{
		Addr:    settings.ListenAddr(),
		Handler: handlers.NewRouter(registry, events, log),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infow("listening",
			"addr", srv.Addr,
			"bin", settings.CjpmBin,
			"driver", toolDriver.Name(),
			"dir", settings.ToolDir,
			"pty", settings.UsePTY,
			"idle_timeout", settings.IdleTimeout())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Infow("shutting down", "sessions", registry.Count())

		// Sessions first, so clients get their close notification before
		// the listener goes away.
		registry.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// openEventLog builds the event logger from the configured sinks. events is
// nil unless the SQLite sink is enabled.
func openEventLog(settings *config.Settings, log *zap.SugaredLogger) (*eventlog.Logger, *repository.EventRepository, error) {
	var sinks []eventlog.Sink
	var events *repository.EventRepository

	if settings.EventLog != "" {
		sink, err := eventlog.NewFileSink(settings.EventLog)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}

	if settings.EventDB != "" {
		database, err := db.InitDB(settings.EventDB)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, nil, err
		}
		sink := eventlog.NewDBSink(database)
		events = sink.Repository()
		sinks = append(sinks, sink)
	}

	return eventlog.New(log, sinks...), events, nil
}
