// Command demo wires the full client core together against a real identity
// provider and backend: replicated credential store, session manager,
// notification poller, toast queue and read-state aggregator. It exists as
// an example consumer; the core itself is a library.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/servio/clientcore/credstore"
	"github.com/servio/clientcore/credstore/memscope"
	"github.com/servio/clientcore/credstore/sqlscope"
	"github.com/servio/clientcore/internal/config"
	"github.com/servio/clientcore/internal/metrics"
	"github.com/servio/clientcore/notify"
	"github.com/servio/clientcore/readstate"
	"github.com/servio/clientcore/session"
	"github.com/servio/clientcore/session/oauthissuer"
	"github.com/servio/clientcore/toast"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("demo failed")
	}
	log.Info().Msg("demo stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := "clientcore.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	displayAppname("servio")

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	refreshToken := os.Getenv("SERVIO_REFRESH_TOKEN")
	if refreshToken == "" {
		return errors.New("SERVIO_REFRESH_TOKEN is required")
	}
	issuer := oauthissuer.New(context.Background(), &oauth2.Config{
		ClientID: cfg.IdentityClientID,
		Endpoint: oauth2.Endpoint{TokenURL: cfg.IdentityTokenURL},
	}, refreshToken)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	manager, err := session.New(issuer, store,
		session.WithRefreshInterval(cfg.RefreshInterval),
		session.WithMetrics(collector),
		session.WithOnSignOut(func() {
			log.Warn().Msg("Session terminally expired, please sign in again")
		}),
	)
	if err != nil {
		return err
	}

	client, err := notify.NewClient(cfg.APIBaseURL, manager)
	if err != nil {
		return err
	}
	aggregator, err := readstate.New(client)
	if err != nil {
		return err
	}
	queue := toast.NewQueue(
		toast.WithCapacity(cfg.ToastCapacity),
		toast.WithDuration(cfg.ToastDuration),
		toast.WithReadMarker(aggregator),
		toast.WithMarkReadDelay(cfg.MarkReadDelay),
		toast.WithMetrics(collector),
	)
	poller, err := notify.NewPoller(client, queue,
		notify.WithInterval(cfg.PollInterval),
		notify.WithLimit(cfg.PollLimit),
		notify.WithStagger(cfg.StaggerDelay),
		notify.WithObserver(aggregator.Ingest),
		notify.WithOnExplicitCheck(func(ctx context.Context) {
			if err := aggregator.LoadUnreadCount(ctx); err != nil {
				log.Err(err).Msg("Unread count resync failed")
			}
		}),
		notify.WithStopSignal(manager.SignedOut()),
		notify.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	status := manager.Status()
	log.Info().
		Time("expires_at", status.ExpiresAt).
		Int("minutes_until_expiry", status.MinutesUntilExpiry).
		Msg("Session established")

	poller.Start(ctx)
	queue.Show("Welcome back", "You are signed in.", "system", 0)

	waitForStopSignal()

	poller.Stop()
	queue.Stop()
	manager.Stop()
	return nil
}

func buildStore(cfg config.Config) (*credstore.Store, func(), error) {
	ephemeral := memscope.New()
	if cfg.StorePath == "" {
		store, err := credstore.New(ephemeral)
		return store, func() {}, err
	}

	persistent, err := sqlscope.New(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening persistent scope: %w", err)
	}
	store, err := credstore.New(persistent, ephemeral)
	if err != nil {
		persistent.Close()
		return nil, nil, err
	}
	return store, func() { persistent.Close() }, nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
