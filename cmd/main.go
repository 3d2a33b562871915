package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/api"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/config"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/db"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/db/conf"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/feed"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/metrics"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/notifier"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/utils"
)

// pongStaleAfter marks the subscription unhealthy when the node stops answering pings.
const pongStaleAfter = 90 * time.Second

func main() {
	cfg := config.MustLoadConfig()
	utils.ConfigureLogger(cfg.LogFile, cfg.LogLevel, cfg.LogPretty)
	logger := utils.GetLogger()
	logger.Info().Str("base_asset", cfg.BaseAsset).Str("quote_asset", cfg.QuoteAsset).Msg("Framework starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
		cancel()
	}()

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storage.Close()

	alerts := notifier.New(cfg.TelegramToken, cfg.TelegramChatID, notifier.WithRetry(cfg.NotificationRetries, cfg.NotificationDelay))
	registry := metrics.Init(*logger)

	book := orderbook.NewGuarded(orderbook.New(cfg.BaseAsset, cfg.QuoteAsset))
	client := feed.NewClient(cfg.HTTPURL, cfg.RPCTimeout, feed.WithRetries(cfg.RPCRetries, 200*time.Millisecond))
	subscriber := feed.NewSubscriber(cfg.WSURL, cfg.BaseAsset, cfg.QuoteAsset,
		feed.WithDisconnectHandler(disconnectAlert(cfg, alerts)))
	runner := feed.NewRunner(book, client, subscriber.Notifications(),
		feed.WithStorage(storage),
		feed.WithNotifier(alerts),
		feed.WithInvariantChecks(cfg.CheckInvariants))

	var server *http.Server
	if cfg.APIAddr != "" {
		srv := api.New(book, *logger,
			api.WithStorage(storage),
			api.WithRegistry(registry),
			api.WithHealthCheck(func(context.Context) error {
				if !subscriber.IsConnected() {
					return fmt.Errorf("subscription %s: %v", subscriber.State(), subscriber.Health())
				}
				if since := time.Since(subscriber.LastPong()); since > pongStaleAfter {
					return fmt.Errorf("no pong for %s", since.Round(time.Second))
				}
				return nil
			}),
			api.WithHealthCheck(storage.Ping))
		server = &http.Server{
			Addr:              cfg.APIAddr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.APIAddr).Msg("Read API listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
	}

	if err := subscriber.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start subscriber")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Runner stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Graceful shutdown initiated")
	subscriber.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http server shutdown")
		}
	}
	wg.Wait()

	var final string
	book.View(func(ob *orderbook.OrderBook) { final = ob.String() })
	logger.Info().Msg("Shutdown complete, last book:\n" + final)
}

// openStorage returns the Postgres journal when a connection string is set
// and the in-memory one otherwise.
func openStorage(ctx context.Context, cfg config.Config) (db.Storage, error) {
	logger := utils.GetLogger()
	if cfg.DBConnStr == "" {
		logger.Info().Msg("No database configured, journaling in memory")
		return db.NewMemory(), nil
	}

	if cfg.RunMigration {
		if err := conf.EnsureDatabase(ctx, cfg.DBConnStr); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	dbConfig, err := conf.NewConfig(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB config: %w", err)
	}
	storage, err := db.New(*dbConfig)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigration {
		logger.Info().Str("schema", cfg.SchemaPath).Msg("Running database migrations")
		if err := storage.Migrate(ctx, cfg.SchemaPath); err != nil {
			storage.Close()
			return nil, err
		}
	}
	logger.Info().Msg("Connected to Postgres")
	return storage, nil
}

// disconnectAlert sends one alert when the subscription has failed
// AlertAfterFailures times in a row.
func disconnectAlert(cfg config.Config, n notifier.Notifier) feed.DisconnectHandler {
	return func(failures int, err error) {
		if cfg.AlertAfterFailures <= 0 || failures != cfg.AlertAfterFailures {
			return
		}
		msg := fmt.Sprintf("%s/%s subscription to %s failed %d times in a row: %v",
			cfg.BaseAsset, cfg.QuoteAsset, cfg.WSURL, failures, err)
		go func() {
			if nerr := n.SendWithRetry(msg); nerr != nil {
				utils.GetLogger().Error().Err(nerr).Msg("Failed to send disconnect alert")
			}
		}()
	}
}
