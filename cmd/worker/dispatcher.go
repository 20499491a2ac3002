package worker

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"msggw/internal/config"
	"msggw/internal/connector"
	"msggw/internal/db"
	"msggw/internal/dispatcher"
	"msggw/internal/events"
	"msggw/internal/logger"
	"msggw/internal/metrics"
	"msggw/internal/queue"
	"msggw/internal/repository"
	"msggw/internal/vault"
)

var dispatcherCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Run the message dispatch worker",
	RunE:  runDispatcher,
}

func runDispatcher(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQL(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	messagesRepo := repository.NewMessagesRepository(dbx)
	connectorsRepo := repository.NewConnectorsRepository(dbx)
	templatesRepo := repository.NewTemplatesRepository(dbx)

	// ClickHouse audit log: the worker runs without it if unavailable
	var attemptsRepo repository.AttemptsRepository
	if chDB, chErr := db.NewClickHouse(cfg.ClickHouse); chErr != nil {
		logger.Log.Warn("clickhouse unavailable, attempt audit disabled", zap.Error(chErr))
	} else {
		defer chDB.Close()
		attemptsRepo = repository.NewAttemptsRepository(chDB)
	}

	dec, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	var pub events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = kp.Close() }()
		pub = kp
	}

	d := dispatcher.New(
		messagesRepo,
		connectorsRepo,
		templatesRepo,
		attemptsRepo,
		dec,
		connector.DefaultRegistry(cfg.Queue.SendTimeout),
		pub,
		dispatcher.Config{
			SendTimeout:  cfg.Queue.SendTimeout,
			SendRPS:      cfg.Queue.SendRPS,
			SendBurst:    cfg.Queue.SendBurst,
			BreakerFails: cfg.Queue.BreakerFails,
			BreakerOpen:  cfg.Queue.BreakerOpen,
		},
		logger.Log,
	)

	srv := queue.NewServer(queue.RedisOpt(cfg.Redis), cfg.Queue, logger.Log)
	mux := asynq.NewServeMux()
	d.Register(mux)

	logger.Log.Info("dispatch worker starting",
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.Int("max_attempts", cfg.Queue.MaxAttempts))
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("queue server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Log.Info("signal received, shutting down", zap.String("signal", sig.String()))
	srv.Shutdown()

	return nil
}
