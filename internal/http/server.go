package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"msggw/internal/config"
	"msggw/internal/events"
	"msggw/internal/http/middleware"
	"msggw/internal/metrics"
	"msggw/internal/queue"
	"msggw/internal/repository"
	"msggw/internal/service/admission"
	"msggw/internal/webhook"
)

type Server struct {
	e    *echo.Echo
	jobs *queue.Client
	pub  events.Publisher
}

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	projectsRepo := repository.NewProjectsRepository(mysqlDB)
	messagesRepo := repository.NewMessagesRepository(mysqlDB)
	connectorsRepo := repository.NewConnectorsRepository(mysqlDB)
	templatesRepo := repository.NewTemplatesRepository(mysqlDB)

	// repos (ClickHouse)
	attemptsRepo := repository.NewAttemptsRepository(clickhouseDB)

	// dispatch queue client
	jobs := queue.NewClient(queue.RedisOpt(cfg.Redis), cfg.Queue)

	// status event stream
	var pub events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	// services
	admissionSvc := admission.New(messagesRepo, connectorsRepo, templatesRepo, jobs)
	reconciler := webhook.NewReconciler(messagesRepo, pub)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(projectsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:proj:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/messages", sendMessageHandler(admissionSvc))
	v1.GET("/messages", listMessagesHandler(messagesRepo))
	v1.GET("/messages/:id", getMessageHandler(messagesRepo))
	v1.GET("/messages/:id/attempts", listAttemptsHandler(messagesRepo, attemptsRepo))

	// provider callbacks: no API key, the handshake token is the only gate
	e.GET("/webhooks/:provider", verifyWebhookHandler(cfg.Webhook.VerifyToken))
	e.POST("/webhooks/:provider", receiveWebhookHandler(reconciler))

	return &Server{e: e, jobs: jobs, pub: pub}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if closer, ok := s.pub.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	_ = s.jobs.Close()
	return s.e.Shutdown(ctx)
}
