package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-yappy/app/controller"
	"github.com/vibast-solutions/ms-go-yappy/app/fulfillment"
	"github.com/vibast-solutions/ms-go-yappy/app/provider"
	"github.com/vibast-solutions/ms-go-yappy/app/repository"
	"github.com/vibast-solutions/ms-go-yappy/app/service"
	"github.com/vibast-solutions/ms-go-yappy/config"

	redisdb "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server exposing the payment-session API and the provider webhook endpoint.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, sessionService, cleanup := mustCreateSessionService()
	defer cleanup()

	paymentController := controller.NewPaymentController(sessionService, cfg.Yappy.MerchantID, cfg.Yappy.Domain)
	e := setupHTTPServer(paymentController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	payments := e.Group("/payments")
	payments.POST("/create", paymentController.CreatePayment)
	payments.GET("/:id", paymentController.GetPayment)
	payments.POST("/webhook", paymentController.HandleWebhook)

	return e
}

func mustCreateSessionService() (*config.Config, *service.SessionService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	store, events, cleanup := mustCreateStore(cfg)

	var client provider.Client
	if cfg.Yappy.SimulationMode() {
		logrus.Warn("No merchant credentials configured; using the simulation fallback")
		client = provider.NewSimulationClient()
	} else {
		client = provider.NewYappyClient(provider.YappyConfig{
			BaseURL:     cfg.Yappy.BaseURL,
			MerchantID:  cfg.Yappy.MerchantID,
			Domain:      cfg.Yappy.Domain,
			AliasYappy:  cfg.Yappy.AliasYappy,
			IPNURL:      cfg.Yappy.IPNURL,
			HTTPTimeout: cfg.Yappy.HTTPTimeout,
		})
	}

	var verifier provider.WebhookVerifier
	if cfg.Yappy.WebhookSecret != "" {
		verifier = provider.NewHMACVerifier(cfg.Yappy.WebhookSecret)
	} else {
		verifier = provider.NewPermissiveVerifier(logrus.StandardLogger())
	}

	var granter service.AccessGranter
	if cfg.Fulfillment.EnrollmentURL != "" {
		granter = fulfillment.NewHTTPGranter(fulfillment.HTTPGranterConfig{
			EndpointURL: cfg.Fulfillment.EnrollmentURL,
			APIKey:      cfg.App.APIKey,
			HTTPTimeout: cfg.Fulfillment.HTTPTimeout,
		})
	} else {
		granter = fulfillment.NewLogGranter()
	}

	sessionService := service.NewSessionService(
		store,
		events,
		client,
		verifier,
		granter,
		fulfillment.NewLogNotifier(),
		cfg.Sessions,
	)

	return cfg, sessionService, cleanup
}

func mustCreateStore(cfg *config.Config) (service.SessionStore, service.SessionEventLog, func()) {
	switch cfg.Store.Backend {
	case config.StoreBackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to ping database")
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}
		return repository.NewSessionStore(db), repository.NewSessionEventLog(db), cleanup

	case config.StoreBackendRedis:
		cli := redisdb.NewClient(&redisdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cli.Ping(context.Background()).Err(); err != nil {
			logrus.WithError(err).Fatal("Failed to ping redis")
		}
		cleanup := func() {
			if err := cli.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		return repository.NewRedisSessionStore(cli), repository.NewMemoryEventLog(), cleanup

	default:
		return repository.NewMemoryStore(), repository.NewMemoryEventLog(), func() {}
	}
}
