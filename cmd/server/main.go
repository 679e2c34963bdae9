package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/visitor-slot-booking/internal/config"
	"github.com/iliyamo/visitor-slot-booking/internal/database"
	"github.com/iliyamo/visitor-slot-booking/internal/handler"
	"github.com/iliyamo/visitor-slot-booking/internal/middleware"
	"github.com/iliyamo/visitor-slot-booking/internal/otp"
	"github.com/iliyamo/visitor-slot-booking/internal/queue"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
	"github.com/iliyamo/visitor-slot-booking/internal/router"
	"github.com/iliyamo/visitor-slot-booking/internal/service"
	"github.com/iliyamo/visitor-slot-booking/internal/telemetry"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup(cfg.ServiceName, cfg.Env)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(schemaCtx, db); err != nil {
		cancelSchema()
		log.Fatalf("db schema: %v", err)
	}
	cancelSchema()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var challenges otp.Store
	if cfg.OTPBackend == "redis" && rdb != nil {
		challenges = otp.NewRedisStore(rdb)
	} else {
		log.Printf("otp: using sql challenge store")
		challenges = otp.NewSQLStore(repository.NewChallengeRepo(db))
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, cfg.LifecycleExchange)
	defer publisher.Close()

	rootCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	if cfg.LifecycleConsumer {
		go func() {
			if err := queue.StartLifecycleConsumer(rootCtx, queue.ConsumerConfig{
				URL:      cfg.RabbitURL,
				Exchange: cfg.LifecycleExchange,
			}); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("lifecycle consumer stopped: %v", err)
			}
		}()
	}

	bookingRepo := repository.NewBookingRepo(db)
	notifier := service.NewNotifier(repository.NewNotificationRepo(db), publisher)
	bookings := service.NewBookingService(bookingRepo, notifier)
	history := service.NewHistoryService(bookingRepo)
	users := service.NewUserService(repository.NewUserRepo(db), repository.NewTokenRepo(db), service.TokenSettings{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})

	h := router.Handlers{
		Diagnostics: &handler.DiagnosticsHandler{
			DB: db, DBName: cfg.DBName, Env: cfg.Env, DevOTP: cfg.DevOTP, Service: cfg.ServiceName,
		},
		Bookings:      handler.NewBookingHandler(bookings, history, service.NewTicketService(history)),
		Notifications: handler.NewNotificationHandler(notifier),
		History:       handler.NewHistoryHandler(history),
		Slots:         handler.NewSlotsHandler(),
		OTP:           handler.NewOTPHandler(service.NewChallengeService(challenges), cfg.DevOTP),
		Auth:          handler.NewAuthHandler(users, cfg.JWTSecret),
		Dev:           handler.NewDevHandler(users, bookings),
	}
	mw := router.Middleware{
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("http: %s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			log.Printf("http: %s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.CORS())

	router.RegisterRoutes(e, h)
	router.RegisterBooking(e, h, mw)
	router.RegisterAuth(e, h, mw, cfg.JWTSecret)
	if cfg.DevEndpoints {
		log.Printf("dev endpoints enabled")
		router.RegisterDev(e, h)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(e, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (env=%s, dev_otp=%v)", server.Addr, cfg.Env, cfg.DevOTP)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	// drain lifecycle publishes before the deferred publisher.Close
	_ = notifier.Wait(ctx)
}
