package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-service/internal/config"
	bookingCancel "booking-service/internal/http-server/handlers/bookings/cancel"
	bookingComplete "booking-service/internal/http-server/handlers/bookings/complete"
	bookingCreate "booking-service/internal/http-server/handlers/bookings/create"
	bookingGet "booking-service/internal/http-server/handlers/bookings/get"
	bookingNotes "booking-service/internal/http-server/handlers/bookings/notes"
	catalogGet "booking-service/internal/http-server/handlers/catalog/get"
	catalogUpdate "booking-service/internal/http-server/handlers/catalog/update"
	notificationList "booking-service/internal/http-server/handlers/notifications/list"
	notificationRead "booking-service/internal/http-server/handlers/notifications/read"
	offerUpdate "booking-service/internal/http-server/handlers/offers/update"
	patientBookings "booking-service/internal/http-server/handlers/patients/bookings"
	providerBookings "booking-service/internal/http-server/handlers/providers/bookings"
	providerPatients "booking-service/internal/http-server/handlers/providers/patients"
	scheduleGet "booking-service/internal/http-server/handlers/schedules/get"
	scheduleUpdate "booking-service/internal/http-server/handlers/schedules/update"
	slotGet "booking-service/internal/http-server/handlers/slots/get"
	"booking-service/internal/lock"
	"booking-service/internal/models"
	"booking-service/internal/notify"
	"booking-service/internal/reminder"
	svc "booking-service/internal/service"
	"booking-service/internal/storage"
	"booking-service/internal/storage/memory"
	"booking-service/internal/storage/postgres"
	"booking-service/pkg/handlers/slogpretty"
	"booking-service/pkg/middleware/mwlogger"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type store interface {
	svc.Store
	io.Closer
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env), slog.String("timezone", cfg.Timezone))
	log.Debug("Debug messages are enabled")

	st, err := setupStorage(context.Background(), log, cfg)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	var (
		locker      lock.Locker
		notifier    svc.Notifier
		redisClient *redis.Client
	)

	if cfg.Redis.Enabled {
		redisClient, err = setupRedis(cfg.Redis)
		if err != nil {
			log.Error("Failed to init redis", sl.Err(err))
			os.Exit(1)
		}

		locker, err = lock.NewRedisLock(redisClient)
		if err != nil {
			log.Error("Failed to init redis lock", sl.Err(err))
			os.Exit(1)
		}
		notifier = notify.NewRedisPublisher(redisClient, cfg.Redis.NotifyChannel)
	} else {
		log.Info("Redis disabled, using in-process lock and log notifier")
		locker = lock.NewMemoryLock()
		notifier = notify.NewLogNotifier(log)
	}

	service := svc.NewService(log, st, locker, notifier, svc.Options{
		Location: cfg.Location(),
		LockTTL:  cfg.Booking.LockTTL,
		LockWait: cfg.Booking.LockWait,
	})

	var reminders *reminder.Scheduler
	if cfg.Reminder.Enabled {
		reminders = reminder.New(log, st, notifier, reminder.Config{
			Interval:  cfg.Reminder.Interval,
			LookAhead: cfg.Reminder.LookAhead,
			Location:  cfg.Location(),
		})
		if err := reminders.Start(); err != nil {
			log.Error("Failed to start reminder scheduler", sl.Err(err))
			os.Exit(1)
		}
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Providers
	router.Route("/providers/{kind}/{id}", func(r chi.Router) {
		r.Get("/slots", slotGet.New(log, service))
		r.Get("/bookings", providerBookings.New(log, service))
		r.Get("/patients", providerPatients.New(log, service))
		r.Get("/schedule", scheduleGet.New(log, service))
		r.Put("/schedule", scheduleUpdate.New(log, service))
		r.Get("/catalog", catalogGet.New(log, service))
		r.Put("/catalog", catalogUpdate.New(log, service))
		r.Put("/offers", offerUpdate.New(log, service))
	})

	// Bookings
	router.Post("/bookings", bookingCreate.New(log, service))
	router.Get("/bookings/{id}", bookingGet.New(log, service))
	router.Post("/bookings/{id}/cancel", bookingCancel.New(log, service))
	router.Post("/bookings/{id}/complete", bookingComplete.New(log, service))
	router.Patch("/bookings/{id}/notes", bookingNotes.New(log, service))

	// Patients
	router.Get("/patients/{id}/bookings", patientBookings.New(log, service))

	// Notifications
	router.Get("/users/{id}/notifications", notificationList.New(log, service))
	router.Post("/notifications/{id}/read", notificationRead.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if reminders != nil {
		if err := reminders.Stop(ctx); err != nil {
			log.Error("Reminder scheduler did not stop in time", sl.Err(err))
		} else {
			log.Info("Reminder scheduler stopped")
		}
	}

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close redis client", sl.Err(err))
		} else {
			log.Info("Redis client closed")
		}
	}

	if err := st.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	log.Info("Shutdown finished, server stopped")

}

// setupStorage opens the configured driver and loads the provider seed into it.
func setupStorage(ctx context.Context, log *slog.Logger, cfg *config.Config) (store, error) {
	const op = "main.setupStorage"

	var seed []*models.Provider
	if cfg.Storage.SeedPath != "" {
		providers, err := storage.LoadSeed(cfg.Storage.SeedPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		seed = providers
		log.Info("Provider seed loaded", slog.String("path", cfg.Storage.SeedPath), slog.Int("providers", len(seed)))
	}

	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := postgres.New(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if cfg.Storage.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			log.Info("Schema migrated")
		}

		// seeding never overwrites providers edited through the API
		for _, p := range seed {
			created, err := pg.SeedProvider(ctx, p)
			if err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("%s: seed provider %s: %w", op, p.ID, err)
			}
			if created {
				log.Info("Provider seeded", slog.String("provider_id", p.ID))
			}
		}

		return pg, nil
	default:
		mem, err := memory.New(cfg.Storage.SnapshotPath, seed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return mem, nil
	}
}

func setupRedis(cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return client, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
