package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roomly/roomly-api/internal/config"
	"github.com/roomly/roomly-api/internal/domain/booking"
	"github.com/roomly/roomly-api/internal/domain/notification"
	"github.com/roomly/roomly-api/internal/domain/room"
	"github.com/roomly/roomly-api/internal/middleware"
	"github.com/roomly/roomly-api/internal/pkg/cache"
	"github.com/roomly/roomly-api/internal/pkg/database"
	"github.com/roomly/roomly-api/internal/pkg/events"
	"github.com/roomly/roomly-api/internal/pkg/logger"
	pkgresponse "github.com/roomly/roomly-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Roomly API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	// RedisCache tolerates a nil client: every read degrades to a miss.
	var store cache.Cache = cache.NewRedisCache(redisClient)

	// ---------- Event bus ----------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bus events.Bus
	if cfg.AMQPURL != "" {
		amqpBus, err := events.NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		defer amqpBus.Close()
		bus = amqpBus
	} else {
		memBus := events.NewMemoryBus()
		defer memBus.Close()
		bus = memBus
	}

	// ---------- Repositories ----------
	roomRepo := room.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- WebSocket hub ----------
	hub := notification.NewHub()
	go hub.Run()
	defer hub.Close()

	// ---------- Services ----------
	bookingService := booking.NewService(bookingRepo, roomRepo, store, bus)
	roomService := room.NewService(roomRepo, &bookingSlotSource{repo: bookingRepo}, store)
	notificationService := notification.NewService(notificationRepo, hub)

	// ---------- Event subscribers ----------
	room.NewCacheInvalidator(store).Bind(bus)
	notificationService.Bind(bus)

	if amqpBus, ok := bus.(*events.AMQPBus); ok {
		go func() {
			if err := amqpBus.Start(ctx); err != nil {
				log.Error().Err(err).Msg("AMQP consumer stopped")
			}
		}()
	}

	// ---------- Handlers ----------
	roomHandler := room.NewHandler(roomService)
	bookingHandler := booking.NewHandler(bookingService)
	notificationHandler := notification.NewHandler(notificationService, hub)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress)
	r.Get("/ws", notificationHandler.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				pkgresponse.OK(w, map[string]string{
					"status":  "ok",
					"version": "1.0.0",
				})
			})

			r.Mount("/rooms", roomHandler.Routes())
			r.Mount("/bookings", bookingHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// Adapter implementations to bridge interface mismatches

// bookingSlotSource adapts booking.Repository to room.BookingSource for
// the availability calculator.
type bookingSlotSource struct {
	repo booking.Repository
}

func (s *bookingSlotSource) BookedSlots(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]room.Slot, error) {
	bookings, err := s.repo.ListActiveForRange(ctx, roomID, from, to)
	if err != nil {
		return nil, err
	}
	slots := make([]room.Slot, 0, len(bookings))
	for _, b := range bookings {
		slots = append(slots, room.Slot{Start: b.StartTime, End: b.EndTime})
	}
	return slots, nil
}
