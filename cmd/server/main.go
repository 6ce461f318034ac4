package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/recantodasaguas/reservation-api/internal/availability"
	"github.com/recantodasaguas/reservation-api/internal/booking"
	"github.com/recantodasaguas/reservation-api/internal/config"
	"github.com/recantodasaguas/reservation-api/internal/database"
	"github.com/recantodasaguas/reservation-api/internal/gateway/asaas"
	"github.com/recantodasaguas/reservation-api/internal/handler"
	"github.com/recantodasaguas/reservation-api/internal/notification"
	"github.com/recantodasaguas/reservation-api/internal/repository"
	"github.com/recantodasaguas/reservation-api/internal/router"
	"github.com/recantodasaguas/reservation-api/internal/utils"
)

// sweepInterval controls how often the stale-reservation expiry pass runs.
const sweepInterval = 15 * time.Minute

func main() {
	// Load .env if present; real deployments set variables directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	cfg := config.Load()

	db, err := database.Open(context.Background(), cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when unavailable; webhook dedup degrades

	reservations := repository.NewReservationRepo(db, cfg.Pricing.MaxCabins)
	payments := repository.NewPaymentRepo(db)
	blocks := repository.NewAvailabilityRepo(db)
	guests := repository.NewGuestRepo(db)

	// Seed the bootstrap admin account when configured; an existing account
	// with the same email gets its password replaced.
	if cfg.AdminEmail != "" {
		hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			log.Fatalf("hash admin password: %v", err)
		}
		if err := guests.UpsertAdmin(context.Background(), cfg.AdminEmail, hash); err != nil {
			log.Fatalf("bootstrap admin account: %v", err)
		}
		log.Printf("admin account %s ready", cfg.AdminEmail)
	}

	gateway := asaas.NewClient(cfg.AsaasBaseURL, cfg.AsaasAPIKey, nil)
	notifier := notification.NewPublisher(cfg.RabbitURL, nil)
	checker := availability.NewChecker(reservations, blocks, cfg.Pricing, nil)

	svc := booking.NewService(
		reservations, payments, blocks, guests,
		checker, gateway, notifier,
		cfg.Pricing,
		time.Duration(cfg.PaymentExpiryHours)*time.Hour,
		nil,
	)

	// In-process consumer that turns published events into the outbound
	// notification log.  Skipped entirely when no broker is configured.
	if cfg.RabbitURL != "" {
		go func() {
			if err := notification.StartConsumer(cfg.RabbitURL); err != nil {
				log.Printf("notification consumer stopped: %v", err)
			}
		}()
	}

	// Periodic expiry of unpaid reservations whose charge window passed.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if n, err := svc.ExpireStale(ctx); err != nil {
				log.Printf("expiry sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("expiry sweep cancelled %d stale reservations", n)
			}
			cancel()
		}
	}()

	e := router.New(router.Handlers{
		Reservation:  handler.NewReservationHandler(svc, reservations, payments),
		Availability: handler.NewAvailabilityHandler(checker, blocks),
		Webhook:      handler.NewWebhookHandler(svc, rdb, cfg.AsaasWebhookToken),
		Admin:        handler.NewAdminHandler(svc, reservations, guests, cfg.JWTSecret, cfg.AccessTTLMin),
		JWTSecret:    cfg.JWTSecret,
	})

	log.Printf("listening on :%s (env=%s)", cfg.Port, cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
