package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-scanner/internal/arbiter"
	"github.com/iliyamo/event-ticket-scanner/internal/config"
	"github.com/iliyamo/event-ticket-scanner/internal/database"
	"github.com/iliyamo/event-ticket-scanner/internal/handler"
	"github.com/iliyamo/event-ticket-scanner/internal/middleware"
	"github.com/iliyamo/event-ticket-scanner/internal/queue"
	"github.com/iliyamo/event-ticket-scanner/internal/repository"
	"github.com/iliyamo/event-ticket-scanner/internal/router"
	"github.com/iliyamo/event-ticket-scanner/internal/ticketcode"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the limiter and cache pass through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	eventH := handler.NewEventHandler(events, tickets)
	ticketH := handler.NewTicketHandler(events, tickets, ticketcode.NewGenerator())
	validateH := handler.NewValidateHandler(events, arbiter.New(tickets))

	// Admission audit trail consumer; reconnects on its own.
	go func() {
		if err := queue.StartScanConsumer(); err != nil {
			log.Printf("scan consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterOperator(e, eventH, ticketH, validateH, cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
