package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/avelhart/hearthside-auth/internal/config"
	"github.com/avelhart/hearthside-auth/internal/database"
	"github.com/avelhart/hearthside-auth/internal/handler"
	"github.com/avelhart/hearthside-auth/internal/mailer"
	"github.com/avelhart/hearthside-auth/internal/oauth"
	"github.com/avelhart/hearthside-auth/internal/queue"
	"github.com/avelhart/hearthside-auth/internal/repository"
	"github.com/avelhart/hearthside-auth/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewRefreshTokenRepo(db, time.Duration(cfg.RefreshTTLDays)*24*time.Hour)
	ephemerals := repository.NewEphemeralTokenRepo(db,
		time.Duration(cfg.VerifyTTLHours)*time.Hour,
		time.Duration(cfg.ResetTTLMin)*time.Minute,
		time.Duration(cfg.UnsubTTLDays)*24*time.Hour)
	logins := repository.NewExternalLoginRepo(db)
	suppressions := repository.NewSuppressionRepo(db)
	requests := repository.NewAccessRequestRepo(db)

	mail := mailer.New(suppressions, cfg.AMQPURL)

	provider, err := oauth.NewClient(cfg.OAuthProvider, cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthRedirectURL)
	if err != nil {
		log.Fatalf("oauth: %v", err)
	}

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, roles, tokens, ephemerals, mail),
		Email:    handler.NewEmailHandler(cfg, users, roles, tokens, ephemerals, suppressions, mail),
		OAuth:    handler.NewOAuthHandler(cfg, provider, logins, users, roles, tokens),
		Requests: handler.NewAccessRequestHandler(requests, roles),
		Admin:    handler.NewAdminHandler(users, roles, tokens, suppressions),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}
	router.RegisterRoutes(e, cfg, config.LoadRateLimitConfig(), rdb, h)

	go queue.StartEmailConsumer()
	go sweepExpired(tokens, ephemerals)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// sweepExpired periodically drops refresh and ephemeral tokens past expiry.
// Housekeeping only; expired rows already fail validation.
func sweepExpired(tokens *repository.RefreshTokenRepo, ephemerals *repository.EphemeralTokenRepo) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if n, err := tokens.DeleteExpired(ctx); err != nil {
			log.Printf("sweep: refresh tokens: %v", err)
		} else if n > 0 {
			log.Printf("sweep: removed %d expired refresh tokens", n)
		}
		if n, err := ephemerals.DeleteExpired(ctx); err != nil {
			log.Printf("sweep: ephemeral tokens: %v", err)
		} else if n > 0 {
			log.Printf("sweep: removed %d expired ephemeral tokens", n)
		}
		cancel()
	}
}
