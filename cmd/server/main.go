package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/supply-share/internal/config"
	"github.com/iliyamo/supply-share/internal/database"
	"github.com/iliyamo/supply-share/internal/handler"
	"github.com/iliyamo/supply-share/internal/middleware"
	"github.com/iliyamo/supply-share/internal/repository"
	"github.com/iliyamo/supply-share/internal/router"
	"github.com/iliyamo/supply-share/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.Migrate(ctx, db); err != nil {
			cancel()
			log.Fatalf("migrate: %v", err)
		}
		cancel()
		log.Printf("schema applied")
	}

	store := repository.NewSQLStore(db)
	supplies := service.NewSupplyService(store,
		service.WithAuthorJoin(cfg.AllowAuthorJoin),
		service.WithLocation(cfg.Location()),
		service.WithPublisher(service.NewAMQPPublisher(cfg.RabbitMQURL)),
	)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	cacheCfg := config.LoadCacheConfig()
	mw := router.Middlewares{
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:      middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate: middleware.NewCacheInvalidator(cacheCfg, rdb),
	}

	authH := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), store.Posts, store.Joins)
	comments := handler.NewCommentHandler(repository.NewPostCommentRepo(db), repository.NewTaskCommentRepo(db))
	tasks := handler.NewTaskHandler(repository.NewTaskRepo(db))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("%s %s -> %d (%s): %v", v.Method, v.URI, v.Status, v.Latency, v.Error)
				return nil
			}
			log.Printf("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(supplies), comments, tasks, cfg.JWTSecret, mw)
	router.RegisterSupply(e, handler.NewSupplyHandler(supplies), comments, cfg.JWTSecret, mw)
	router.RegisterTasks(e, tasks, comments, handler.NewAccountHandler(store.Accounts), cfg.JWTSecret, mw)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
