package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"trackroom/internal/auth"
	"trackroom/internal/catalog"
	"trackroom/internal/config"
	"trackroom/internal/events"
	"trackroom/internal/logging"
	"trackroom/internal/mailer"
	"trackroom/internal/playlist"
	"trackroom/internal/realtime"
	"trackroom/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.NewViper())
	if err != nil {
		log.Fatalf("trackroom: config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("trackroom: logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("database connect failed", "error", err)
	}
	defer pool.Close()

	if err := playlist.AutoMigrate(ctx, pool); err != nil {
		sugar.Fatalw("migration failed", "error", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		sugar.Fatalw("invalid redis url", "error", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb)

	var directory users.Directory = users.Permissive{}
	if cfg.UserServiceURL != "" {
		directory = users.NewHTTPDirectory(cfg.UserServiceURL)
	}

	var mail mailer.Mailer = mailer.Noop{}
	if cfg.MailerURL != "" {
		mail = mailer.NewHTTPMailer(cfg.MailerURL)
	}

	store := playlist.NewPostgresStore(pool)
	cat := catalog.NewPostgresCatalog(pool)
	srv := playlist.NewServer(store, cat, directory, mail, publisher, sugar, cfg.DeepLinkBase)
	srv.StartExpirySweeper(ctx, time.Hour)

	hub := realtime.NewHub(sugar)
	rt := realtime.NewServer(hub, rdb, publisher, directory, sugar)
	go hub.Run()
	go rt.RunRedisSubscriber(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(auth.Middleware([]byte(cfg.JWTSecret)))
	r.Mount("/", srv.Router())
	r.Mount("/realtime", rt.Router())

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	sugar.Infow("trackroom listening", "address", cfg.HTTPAddress)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("server failed", "error", err)
	}
}
