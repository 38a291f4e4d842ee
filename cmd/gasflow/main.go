package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gasflow/config"
	"gasflow/engine"
	"gasflow/messaging"
	"gasflow/queuestate"
	"gasflow/shift"
	"gasflow/store"
	"gasflow/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "gasflow.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("gasflow", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("gasflow: database open (%s)", cfg.Database.Driver)

	// Redis. Optional: without it the window cache and queue boards fall
	// back to SQL on every read.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisUp := false
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("gasflow: redis not available (%v), running without cache", err)
	} else {
		redisUp = true
		log.Printf("gasflow: redis connected (%s)", cfg.Redis.Address)
	}
	cancel()
	defer redisClient.Close()

	// Shift resolver with window cache
	var windowCache *shift.Cache
	if redisUp {
		windowCache = shift.NewCache(redisClient, cfg.Queue.WindowCacheTTL)
	}
	shifts := shift.NewResolver(db, windowCache)

	// Station queue boards
	var queueRedis *queuestate.RedisStore
	if redisUp {
		queueRedis = queuestate.NewRedisStore(redisClient)
	}
	boards := queuestate.NewManager(db, queueRedis)

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("gasflow: messaging connect failed (%v)", err)
	} else {
		log.Printf("gasflow: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Shifts:     shifts,
		QueueState: boards,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("gasflow: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("gasflow: ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("gasflow: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("gasflow: stopped")
}
