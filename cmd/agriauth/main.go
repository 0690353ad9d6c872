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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/agriauth/adapters/delivery"
	"github.com/layer-3/agriauth/adapters/events"
	"github.com/layer-3/agriauth/adapters/identity"
	"github.com/layer-3/agriauth/adapters/store"
	"github.com/layer-3/agriauth/adapters/tokenizer"
	"github.com/layer-3/agriauth/internal/config"
	"github.com/layer-3/agriauth/internal/db"
	"github.com/layer-3/agriauth/internal/security"
	"github.com/layer-3/agriauth/ports"
	"github.com/layer-3/agriauth/service"
	httptransport "github.com/layer-3/agriauth/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := watermill.NewStdLogger(cfg.LogDebug, false)
	hasher := security.NewHasher(cfg.BcryptCost)

	signKey, err := security.SigningKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}
	if cfg.JWTPrivateKey == "" {
		logger.Info("Using an ephemeral signing key; sessions end on restart", nil)
	}

	// Stores and publisher: Redis when configured, in process otherwise
	var (
		challenges ports.ChallengeStore
		sessions   ports.SessionStore
		publisher  message.Publisher
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to reach Redis: %v", err)
		}

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		challenges = store.NewRedisChallengeStore(redisClient, store.DefaultPrefix, store.DefaultRetention)
		sessions = store.NewRedisSessionStore(redisClient, store.DefaultPrefix)
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
		challenges = store.NewMemoryChallengeStore()
		sessions = store.NewMemorySessionStore()
	}
	defer publisher.Close()

	principals, closeDB := openRegistry(ctx, cfg, hasher, logger)
	defer closeDB()

	var (
		deliverer ports.ChallengeDeliverer
		inbox     *delivery.DevInbox
	)
	switch cfg.OTPDelivery {
	case config.DeliverySMS:
		deliverer = delivery.NewSMSDeliverer(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	case config.DeliveryStream:
		deliverer = delivery.NewStreamDeliverer(publisher, cfg.EventsTopicPrefix)
	default:
		inbox = delivery.NewDevInbox(logger)
		deliverer = inbox
	}

	authService := service.NewAuthService(service.Dependencies{
		Principals: principals,
		Challenges: challenges,
		Sessions:   sessions,
		Tokenizer:  tokenizer.NewJWTTokenizer(signKey, cfg.JWTIssuer),
		Deliverer:  deliverer,
		Events:     events.NewWatermillPublisher(publisher, cfg.EventsTopicPrefix),
		Hasher:     hasher,
		Logger:     logger,
	}, service.Config{
		ChallengeTTL:      cfg.ChallengeTTL(),
		ChallengeAttempts: cfg.ChallengeAttempts,
		CodeDigits:        cfg.OTPDigits,
		SessionTTL:        cfg.SessionTTLs(),
	})

	go authService.RunReaper(ctx, cfg.ReaperInterval())

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	var opts []httptransport.Option
	if inbox != nil {
		opts = append(opts, httptransport.WithDevInbox(inbox))
	}
	if cfg.AuthRatePerMinute > 0 {
		limiter := httptransport.NewRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst)
		opts = append(opts, httptransport.WithRateLimit(limiter))
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					limiter.Cleanup()
				}
			}
		}()
	}
	router := httptransport.SetupRouter(authService, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", err, nil)
		}
	}()

	logger.Info("Starting server", watermill.LogFields{
		"addr":     cfg.HTTPAddr,
		"delivery": cfg.OTPDelivery,
		"redis":    cfg.RedisURL != "",
		"postgres": cfg.DatabaseURL != "",
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openRegistry returns the Postgres registry when DATABASE_URL is set and the
// seeded memory registry otherwise.
func openRegistry(ctx context.Context, cfg *config.Config, hasher *security.Hasher, logger watermill.LoggerAdapter) (ports.PrincipalRepository, func()) {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		return identity.NewPostgresRepository(conn), func() { _ = conn.Close() }
	}

	repo := identity.NewMemoryRepository()
	if cfg.PrincipalsFile != "" {
		n, err := identity.LoadSeedFile(cfg.PrincipalsFile, repo, hasher)
		if err != nil {
			log.Fatalf("Failed to seed principals: %v", err)
		}
		logger.Info("Seeded principals", watermill.LogFields{"count": n, "file": cfg.PrincipalsFile})
	}
	return repo, func() {}
}
