package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-bank-sync/internal/application/auth"
	"github.com/go-bank-sync/internal/application/authority"
	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-bank-sync/internal/config"
	"github.com/go-bank-sync/internal/infrastructure/awsconf"
	"github.com/go-bank-sync/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-bank-sync/internal/infrastructure/jwt"
	"github.com/go-bank-sync/internal/infrastructure/notify"
	s3infra "github.com/go-bank-sync/internal/infrastructure/s3"
	"github.com/go-bank-sync/internal/infrastructure/smtp"
	"github.com/go-bank-sync/internal/infrastructure/sns"
	transporthttp "github.com/go-bank-sync/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconf.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	// Snapshot backend for the authority state.
	var store authority.SnapshotStore
	switch cfg.SnapshotBackend {
	case "dynamo":
		dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
		store = dynamo.NewSnapshotRepo(dynamoClient, cfg.DynamoTables.Snapshots, cfg.SnapshotKey)
	case "s3":
		store = s3infra.NewSnapshotStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.S3BucketName, cfg.SnapshotKey)
	case "none":
		log.Println("WARN: snapshot backend disabled, authority state is lost on restart")
	default:
		log.Fatalf("unknown SNAPSHOT_BACKEND %q (want dynamo, s3 or none)", cfg.SnapshotBackend)
	}

	authoritySvc := authority.NewService(store)
	if err := authoritySvc.Restore(ctx); err != nil {
		log.Printf("WARN: snapshot restore failed, starting cold: %v", err)
	}

	// Code delivery: SMTP for email addresses, SNS for phone numbers.
	var smsSender sns.SMSSender
	if snsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion); err == nil {
		smsSender = sns.NewSender(snsCfg, cfg.AWSEndpointURL)
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}
	notifier := notify.New(smtp.NewMailer(cfg), smsSender)

	otpSvc := otp.NewService(notifier, otp.Options{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		SendTimeout: cfg.OTPSendTimeout,
	})

	// JWT provider (optional; without keys login returns no bearer and admin routes are off).
	var jwtProvider *jwtinfra.Provider
	var signer auth.TokenSigner
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
		signer = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	deps := &transporthttp.Deps{
		OTP:         otpSvc,
		Authority:   authoritySvc,
		Auth:        auth.NewService(authoritySvc, otpSvc, signer),
		JWTProvider: jwtProvider,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The flush loop outlives the listener so writes accepted during shutdown
	// still reach the final flush.
	flushCtx, stopFlush := context.WithCancel(context.Background())
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		authoritySvc.Run(flushCtx, cfg.FlushInterval, 10*time.Second)
	}()
	if cfg.OTPSweepInterval > 0 {
		go otpSvc.RunSweeper(ctx, cfg.OTPSweepInterval)
	}

	go func() {
		log.Printf("Authority starting on :%s (env=%s, snapshots=%s)", cfg.AppPort, cfg.AppEnv, cfg.SnapshotBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	stopFlush()
	<-flushDone
	otpSvc.WaitDeliveries()
	log.Println("Server stopped")
}
