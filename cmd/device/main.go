// Command device runs one client device: it keeps local copies of the synced
// record families, polls the authority, and serves a loopback API for
// transfers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-bank-sync/internal/application/reconcile"
	"github.com/go-bank-sync/internal/application/transfer"
	"github.com/go-bank-sync/internal/config"
	"github.com/go-bank-sync/internal/infrastructure/authorityclient"
	"github.com/go-bank-sync/internal/infrastructure/localcache"
	transporthttp "github.com/go-bank-sync/internal/transport/http"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()
	dc := cfg.Device

	// Flags override the environment.
	flags := pflag.NewFlagSet("device", pflag.ExitOnError)
	flags.StringVar(&dc.ListenPort, "port", dc.ListenPort, "local API port")
	flags.StringVar(&dc.AuthorityURL, "authority", dc.AuthorityURL, "authority base URL")
	flags.StringVar(&dc.DeviceID, "device-id", dc.DeviceID, "device identifier (generated when empty)")
	flags.StringVar(&dc.UserID, "user", dc.UserID, "signed-in user id")
	flags.StringVar(&dc.Email, "email", dc.Email, "signed-in user email")
	flags.StringVar(&dc.CacheBackend, "cache", dc.CacheBackend, "local cache backend: redis or dir")
	flags.StringVar(&dc.CacheDir, "cache-dir", dc.CacheDir, "directory for the dir cache backend")
	flags.StringVar(&dc.RedisAddr, "redis-addr", dc.RedisAddr, "redis address for the redis cache backend")
	flags.DurationVar(&dc.BalancePollInterval, "balance-interval", dc.BalancePollInterval, "profile poll interval")
	flags.DurationVar(&dc.PolicyPollInterval, "policy-interval", dc.PolicyPollInterval, "policy poll interval")
	flags.DurationVar(&dc.RegistryPollInterval, "registry-interval", dc.RegistryPollInterval, "registry poll interval")
	_ = flags.Parse(os.Args[1:])

	if dc.Email == "" || dc.UserID == "" {
		log.Fatal("a user id and email are required (DEVICE_USER_ID/DEVICE_EMAIL or --user/--email)")
	}
	if dc.DeviceID == "" {
		dc.DeviceID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache reconcile.LocalCache
	switch dc.CacheBackend {
	case "redis":
		rc := localcache.NewRedis(localcache.NewRedisClient(localcache.RedisConfig{
			Addr: dc.RedisAddr, Password: dc.RedisPassword, DB: dc.RedisDB,
		}), "device:"+dc.DeviceID)
		if err := rc.HealthCheck(ctx); err != nil {
			log.Fatalf("redis cache: %v", err)
		}
		cache = rc
	case "dir":
		dir, err := localcache.NewDir(dc.CacheDir, dc.DeviceID)
		if err != nil {
			log.Fatalf("dir cache: %v", err)
		}
		cache = dir
	default:
		log.Fatalf("unknown cache backend %q (want redis or dir)", dc.CacheBackend)
	}

	client := authorityclient.New(dc.AuthorityURL, dc.RequestTimeout)
	set := reconcile.NewSet(client, cache, dc.Email, reconcile.Intervals{
		Profile:  dc.BalancePollInterval,
		Policy:   dc.PolicyPollInterval,
		Registry: dc.RegistryPollInterval,
	}, dc.ForwardTimeout)
	if err := set.Load(ctx); err != nil {
		log.Printf("WARN: local cache partially unreadable: %v", err)
	}

	transfers := transfer.NewService(set, set.ProfileSync, client, transfer.Options{})

	srv := &http.Server{
		Addr: fmt.Sprintf("127.0.0.1:%s", dc.ListenPort),
		Handler: transporthttp.NewDeviceRouter(&transporthttp.DeviceDeps{
			Transfers: transfers,
			State:     set,
			UserID:    dc.UserID,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return set.Run(gctx) })
	g.Go(func() error {
		log.Printf("Device %s starting on %s (authority=%s, cache=%s)", dc.DeviceID, srv.Addr, dc.AuthorityURL, dc.CacheBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("device stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("Device stopped")
}
