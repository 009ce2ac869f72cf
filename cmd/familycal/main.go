package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"familycal/internal/auth"
	"familycal/internal/cache"
	"familycal/internal/config"
	"familycal/internal/events"
	"familycal/internal/gcal"
	appLog "familycal/internal/log"
	"familycal/internal/scheduler"
	"familycal/internal/settings"
	"familycal/internal/store"
	"familycal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	token      string
	tokenTTL   time.Duration
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// -token prints a bearer token for the dashboard and exits.
	if flags.token != "" {
		tok, err := auth.Sign(conf.Auth.JWTSecret, flags.token, "", time.Now(), flags.tokenTTL)
		if err != nil {
			appLog.Error("failed to sign token", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("familycal starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"cache_ttl", conf.CacheTTL.String(),
		"upstream_timeout", conf.UpstreamTimeout.String(),
		"refresh", conf.RefreshCron,
		"redis", conf.Redis.Addr != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		appLog.Error("familycal exited with error", err)
		os.Exit(1)
	}
	appLog.Info("familycal exiting")
}

func run(ctx context.Context, conf *config.Config) error {
	loc, err := conf.Location()
	if err != nil {
		appLog.Warn("invalid timezone; using UTC", "timezone", conf.Timezone, "error", err.Error())
	}

	verifier, err := auth.NewJWTVerifier(conf.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	st, closeStore, err := openStore(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	clients := gcal.NewGoogleClients(conf.Google.ClientID, conf.Google.ClientSecret, conf.Google.RedirectURL, conf.UpstreamTimeout)
	fetcher := gcal.NewFetcher(st, clients)
	agg := events.NewAggregator(fetcher, st, cache.New(conf.CacheTTL), events.WithLocation(loc))
	svc := settings.NewService(st, agg)

	srv := web.NewServer(conf.Listen, web.Deps{
		Events:    agg,
		Calendars: fetcher,
		Settings:  svc,
		Verifier:  verifier,
		Location:  loc,
	})

	var wg sync.WaitGroup
	if conf.WarmingEnabled() {
		sched, err := scheduler.New(conf.RefreshCron, agg, loc, conf.WarmDays, scheduler.WithTimeout(2*conf.UpstreamTimeout))
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}

	err = srv.Run(ctx)
	wg.Wait()
	return err
}

// openStore connects to Redis when configured and otherwise falls back to an
// in-memory store, which loses all configuration on restart.
func openStore(ctx context.Context, conf *config.Config) (store.Store, func(), error) {
	if conf.Redis.Addr == "" {
		appLog.Warn("redis not configured; using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r, err := store.Dial(dialCtx, &redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}, conf.Redis.Prefix, conf.FamilyConfigDoc)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis %s: %w", conf.Redis.Addr, err)
	}
	return r, func() {
		if err := r.Close(); err != nil {
			appLog.Error("failed to close redis", err)
		}
	}, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/familycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.token, "token", "", "Print a bearer token for this subject and exit")
	flag.DurationVar(&cfg.tokenTTL, "token-ttl", 30*24*time.Hour, "Lifetime of a token printed by -token")

	flag.Parse()

	return cfg
}
