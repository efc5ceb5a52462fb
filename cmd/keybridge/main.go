package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/keybridge/internal/access"
	"github.com/dropDatabas3/keybridge/internal/config"
	"github.com/dropDatabas3/keybridge/internal/forward"
	"github.com/dropDatabas3/keybridge/internal/http/handlers"
	httpserver "github.com/dropDatabas3/keybridge/internal/http/server"
	"github.com/dropDatabas3/keybridge/internal/jwtx"
	"github.com/dropDatabas3/keybridge/internal/metrics"
	"github.com/dropDatabas3/keybridge/internal/notify"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/pipeline"
	"github.com/dropDatabas3/keybridge/internal/quota"
	"github.com/dropDatabas3/keybridge/internal/rate"
	"github.com/dropDatabas3/keybridge/internal/revocation"
	"github.com/dropDatabas3/keybridge/internal/safeurl"
	"github.com/dropDatabas3/keybridge/internal/splitkey"
	"github.com/dropDatabas3/keybridge/internal/store"
	memstore "github.com/dropDatabas3/keybridge/internal/store/memory"
	pgstore "github.com/dropDatabas3/keybridge/internal/store/pg"
	"github.com/dropDatabas3/keybridge/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "ruta del YAML de configuración")
	flag.Parse()

	// .env primero: las env vars alimentan overrides y secretos.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("KEYBRIDGE_LOG_LEVEL"),
		ServiceName: "keybridge",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Stores ----
	var (
		creds    store.Credentials
		rules    access.RuleStore
		whStore  webhook.Store
		revoked  revocation.Store
		counters quota.CounterStore
		limiter  rate.Limiter
	)

	switch cfg.Storage.Driver {
	case "postgres":
		pgs, err := pgstore.Connect(ctx, cfg.Storage.DSN, pgstore.Options{
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			ConnMaxLifetime: cfg.PgConnMaxLifetime(),
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pgs.Close()
		creds = pgs
		rules = pgs.Rules()
		whStore = pgs.Webhooks()
		log.Info("storage: postgres")
	default:
		creds = memstore.New()
		rules = access.NewMemoryRules()
		whStore = webhook.NewMemoryStore()
		log.Info("storage: memory")
	}
	// Lecturas del credential store con reintentos acotados; las escrituras
	// pasan directo.
	creds = store.WithRetry(creds, 2, 150*time.Millisecond)

	ceilings := quota.Ceilings{
		DailyDefault:   cfg.Quota.DailyDefault,
		MonthlyDefault: cfg.Quota.MonthlyDefault,
		Overrides:      quotaOverrides(cfg),
	}
	switch cfg.Cache.Kind {
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		revoked = revocation.NewRedis(client, cfg.Cache.Redis.Prefix+"rev:")
		counters = quota.NewRedis(client, cfg.Cache.Redis.Prefix+"quota:", ceilings)
		if cfg.Rate.Enabled {
			limiter = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
		}
		log.Info("cache: redis")
	default:
		revoked = revocation.NewMemory()
		counters = quota.NewMemory(ceilings)
		if cfg.Rate.Enabled {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
		}
		log.Info("cache: memory")
	}

	// ---- Núcleo ----
	engine := splitkey.NewEngine(creds)
	issuer, err := jwtx.NewIssuer(cfg.JWT.Issuer, cfg.JWTSeed(), cfg.AccessTTL())
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	urlValidator := &safeurl.Validator{
		AllowInsecure: cfg.SafeURL.AllowInsecure,
		MetadataHosts: cfg.SafeURL.MetadataHosts,
	}
	// Pre-dispatch resuelve DNS y exige que todas las IPs sean públicas
	// (defensa contra rebinding); en registro no se bloquea en DNS.
	dispatchValidator := &safeurl.Validator{
		AllowInsecure: cfg.SafeURL.AllowInsecure,
		MetadataHosts: cfg.SafeURL.MetadataHosts,
		LookupIP:      net.LookupIP,
	}
	fwd, err := forward.New(cfg.ProviderBaseURLs(), urlValidator)
	if err != nil {
		return err
	}

	var alerts notify.Notifier = notify.Noop{}
	if cfg.SMTP.Host != "" {
		alerts = &notify.SMTPNotifier{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
			From: cfg.SMTP.From, User: cfg.SMTP.Username, Pass: cfg.SMTP.Password,
			To: cfg.SMTP.To, TLSMode: cfg.SMTP.TLS, Insecure: cfg.SMTP.InsecureSkipVerify,
		}
	}
	dispatcher := webhook.NewDispatcher(whStore, dispatchValidator, cfg.WebhookMasterSecret(), alerts)

	deps := &handlers.Deps{
		Engine:  engine,
		Creds:   creds,
		Issuer:  issuer,
		Revoked: revoked,
		Auth: &pipeline.Authorizer{
			Rules:      rules,
			TrustProxy: cfg.Server.TrustProxy,
			Issuer:     issuer,
			Revoked:    revoked,
			Counters:   counters,
			Engine:     engine,
			ServerKeys: pipeline.StaticServerCredentials(cfg.ServerCredentials()),
		},
		Forwarder:  fwd,
		Registrar:  &webhook.Registrar{Store: whStore, Validator: urlValidator},
		Events:     dispatcher,
		Operators:  cfg.Operators,
		TrustProxy: cfg.Server.TrustProxy,
	}

	srv := httpserver.New(httpserver.Options{
		Addr:       cfg.Server.Addr,
		TrustProxy: cfg.Server.TrustProxy,
		Limiter:    limiter,
	}, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Run)

	// Sweeper periódico del revocation store: higiene, no seguridad (las
	// entradas vencidas ya no bloquean nada).
	g.Go(func() error {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if n, err := revoked.SweepExpired(gctx); err == nil {
					log.Debug("revocation sweep", logger.Count(n))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	log.Info("keybridge up", logger.Addr(cfg.Server.Addr))
	return g.Wait()
}

func quotaOverrides(cfg *config.Config) map[string]quota.Snapshot {
	if len(cfg.Quota.Overrides) == 0 {
		return nil
	}
	out := make(map[string]quota.Snapshot, len(cfg.Quota.Overrides))
	for id, q := range cfg.Quota.Overrides {
		out[id] = quota.Snapshot{DailyCeiling: q.Daily, MonthlyCeiling: q.Monthly}
	}
	return out
}
