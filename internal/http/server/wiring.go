// Package server construye el grafo de dependencias a partir de la config y
// levanta el servidor HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/accountlink/internal/account"
	"github.com/dropDatabas3/accountlink/internal/cache"
	"github.com/dropDatabas3/accountlink/internal/config"
	"github.com/dropDatabas3/accountlink/internal/dispatch"
	"github.com/dropDatabas3/accountlink/internal/domain/repository"
	accountctrl "github.com/dropDatabas3/accountlink/internal/http/controllers/account"
	adminctrl "github.com/dropDatabas3/accountlink/internal/http/controllers/admin"
	"github.com/dropDatabas3/accountlink/internal/http/controllers/health"
	"github.com/dropDatabas3/accountlink/internal/http/router"
	"github.com/dropDatabas3/accountlink/internal/linking"
	"github.com/dropDatabas3/accountlink/internal/metrics"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/rate"
	"github.com/dropDatabas3/accountlink/internal/roles"
	"github.com/dropDatabas3/accountlink/internal/scheme"
	"github.com/dropDatabas3/accountlink/internal/security/token"
	"github.com/dropDatabas3/accountlink/internal/session"
	"github.com/dropDatabas3/accountlink/internal/store/memory"
	"github.com/dropDatabas3/accountlink/internal/store/pg"
	"github.com/dropDatabas3/accountlink/internal/ticket"
	migrations "github.com/dropDatabas3/accountlink/migrations/postgres"
)

// Version se pisa en build con -ldflags.
var Version = "dev"

// App es el servicio ya cableado.
type App struct {
	Config  *config.Config
	Handler http.Handler
	Cache   cache.Client
	Store   repository.Store

	closers []func() error
}

// Options permite inyectar piezas en tests.
type Options struct {
	// Registerer para las métricas; nil usa el default de prometheus.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	HTTPClient *http.Client
}

// Build arma todas las dependencias. Si falla a mitad de camino libera lo ya
// abierto.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.Named("server")
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	// 1. Cache compartido
	app.Cache, err = cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	app.closers = append(app.closers, app.Cache.Close)

	// 2. Persistencia
	healthDeps := map[string]health.Pinger{"cache": app.Cache}
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.Open(ctx, cfg.Storage.DSN, pg.PoolOptions{
			MaxConns:        int32(cfg.Storage.Postgres.MaxOpenConns),
			MinConns:        int32(cfg.Storage.Postgres.MinConns),
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		app.closers = append(app.closers, func() error { st.Close(); return nil })
		if cfg.Flags.Migrate {
			applied, err := pg.Migrate(ctx, st.DB(), migrations.FS, migrations.Dir)
			if err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", logger.Any("versions", applied))
		}
		app.Store = st
		healthDeps["storage"] = st
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		app.Store = memory.New()
	}

	// 3. Tickets
	protectionKey, err := secretOrEphemeral(cfg.Session.ProtectionKey, "session.protection_key")
	if err != nil {
		return nil, err
	}
	codec, err := ticket.NewCodec(protectionKey)
	if err != nil {
		return nil, fmt.Errorf("ticket codec: %w", err)
	}
	tickets := ticket.NewStore(app.Cache, codec, cfg.Session.TicketTTL)

	// 4. Providers
	reg, err := providers.NewRegistry(cfg.Providers, hc)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	// 5. Core
	roleCache := roles.NewCache(app.Cache, app.Store, cfg.Auth.RoleCacheTTL)
	coord := linking.NewCoordinator(linking.Deps{
		Store:      app.Store,
		Roles:      roleCache,
		AdminEmail: cfg.Auth.AdminEmail,
		Locks:      app.Cache,
	})
	guard := session.NewGuard(tickets, ticket.NewRefreshClient(hc), app.Cache, cfg.Session.RefreshSkew)
	sessions := session.NewManager(tickets, guard, session.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.Domain,
		Secure:   cfg.Session.Secure,
		SameSite: cfg.Session.SameSite,
	}, cfg.Session.SlidingTTL)
	bearer := session.NewBearerResolver(scheme.NewRouter(cfg.Providers), reg, app.Store, roleCache)

	// 6. Dispatch
	dreg := dispatch.NewRegistry()
	if err := account.Register(dreg, account.Deps{
		Store:     app.Store,
		Providers: reg,
		Unlinker:  coord,
		Roles:     roleCache,
	}); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	dreg.Seal()
	pipeline := dispatch.NewPipeline(dreg)

	// 7. HTTP
	stateKey, err := secretOrEphemeral(cfg.Auth.StateKey, "auth.state_key")
	if err != nil {
		return nil, err
	}
	state, err := accountctrl.NewStateCodec([]byte(stateKey), cfg.Auth.StateTTL)
	if err != nil {
		return nil, err
	}

	if err := metrics.Register(opts.Registerer); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	app.Handler = router.New(router.Deps{
		Account: accountctrl.New(accountctrl.Deps{
			Providers:     reg,
			Coordinator:   coord,
			Sessions:      sessions,
			Pipeline:      pipeline,
			State:         state,
			PublicURL:     cfg.Server.PublicURL,
			SecureCookies: cfg.Session.Secure,
		}),
		Admin:        adminctrl.New(pipeline),
		Health:       health.NewHealthController(Version, healthDeps),
		Sessions:     sessions,
		Roles:        roleCache,
		Bearer:       bearer,
		LoginLimiter: loginLimiter(cfg, app.Cache),
		Metrics:      metrics.Handler(opts.Gatherer),
		CORSOrigins:  cfg.Server.CORSAllowedOrigins,
	})

	log.Info("service wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Any("providers", reg.Names()),
		logger.Any("dispatch_types", dreg.Types()),
	)
	return app, nil
}

// secretOrEphemeral: fuera de prod una clave vacía se reemplaza por una
// aleatoria (las sesiones no sobreviven un reinicio ni se comparten entre nodos).
func secretOrEphemeral(v, name string) (string, error) {
	if v != "" {
		return v, nil
	}
	k, err := token.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	logger.Named("server").Warn("no key configured, using an ephemeral one", logger.String("key", name))
	return k, nil
}

// loginLimiter devuelve nil (sin límite) si rate está deshabilitado. Con
// redis el límite es global al cluster.
func loginLimiter(cfg *config.Config, c cache.Client) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if rc, ok := c.(*cache.Redis); ok {
		return rate.NewRedisLimiter(rc.Raw(), cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
	}
	return rate.NewMemoryLimiter("rl:", cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
}

// Close libera cache y pool en orden inverso.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Serve escucha en cfg.Server.Addr hasta que ctx se cancele y luego hace un
// shutdown ordenado.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Named("server").Info("listening", logger.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Named("server").Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
