package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/web-login/internal/business/server"
	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/internal/oidc"
	"github.com/openkcm/web-login/internal/session"
	sessionpostgres "github.com/openkcm/web-login/internal/session/postgres"
	sessionvalkey "github.com/openkcm/web-login/internal/session/valkey"
	"github.com/openkcm/web-login/pkg/weblogin"
)

// Main starts the HTTP server fronted by the login middleware.
func Main(ctx context.Context, cfg *config.Config) error {
	middleware, closeFn, err := initMiddleware(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the login middleware: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, middleware)
}

// initMiddleware builds the relying party client, the configured
// session store and the middleware around them. Provider discovery
// runs here so a wrong issuer never makes it into serving.
func initMiddleware(ctx context.Context, cfg *config.Config) (_ *weblogin.Middleware, closeFn func(), _ error) {
	httpClient, err := loadHTTPClient(&cfg.Login)
	if err != nil {
		return nil, nil, fmt.Errorf("loading http client: %w", err)
	}

	relyingParty, err := oidc.NewRelyingParty(&cfg.Login, httpClient)
	if err != nil {
		return nil, nil, fmt.Errorf("creating the relying party client: %w", err)
	}

	if err := relyingParty.Discover(ctx); err != nil {
		return nil, nil, fmt.Errorf("discovering provider %q: %w", cfg.Login.IssuerURL, err)
	}

	store, closeFn, err := sessionStoreFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising the session store: %w", err)
	}

	opts := []weblogin.Option{}
	if store != nil {
		opts = append(opts, weblogin.WithSessionStore(store))
	}

	middleware, err := weblogin.New(&cfg.Login, relyingParty, opts...)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating the login middleware: %w", err)
	}

	return middleware, closeFn, nil
}

// sessionStoreFromConfig connects the backing store the config names.
// The cookie and memory settings need no backing service, so the
// middleware wires those itself.
func sessionStoreFromConfig(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	noop := func() {}

	switch cfg.Login.Session.Store {
	case config.StoreValKey:
		valkeyClient, err := valkeyClientFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}

		return sessionvalkey.NewStore(valkeyClient, cfg.ValKey.Prefix), valkeyClient.Close, nil
	case config.StorePostgres:
		connStr, err := config.MakeConnStr(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("making dsn from config: %w", err)
		}

		poolCfg, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing pgxpool config: %w", err)
		}

		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		db, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
		}

		return sessionpostgres.NewStore(db), db.Close, nil
	default:
		return nil, noop, nil
	}
}

func valkeyClientFromConfig(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	}

	if cfg.ValKey.SecretRef.Type == commoncfg.MTLSSecretType {
		tlsConfig, err := commoncfg.LoadMTLSConfig(&cfg.ValKey.SecretRef.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
		}

		valkeyOpts.TLSConfig = tlsConfig
	}

	valkeyClient, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}

// loadHTTPClient builds the client the relying party talks to the
// provider with. Request-level client authentication lives in the
// relying party itself; mTLS is a transport concern and is set up here.
func loadHTTPClient(cfg *config.Login) (*http.Client, error) {
	switch cfg.ClientAuth.Type {
	case "mtls":
		tlsConfig, err := commoncfg.LoadMTLSConfig(cfg.ClientAuth.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading mTLS config: %w", err)
		}

		return &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}, nil
	case "client_secret", "none":
		return http.DefaultClient, nil
	default:
		return nil, errors.New("unknown Client Auth type")
	}
}
