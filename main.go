// Command contact-bot is the referee for a game of Contact played in a chat
// room. It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres, runs migrations and keeps the pin board
//     and the bot's OAuth token there.
//   - Joins the Twitch channel (or reads a local console) and referees the game.
//   - Keeps the Twitch token fresh when client credentials are configured.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /pins and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM: the game is shut down in the room
// before the chat session ends.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/config"
	"github.com/onnwee/contact-bot/crypto"
	"github.com/onnwee/contact-bot/db"
	"github.com/onnwee/contact-bot/oauth"
	"github.com/onnwee/contact-bot/referee"
	"github.com/onnwee/contact-bot/server"
	"github.com/onnwee/contact-bot/telemetry"
	"github.com/onnwee/contact-bot/twitchapi"
)

var version = "dev"

// session is what main needs from a chat transport.
type session interface {
	chat.Transport
	chat.Source
	chat.Injector
	Run(ctx context.Context) error
}

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("contact-bot", version)
	if err != nil {
		slog.Warn("failed to initialize tracing", slog.Any("err", err))
	} else {
		defer shutdownTracing()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(sigCtx, cfg); err != nil {
		slog.Error("contact-bot stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("contact-bot stopped")
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	// stdout belongs to the console transport; logs go to stderr.
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}

func run(sigCtx context.Context, cfg *config.Config) error {
	var (
		database *sql.DB
		tokens   *db.TokenStore
		pins     chat.PinBoard = chat.NewMemoryPins()
	)
	if cfg.DBDsn != "" {
		var err error
		database, err = db.Connect(sigCtx, cfg.DBDsn)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Warn("failed to close database", slog.Any("err", err))
			}
		}()
		if err := db.RunMigrations(database); err != nil {
			return err
		}
		if v, dirty, err := db.MigrationVersion(database); err == nil {
			slog.Info("migrations applied", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
		}

		var box *crypto.Box
		if cfg.EncryptionKey != "" {
			if box, err = crypto.NewBox(cfg.EncryptionKey); err != nil {
				return err
			}
		}
		tokens = db.NewTokenStore(database, box)
		pins = db.NewPinStore(database)
	} else {
		slog.Info("DB_DSN not set, pins are kept in memory")
	}

	api := twitchapi.NewClient(cfg.TwitchClientID, cfg.TwitchClientSecret)
	api.RedirectURL = cfg.TwitchRedirectURI

	var (
		tr        session
		connected func() bool
		tw        *chat.Twitch
	)
	switch cfg.Transport {
	case config.TransportConsole:
		name := cfg.TwitchBotUsername
		if name == "" {
			name = "ContactBot"
		}
		tr = chat.NewConsole(name, os.Stdin, os.Stdout, pins)
	default:
		if err := cfg.ValidateChatReady(); err != nil {
			return err
		}
		var store oauth.Store
		if tokens != nil {
			store = tokens
		}
		token, who, err := resolveToken(sigCtx, cfg, store, api)
		if err != nil {
			return err
		}
		tcfg := chat.TwitchConfig{Channel: cfg.TwitchChannel, Username: cfg.TwitchBotUsername, Token: token}
		if who != nil {
			tcfg.UserID = who.UserID
		}
		tw = chat.NewTwitch(tcfg, pins)
		tr, connected = tw, tw.Connected
	}

	bot := referee.New(tr)

	// The chat session and the HTTP server outlive the signal so the
	// shutdown notice can still be delivered.
	base, cancelAll := context.WithCancel(context.Background())
	defer cancelAll()
	g, gctx := errgroup.WithContext(base)

	g.Go(func() error { return tr.Run(gctx) })

	g.Go(func() error {
		return server.Start(gctx, cfg.HTTPAddr, server.Deps{
			Bot:        bot,
			Pins:       pins,
			Events:     tr,
			DB:         database,
			Connected:  connected,
			AdminToken: cfg.AdminToken,
		})
	})

	if tw != nil && tokens != nil && cfg.RefreshEnabled() {
		r := &oauth.Refresher{
			Store:    tokens,
			Provider: config.TokenProvider,
			Interval: cfg.RefreshInterval,
			Window:   cfg.RefreshWindow,
			Refresh:  refreshFunc(api),
			OnRefresh: func(t db.Token) {
				tw.SetToken(t.AccessToken)
			},
		}
		g.Go(func() error { return r.Run(gctx) })
	} else {
		slog.Info("oauth refresher disabled (requires DB_DSN, TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET)")
	}

	g.Go(func() error {
		defer cancelAll()
		gameCtx, cancelGame := context.WithCancel(gctx)
		defer cancelGame()
		stopSig := context.AfterFunc(sigCtx, cancelGame)
		defer stopSig()

		if err := awaitConnected(gameCtx, connected); err != nil {
			return nil
		}
		if cfg.AnnounceOnline {
			if err := bot.Announce(gameCtx); err != nil {
				slog.Error("online announcement failed", slog.Any("err", err))
				_ = bot.Fail(context.WithoutCancel(gameCtx), err)
				return err
			}
		}
		err := referee.Run(gameCtx, tr, bot)
		if err == nil && !bot.Stopped() {
			slog.Info("signal received, shutting down the game")
			ctx, cancel := context.WithTimeout(context.WithoutCancel(gameCtx), 10*time.Second)
			defer cancel()
			if serr := bot.Shutdown(ctx); serr != nil {
				slog.Warn("shutdown incomplete", slog.Any("err", serr))
			}
		}
		return err
	})

	return g.Wait()
}

// awaitConnected blocks until connected reports true. A nil connected means
// the transport is up from the start.
func awaitConnected(ctx context.Context, connected func() bool) error {
	if connected == nil {
		return nil
	}
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for !connected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// resolveToken picks the access token for IRC: TWITCH_OAUTH_TOKEN first, then
// the stored token. An env token is seeded into an empty store so the
// refresher can take over. A rejected token is refreshed once when a refresh
// token and client credentials are available. The returned validation is nil
// when Twitch could not be reached.
func resolveToken(ctx context.Context, cfg *config.Config, store oauth.Store, api *twitchapi.Client) (string, *twitchapi.Validation, error) {
	var stored db.Token
	if store != nil {
		tok, err := store.GetOAuthToken(ctx, config.TokenProvider)
		switch {
		case err == nil:
			stored = tok
		case !errors.Is(err, db.ErrNoToken):
			return "", nil, err
		}
	}

	token := strings.TrimPrefix(cfg.TwitchOAuthToken, "oauth:")
	if token == "" {
		token = stored.AccessToken
	}
	refreshToken := stored.RefreshToken
	if refreshToken == "" {
		refreshToken = cfg.TwitchRefreshToken
	}
	if token == "" && refreshToken == "" {
		return "", nil, errors.New("no twitch access token: set TWITCH_OAUTH_TOKEN or store one in oauth_tokens")
	}

	var who *twitchapi.Validation
	var err error
	if token != "" {
		who, err = api.Validate(ctx, token)
	} else {
		err = twitchapi.ErrInvalidToken
	}
	switch {
	case errors.Is(err, twitchapi.ErrInvalidToken):
		if refreshToken == "" || api.ClientID == "" || api.ClientSecret == "" {
			return "", nil, err
		}
		slog.Info("twitch token rejected, refreshing")
		next, rerr := refreshFunc(api)(ctx, refreshToken)
		if rerr != nil {
			return "", nil, rerr
		}
		if next.RefreshToken == "" {
			next.RefreshToken = refreshToken
		}
		if store != nil {
			if err := store.UpsertOAuthToken(ctx, next); err != nil {
				return "", nil, err
			}
		}
		token = next.AccessToken
		if who, err = api.Validate(ctx, token); err != nil {
			return "", nil, err
		}
		return token, checkScopes(who), nil
	case err != nil:
		slog.Warn("twitch token validation unavailable, identity falls back to login", slog.Any("err", err))
		return token, nil, nil
	}

	if store != nil && stored.AccessToken != token {
		seed := db.Token{
			Provider:     config.TokenProvider,
			AccessToken:  token,
			RefreshToken: refreshToken,
			Expiry:       twitchapi.ComputeExpiry(who.ExpiresIn),
			Scope:        strings.Join(who.Scopes, " "),
		}
		if err := store.UpsertOAuthToken(ctx, seed); err != nil {
			slog.Warn("failed to store twitch token", slog.Any("err", err))
		}
	}
	return token, checkScopes(who), nil
}

func checkScopes(v *twitchapi.Validation) *twitchapi.Validation {
	if !v.HasScopes(twitchapi.ChatScopes...) {
		slog.Warn("twitch token lacks chat scopes", slog.Any("scopes", v.Scopes), slog.Any("want", twitchapi.ChatScopes))
	}
	return v
}

// refreshFunc adapts the Twitch refresh grant to the refresher.
func refreshFunc(api *twitchapi.Client) oauth.RefreshFunc {
	return func(ctx context.Context, refreshToken string) (db.Token, error) {
		g, err := api.RefreshToken(ctx, refreshToken)
		if err != nil {
			return db.Token{}, err
		}
		return db.Token{
			Provider:     config.TokenProvider,
			AccessToken:  g.AccessToken,
			RefreshToken: g.RefreshToken,
			Expiry:       g.Expiry,
			Scope:        g.Scope,
		}, nil
	}
}
