package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/onnwee/contact-bot/config"
	"github.com/onnwee/contact-bot/crypto"
	"github.com/onnwee/contact-bot/db"
	"github.com/onnwee/contact-bot/twitchapi"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage the bot's stored Twitch token",
		Long: `Manage the Twitch token kept in the oauth_tokens table.

Available subcommands:
  authorize-url - Print the URL that grants the bot chat access
  exchange      - Trade an authorization code for a token and store it
  seal          - Encrypt plaintext tokens with ENCRYPTION_KEY
  status        - Count stored tokens per encryption version
  keygen        - Print a new random ENCRYPTION_KEY`,
	}
	cmd.AddCommand(newAuthorizeURLCmd(), newExchangeCmd(), newSealCmd(), newTokenStatusCmd(), newKeygenCmd())
	return cmd
}

func apiFromEnv(cfg *config.Config) *twitchapi.Client {
	api := twitchapi.NewClient(cfg.TwitchClientID, cfg.TwitchClientSecret)
	api.RedirectURL = cfg.TwitchRedirectURI
	return api
}

func newAuthorizeURLCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the Twitch authorization URL",
		Long:  `Requires TWITCH_CLIENT_ID and TWITCH_REDIRECT_URI.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if state == "" {
				state = uuid.NewString()
			}
			u, err := apiFromEnv(cfg).AuthorizeURL(state)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
			return err
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "OAuth state value (random when empty)")
	return cmd
}

func newExchangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code and store the token",
		Long:  `Requires TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET, TWITCH_REDIRECT_URI and DB_DSN.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			api := apiFromEnv(cfg)
			g, err := api.Exchange(ctx, args[0])
			if err != nil {
				return err
			}
			store, done, err := openTokenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer done()
			tok := db.Token{
				Provider:     config.TokenProvider,
				AccessToken:  g.AccessToken,
				RefreshToken: g.RefreshToken,
				Expiry:       g.Expiry,
				Scope:        g.Scope,
			}
			if err := store.UpsertOAuthToken(ctx, tok); err != nil {
				return err
			}
			login := "unknown"
			if v, err := api.Validate(ctx, g.AccessToken); err == nil {
				login = v.Login
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored token for %s (scope %q, expires %s)\n",
				login, g.Scope, g.Expiry.Format("2006-01-02 15:04:05 MST"))
			return err
		},
	}
}

func newSealCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt plaintext tokens",
		Long: `Encrypt every token stored in plaintext (encryption_version=0) with
ENCRYPTION_KEY (AES-256-GCM). Requires DB_DSN and ENCRYPTION_KEY.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.EncryptionKey == "" {
				return errors.New("ENCRYPTION_KEY environment variable is required")
			}
			store, done, err := openTokenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			providers, err := store.SealPlaintext(cmd.Context(), dryRun)
			verb := "sealed"
			if dryRun {
				verb = "would seal"
			}
			if len(providers) == 0 && err == nil {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no plaintext tokens found")
				return err
			}
			if len(providers) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d token(s): %s\n", verb, len(providers), strings.Join(providers, ", "))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be sealed without making changes")
	return cmd
}

func newTokenStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count stored tokens per encryption version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, done, err := openTokenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			status, err := store.EncryptionStatus(cmd.Context())
			if err != nil {
				return err
			}
			versions := make([]int, 0, len(status))
			for v := range status {
				versions = append(versions, v)
			}
			sort.Ints(versions)
			out := cmd.OutOrStdout()
			total := 0
			for _, v := range versions {
				fmt.Fprintf(out, "%-26s %d\n", versionName(v), status[v])
				total += status[v]
			}
			_, err = fmt.Fprintf(out, "%-26s %d\n", "total", total)
			return err
		},
	}
}

func versionName(v int) string {
	switch v {
	case 0:
		return "plaintext"
	case 1:
		return "encrypted (AES-256-GCM)"
	default:
		return fmt.Sprintf("unknown version %d", v)
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new random base64 ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}

// openTokenStore connects to DB_DSN, migrates, and returns a token store
// sealing with ENCRYPTION_KEY when set. done closes the connection.
func openTokenStore(ctx context.Context, cfg *config.Config) (store *db.TokenStore, done func(), err error) {
	database, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	var box *crypto.Box
	if cfg.EncryptionKey != "" {
		if box, err = crypto.NewBox(cfg.EncryptionKey); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
	}
	return db.NewTokenStore(database, box), func() { _ = database.Close() }, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DBDsn == "" {
		return nil, errors.New("DB_DSN environment variable is required")
	}
	database, err := db.Connect(ctx, cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}
