// Command dbtool manages the NonoTalk database: migrations, reset and
// manual account creation.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/logging"
	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/service/auth"
	"github.com/nonotalk/backend/internal/store"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:           "dbtool",
	Short:         "Manage the NonoTalk database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			databaseURL = "sqlite://data/nonotalk.db"
		}
	},
}

// migrateCmd applies pending migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(s *store.SQLStore, logger *zap.Logger) error {
			return store.Migrate(s, logger)
		})
	},
}

// resetCmd drops every table and re-applies the schema
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Revert every migration, then apply them again",
	Long: `Revert every migration, then apply them again.

All users, conversations, messages and invitations are deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(s *store.SQLStore, logger *zap.Logger) error {
			if err := store.MigrateDown(s); err != nil {
				return err
			}
			return store.Migrate(s, logger)
		})
	},
}

var addUserFlags struct {
	username string
	email    string
	pin      string
	quota    int
}

// addUserCmd creates an account without going through registration
var addUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Create a user account",
	RunE:  runAddUser,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "database URL (defaults to $DATABASE_URL)")

	addUserCmd.Flags().StringVar(&addUserFlags.username, "username", "", "login name")
	addUserCmd.Flags().StringVar(&addUserFlags.email, "email", "", "email address")
	addUserCmd.Flags().StringVar(&addUserFlags.pin, "pin", "", "4 to 8 digit PIN")
	addUserCmd.Flags().IntVar(&addUserFlags.quota, "quota", config.BaseQuota, "initial exchange quota")
	_ = addUserCmd.MarkFlagRequired("username")
	_ = addUserCmd.MarkFlagRequired("email")
	_ = addUserCmd.MarkFlagRequired("pin")

	rootCmd.AddCommand(migrateCmd, resetCmd, addUserCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withStore(ctx context.Context, fn func(s *store.SQLStore, logger *zap.Logger) error) error {
	logger, err := logging.New("info", true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := store.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, logger)
}

func runAddUser(cmd *cobra.Command, args []string) error {
	u, err := newUser(addUserFlags.username, addUserFlags.email, addUserFlags.pin, addUserFlags.quota)
	if err != nil {
		return err
	}

	return withStore(cmd.Context(), func(s *store.SQLStore, logger *zap.Logger) error {
		if err := store.Migrate(s, logger); err != nil {
			return err
		}
		if err := s.CreateUser(cmd.Context(), u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("username or email already in use")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d, quota %d)\n", u.Username, u.ID, u.QuotaRemaining)
		return nil
	})
}

// newUser validates the flags and builds the account row.
func newUser(username, email, pin string, quota int) (*user.User, error) {
	username = strings.TrimSpace(username)
	email = auth.NormalizeEmail(email)
	switch {
	case username == "":
		return nil, errors.New("--username is required")
	case !auth.ValidEmail(email):
		return nil, fmt.Errorf("invalid email %q", email)
	case !auth.ValidPIN(pin):
		return nil, errors.New("PIN must be 4 to 8 digits")
	case quota < 0:
		return nil, errors.New("--quota must not be negative")
	}

	hash, err := auth.HashPIN(pin)
	if err != nil {
		return nil, err
	}
	return &user.User{
		Username:       username,
		Email:          email,
		PINHash:        hash,
		QuotaRemaining: quota,
		TotalQuota:     quota,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
