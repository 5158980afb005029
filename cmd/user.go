package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a dashboard account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserPasswd,
}

var userPinCmd = &cobra.Command{
	Use:   "pin <username>",
	Short: "Set a user's second-factor PIN",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserPin,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userPasswdCmd, userPinCmd)

	userCreateCmd.Flags().String("password", "", "Password for the new account")
	userCreateCmd.Flags().String("pin", "", "PIN for the new account")
	userCreateCmd.MarkFlagRequired("password")
	userCreateCmd.MarkFlagRequired("pin")

	userPasswdCmd.Flags().String("password", "", "New password")
	userPasswdCmd.MarkFlagRequired("password")

	userPinCmd.Flags().String("pin", "", "New PIN")
	userPinCmd.MarkFlagRequired("pin")
}

// hashSecret bcrypt-hashes a password or PIN. Blank secrets are rejected.
func hashSecret(kind, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("%s must not be empty", kind)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", kind, err)
	}
	return string(hash), nil
}

// withStore opens the configured database for the duration of fn.
func withStore(fn func(ctx context.Context, cfg *config.Config, store database.Store) error) error {
	cfg := config.Load()
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, cfg, store)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	if username == "" {
		return errors.New("username must not be empty")
	}
	passwordHash, err := hashSecret("password", mustGetString(cmd, "password"))
	if err != nil {
		return err
	}
	pinHash, err := hashSecret("PIN", mustGetString(cmd, "pin"))
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		id, err := store.CreateUser(ctx, &database.User{
			Username:     username,
			PasswordHash: passwordHash,
			PINHash:      pinHash,
		})
		if errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("user %q already exists", username)
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Printf("Created user %s (id %d)\n", username, id)
		return nil
	})
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	hash, err := hashSecret("password", mustGetString(cmd, "password"))
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		if err := store.UpdatePassword(ctx, args[0], hash); err != nil {
			return userUpdateError(args[0], err)
		}
		fmt.Printf("Password updated for %s\n", args[0])
		return nil
	})
}

func runUserPin(cmd *cobra.Command, args []string) error {
	hash, err := hashSecret("PIN", mustGetString(cmd, "pin"))
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		if err := store.UpdatePIN(ctx, args[0], hash); err != nil {
			return userUpdateError(args[0], err)
		}
		fmt.Printf("PIN updated for %s\n", args[0])
		return nil
	})
}

func userUpdateError(username string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("user %q not found", username)
	}
	return fmt.Errorf("failed to update user %q: %w", username, err)
}
