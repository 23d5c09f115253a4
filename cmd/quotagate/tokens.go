package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/artpar/quotagate/adapters/auth"
	"github.com/artpar/quotagate/adapters/sqlite"
	"github.com/artpar/quotagate/config"
	"github.com/artpar/quotagate/ports"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Issue and manage credentials",
	Long: `Issue and manage QuotaGate credentials.

Two credential kinds exist:
  - Session JWTs, short-lived, for browser callers
  - API keys, long-lived, for programmatic callers (X-API-Key header)

Examples:
  quotagate tokens jwt --user=user_123
  quotagate tokens create --user=user_123 --name=ci
  quotagate tokens list --user=user_123
  quotagate tokens revoke tok_abc123`,
}

var tokensJWTCmd = &cobra.Command{
	Use:   "jwt",
	Short: "Issue a session JWT",
	RunE:  runTokensJWT,
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE:  runTokensCreate,
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runTokensList,
}

var tokensRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokensRevoke,
}

var (
	tokenUserID string
	tokenEmail  string
	tokenName   string
)

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.AddCommand(tokensJWTCmd)
	tokensCmd.AddCommand(tokensCreateCmd)
	tokensCmd.AddCommand(tokensListCmd)
	tokensCmd.AddCommand(tokensRevokeCmd)

	tokensJWTCmd.Flags().StringVar(&tokenUserID, "user", "", "user ID (required)")
	tokensJWTCmd.Flags().StringVar(&tokenEmail, "email", "", "user email (optional)")
	tokensJWTCmd.MarkFlagRequired("user")

	tokensCreateCmd.Flags().StringVar(&tokenUserID, "user", "", "user ID (required)")
	tokensCreateCmd.Flags().StringVar(&tokenName, "name", "", "key name (optional)")
	tokensCreateCmd.MarkFlagRequired("user")

	tokensListCmd.Flags().StringVar(&tokenUserID, "user", "", "filter by user ID")
}

func runTokensJWT(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; tokens issued here could not be validated by the server")
	}

	svc := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	token, expiresAt, err := svc.GenerateToken(tokenUserID, tokenEmail)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Printf("%s Issued session JWT for %s\n", checkMark, tokenUserID)
	fmt.Println()
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func runTokensCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	key := auth.NewAPIKey()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	token := ports.APIToken{
		ID:        "tok_" + uuid.NewString()[:8],
		UserID:    tokenUserID,
		Name:      tokenName,
		Prefix:    auth.KeyPrefix(key),
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	}

	if err := sqlite.NewTokenStore(db).Create(context.Background(), token); err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	fmt.Printf("%s Created API key for user %s\n", checkMark, tokenUserID)
	fmt.Println()
	fmt.Println("API Key (save this, shown once):")
	fmt.Printf("  %s\n", key)
	fmt.Println()
	fmt.Printf("Token ID: %s\n", token.ID)
	return nil
}

func runTokensList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := sqlite.NewTokenStore(db).List(context.Background(), tokenUserID)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	if len(tokens) == 0 {
		if tokenUserID != "" {
			fmt.Printf("No API keys found for user %s.\n", tokenUserID)
		} else {
			fmt.Println("No API keys found.")
		}
		fmt.Println()
		fmt.Println("Create one with: quotagate tokens create --user=<user-id>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX\tUSER\tNAME\tCREATED\tLAST USED")
	fmt.Fprintln(w, "--\t------\t----\t----\t-------\t---------")

	for _, t := range tokens {
		lastUsed := "never"
		if t.LastUsed != nil {
			lastUsed = t.LastUsed.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s...\t%s\t%s\t%s\t%s\n",
			t.ID, t.Prefix, t.UserID, t.Name, t.CreatedAt.Format("2006-01-02"), lastUsed)
	}

	w.Flush()
	return nil
}

func runTokensRevoke(cmd *cobra.Command, args []string) error {
	tokenID := args[0]

	if !confirm(fmt.Sprintf("Revoke token %s?", tokenID)) {
		fmt.Println("Aborted.")
		return nil
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewTokenStore(db).Delete(context.Background(), tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	fmt.Printf("%s Revoked token: %s\n", checkMark, tokenID)
	return nil
}
