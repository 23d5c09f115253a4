package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/artpar/quotagate/adapters/sqlite"
	"github.com/artpar/quotagate/config"
	"github.com/artpar/quotagate/ports"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage caller-to-billing-account links",
	Long: `Manage the links between portal callers and billing accounts.

A caller with no link (or an empty one) is served the unprovisioned
quota defaults until an operator links them here.

Examples:
  quotagate accounts show user_123
  quotagate accounts link user_123 acc_456
  quotagate accounts unlink user_123`,
}

var accountsShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a caller's billing account link",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsShow,
}

var accountsLinkCmd = &cobra.Command{
	Use:   "link <user-id> <billing-account-id>",
	Short: "Link a caller to a billing account",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountsLink,
}

var accountsUnlinkCmd = &cobra.Command{
	Use:   "unlink <user-id>",
	Short: "Clear a caller's billing account link",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsUnlink,
}

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(accountsShowCmd)
	accountsCmd.AddCommand(accountsLinkCmd)
	accountsCmd.AddCommand(accountsUnlinkCmd)
}

func runAccountsShow(cmd *cobra.Command, args []string) error {
	userID := args[0]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	profile, err := sqlite.NewProfileStore(db).Get(context.Background(), userID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			fmt.Printf("No profile for %s (caller gets unprovisioned defaults).\n", userID)
			return nil
		}
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.BillingAccountID == "" {
		fmt.Printf("%s is not linked (caller gets unprovisioned defaults).\n", userID)
		return nil
	}

	fmt.Printf("User:            %s\n", profile.UserID)
	fmt.Printf("Billing account: %s\n", profile.BillingAccountID)
	fmt.Printf("Linked since:    %s\n", profile.CreatedAt.Format("2006-01-02 15:04"))
	return nil
}

func runAccountsLink(cmd *cobra.Command, args []string) error {
	userID, accountID := args[0], args[1]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewProfileStore(db).Link(context.Background(), userID, accountID); err != nil {
		return fmt.Errorf("failed to link account: %w", err)
	}

	fmt.Printf("%s Linked %s to billing account %s\n", checkMark, userID, accountID)
	return nil
}

func runAccountsUnlink(cmd *cobra.Command, args []string) error {
	userID := args[0]

	if !confirm(fmt.Sprintf("Unlink %s from their billing account?", userID)) {
		fmt.Println("Aborted.")
		return nil
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewProfileStore(db).Unlink(context.Background(), userID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			fmt.Printf("No profile for %s, nothing to unlink.\n", userID)
			return nil
		}
		return fmt.Errorf("failed to unlink account: %w", err)
	}

	fmt.Printf("%s Unlinked %s\n", checkMark, userID)
	return nil
}

// openDatabase opens the database named by the effective configuration.
func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// confirm asks the operator a yes/no question on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
