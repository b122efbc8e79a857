package main

import (
	"fmt"

	"e6pools/pkg/auth"
	"e6pools/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	logoutAll     bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored site credentials",
	Long: `Manage stored e621 credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
E621_USER and E621_PASS, when set, take precedence over stored accounts.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store site credentials",
	Long: `Prompt for a username and password and store them. The password is not
echoed when typed on a terminal.`,
	Example: `  e6pools auth login
  e6pools auth login --username myname`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Example: `  e6pools auth logout myname
  e6pools auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := auth.NewStdinPrompter().Prompt(loginUsername, "")
	if err != nil {
		return err
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", account.Username))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		ui.PrintSuccess("All stored accounts removed")
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a username or --all is required")
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Account removed: %s", args[0]))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts. Run 'e6pools auth login' to add one.")
		return nil
	}

	for _, account := range accounts {
		safe := auth.SanitizeAccount(account)
		modified := "environment"
		if !safe.LastModified.IsZero() {
			modified = safe.LastModified.Format("2006-01-02 15:04")
		}
		ui.PrintInfo(safe.Username, fmt.Sprintf("%s (%s)", safe.Password, modified))
	}
	return nil
}
