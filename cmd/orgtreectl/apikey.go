package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/orgtree/internal/auth"
	"github.com/MacJediWizard/orgtree/internal/models"
)

// cliPrincipal stamps audit fields for changes made through this tool.
func cliPrincipal() *auth.Principal {
	name := os.Getenv("USER")
	if name == "" {
		name = "orgtreectl"
	}
	return &auth.Principal{Type: auth.PrincipalOperator, Name: name, Permission: models.PermissionReadWrite}
}

func newAPIKeyCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apikey",
		Aliases: []string{"apikeys"},
		Short:   "Manage API keys",
	}

	cmd.AddCommand(
		newAPIKeyCreateCmd(flags),
		newAPIKeyListCmd(flags),
		newAPIKeyToggleCmd(flags),
		newAPIKeyDeleteCmd(flags),
	)
	return cmd
}

func newAPIKeyCreateCmd(flags *globalFlags) *cobra.Command {
	var (
		appName     string
		description string
		permission  string
		expiresIn   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key",
		Long: `Issue a new API key.

The plaintext key is printed once and cannot be recovered afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := models.ParsePermission(permission)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			e, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			in := &models.APIKeyInput{AppName: appName, Description: description, Permission: perm}
			if expiresIn > 0 {
				at := time.Now().Add(expiresIn).UTC()
				in.ExpiresAt = &at
			}

			keys := auth.NewKeyManager(e.stores.APIKeys, e.cfg.BcryptCost, e.logger)
			created, err := keys.Create(auth.WithPrincipal(ctx, cliPrincipal()), in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API key created for %s (%s)\n", created.AppName, created.Permission)
			fmt.Fprintf(out, "  ID:  %s\n", created.ID)
			fmt.Fprintf(out, "  Key: %s\n", created.Key)
			fmt.Fprintln(out, "Store the key now; it will not be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&appName, "app", "", "Application name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&permission, "permission", "read", "Permission: read or read_write")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Expire the key after this duration (default: never)")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func newAPIKeyListCmd(flags *globalFlags) *cobra.Command {
	var (
		search string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.APIKeyFilter{Search: search}
			switch status {
			case "all":
			case "active", "inactive":
				active := status == "active"
				filter.IsActive = &active
			default:
				return fmt.Errorf("--status must be all, active or inactive")
			}

			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			e, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			keys := auth.NewKeyManager(e.stores.APIKeys, e.cfg.BcryptCost, e.logger)
			page, err := keys.List(ctx, filter, models.PageRequest{Page: 1, Limit: limit, Sort: "name"})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAPP\tPERMISSION\tACTIVE\tUSES\tLAST USED\tEXPIRES")
			for _, k := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\t%s\n",
					k.ID, k.AppName, k.Permission, k.IsActive, k.UsageCount,
					formatTime(k.LastUsedAt), formatTime(k.ExpiresAt))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.Pagination.Total > int64(len(page.Items)) {
				fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d keys shown)\n", len(page.Items), page.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Filter by application name or description")
	cmd.Flags().StringVar(&status, "status", "all", "Filter by status: all, active or inactive")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of keys to show")

	return cmd
}

func newAPIKeyToggleCmd(flags *globalFlags) *cobra.Command {
	var (
		enable  bool
		disable bool
	)

	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable, revoke or flip an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return errors.New("--enable and --disable are mutually exclusive")
			}
			var active *bool
			if enable || disable {
				active = &enable
			}

			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			e, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			keys := auth.NewKeyManager(e.stores.APIKeys, e.cfg.BcryptCost, e.logger)
			key, err := keys.SetStatus(auth.WithPrincipal(ctx, cliPrincipal()), args[0], active)
			if err != nil {
				return err
			}

			state := "revoked"
			if key.IsActive {
				state = "active"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key %s is now %s\n", key.ID, state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Activate the key")
	cmd.Flags().BoolVar(&disable, "disable", false, "Revoke the key")

	return cmd
}

func newAPIKeyDeleteCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete API key %s? [y/N] ", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			e, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			keys := auth.NewKeyManager(e.stores.APIKeys, e.cfg.BcryptCost, e.logger)
			if err := keys.Delete(auth.WithPrincipal(ctx, cliPrincipal()), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key %s deleted\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// newHashPasswordCmd prints a bcrypt hash for OPERATOR_PASSWORD_HASH.
func newHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an operator password for OPERATOR_PASSWORD_HASH",
		Long: `Read a password from standard input and print its bcrypt hash.

Set the output as OPERATOR_PASSWORD_HASH to enable operator login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			password, err := reader.ReadString('\n')
			if err != nil && password == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(password, "\r\n")
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashSecret(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default: bcrypt default)")

	return cmd
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
