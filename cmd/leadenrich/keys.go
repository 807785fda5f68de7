package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

const keysTimeout = 10 * time.Second

func newKeysCmd() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}

	var name string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKeyService(cmd.Context(), func(ctx context.Context, svc *application.KeyService) error {
				issued, err := svc.Create(ctx, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created API key %d (%s): %s\n", issued.Account.ID, issued.Account.Name, issued.Plaintext)
				fmt.Fprintln(cmd.OutOrStdout(), "Store it now; it cannot be shown again.")
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Name of the key owner")
	_ = createCmd.MarkFlagRequired("name")
	keysCmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKeyService(cmd.Context(), func(ctx context.Context, svc *application.KeyService) error {
				accounts, err := svc.List(ctx)
				if err != nil {
					return err
				}
				if len(accounts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No API keys found")
					return nil
				}
				return printKeysTable(cmd.OutOrStdout(), accounts)
			})
		},
	}
	keysCmd.AddCommand(listCmd)

	revokeCmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Deactivate an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key id %q: %w", args[0], err)
			}
			return withKeyService(cmd.Context(), func(ctx context.Context, svc *application.KeyService) error {
				if err := svc.Revoke(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked API key %d\n", id)
				return nil
			})
		},
	}
	keysCmd.AddCommand(revokeCmd)

	return keysCmd
}

func withKeyService(parent context.Context, fn func(context.Context, *application.KeyService) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, keysTimeout)
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	return fn(ctx, application.NewKeyService(st.accounts, st.usage))
}

func printKeysTable(out io.Writer, accounts []model.Account) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tACTIVE\tCREATED\tLAST USED")
	for _, a := range accounts {
		lastUsed := "never"
		if a.LastUsedAt != nil {
			lastUsed = a.LastUsedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n",
			a.ID, a.Name, a.KeyPrefix, a.Active, a.CreatedAt.UTC().Format(time.RFC3339), lastUsed)
	}
	return w.Flush()
}
