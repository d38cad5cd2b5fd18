package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/soochol/dbadmin/internal/api"
	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/services"
	"github.com/soochol/dbadmin/internal/tracking"
)

func databasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"db"},
		Short:   "Inspect and operate on configured databases",
		Long: `Runs through the registry manager against the data-access backend selected by the
configuration: the remote service when remote.url is set, otherwise the
embedded store.`,
	}
	cmd.AddCommand(databasesListCmd(), databasesSyncCmd(), databasesDeleteCmd())
	return cmd
}

func databasesListCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unknown output %q (table or json)", output)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			mgr := cliManager(cfg, b)
			if err := mgr.FetchAll(cmd.Context()); err != nil {
				return fmt.Errorf("failed to list databases: %w", err)
			}
			recs := mgr.State().Registry
			if output == "json" {
				data, _ := json.MarshalIndent(recs, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			renderDatabases(cmd.OutOrStdout(), recs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json)")
	return cmd
}

func renderDatabases(w io.Writer, recs []dbadmin.DatabaseRecord) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		sample := ""
		if r.IsSample {
			sample = "✓"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			r.Engine,
			sample,
			formatTime(r.MetadataSyncedAt),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("ID", "Name", "Engine", "Sample", "Last Sync").
		Rows(rows...)

	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "%d database(s)\n", len(recs))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func databasesSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id>",
		Short: "Trigger a metadata sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := cliManager(cfg, b).SyncMetadata(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to sync database %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync of database %d started\n", id)
			return nil
		},
	}
}

func databasesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := cliManager(cfg, b).Delete(cmd.Context(), id, false); err != nil {
				return fmt.Errorf("failed to delete database %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %d deleted\n", id)
			return nil
		},
	}
}

// cliManager runs one-shot operations through the registry manager so they
// are retried and tracked like the server's.
func cliManager(cfg *config.Config, b *backend) *services.RegistryManager {
	tracker := tracking.Multi{tracking.LogTracker{}, tracking.NewStoreTracker(b.tracking)}
	mgr := services.NewRegistryManager(b.access, nil, tracker, cfg.Engines)
	mgr.SetRetryPolicy(cfg.Remote.Retry)
	return mgr
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid database id %q", s)
	}
	return id, nil
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash to configure as server.api_key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := api.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
