package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/the-harvest-must-flow/internal/cli"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/storage"
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage database snapshots",
		Long: `Create, list, restore and delete copies of the SQLite database.

An automatic snapshot is taken before every import; the newest five are kept.`,
	}

	create := &cobra.Command{
		Use:   "create [ID]",
		Short: "Snapshot the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetString("description")
			return withSnapshots(cmd.Context(), func(m *storage.SnapshotManager) error {
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				info, err := m.Create(cmd.Context(), id, desc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created snapshot %s (%s)", info.ID, formatSize(info.FileSize))))
				return nil
			})
		},
	}
	create.Flags().String("description", "", "Note stored with the snapshot")

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd.Context(), func(m *storage.SnapshotManager) error {
				snapshots, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(snapshots) == 0 {
					fmt.Fprintln(out, cli.FormatInfo("No snapshots"))
					return nil
				}
				rows := make([][]string, len(snapshots))
				for i, s := range snapshots {
					rows[i] = []string{
						s.ID,
						s.CreatedAt.Format("2006-01-02 15:04"),
						formatSize(s.FileSize),
						formatCounts(s.RowCounts),
						s.Description,
					}
				}
				fmt.Fprint(out, cli.RenderTable([]string{"ID", "Created", "Size", "Rows", "Description"}, rows))
				return nil
			})
		},
	}

	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Replace the database with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd.Context(), func(m *storage.SnapshotManager) error {
				if err := m.Restore(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored snapshot "+args[0]))
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd.Context(), func(m *storage.SnapshotManager) error {
				if err := m.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted snapshot "+args[0]))
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, restore, del)
	return cmd
}

func withSnapshots(ctx context.Context, fn func(*storage.SnapshotManager) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sqlite, ok := a.store.(*storage.SQLiteStorage)
	if !ok {
		return common.NewUserError("snapshots are only available for sqlite databases", nil)
	}
	m, err := sqlite.Snapshots()
	if err != nil {
		return err
	}
	return fn(m)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatCounts renders "daily_trans=120 products=4", skipping empty tables.
func formatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, counts[name])
	}
	return strings.Join(parts, " ")
}
