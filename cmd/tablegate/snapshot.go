package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/tablegate/internal/config"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/schema"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage shared schema snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save [conn...]",
	Short: "Introspect connections and store their snapshots",
	RunE:  runSnapshotSave,
}

var snapshotDropCmd = &cobra.Command{
	Use:   "drop <conn>...",
	Short: "Delete stored snapshots so servers re-introspect",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSnapshotDrop,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connections with a stored snapshot (objectstore backend)",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotDropCmd, snapshotListCmd)
}

// openStore loads the config and connects its snapshot backend, which must
// not be the in-memory one.
func openStore(ctx context.Context) (*app, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	if a.cfg.SchemaCache.Backend == config.BackendMemory {
		a.Close()
		return nil, errs.New(errs.ErrKindInvalidInput, "schema_cache.backend is memory; snapshots need redis or objectstore")
	}
	if err := a.openSnapshotStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openConnections(ctx, args...); err != nil {
		return err
	}

	for _, id := range a.reg.IDs() {
		conn, err := a.reg.Get(id)
		if err != nil {
			return err
		}
		r, err := conn.Reader()
		if err != nil {
			return err
		}
		m, err := schema.Introspect(ctx, r)
		if err != nil {
			return err
		}
		if err := a.store.Save(ctx, id, m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tables\n", id, len(m))
	}
	return nil
}

func runSnapshotDrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range args {
		if err := a.store.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: dropped\n", id)
	}
	return nil
}

type snapshotLister interface {
	List(ctx context.Context) ([]string, error)
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	l, ok := a.store.(snapshotLister)
	if !ok {
		return errs.Newf(errs.ErrKindInvalidInput, "the %s backend cannot list snapshots", a.cfg.SchemaCache.Backend)
	}
	ids, err := l.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
