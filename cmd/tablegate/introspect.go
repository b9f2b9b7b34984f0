package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/schema"
)

var (
	introspectFormat string
	introspectTable  string
)

var introspectCmd = &cobra.Command{
	Use:   "introspect <conn>",
	Short: "Print the normalized schema of one connection",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntrospect,
}

func init() {
	introspectCmd.Flags().StringVarP(&introspectFormat, "output", "o", "yaml", "output format: yaml or json")
	introspectCmd.Flags().StringVarP(&introspectTable, "table", "t", "", "print only this table")
}

func runIntrospect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openConnections(ctx, args[0]); err != nil {
		return err
	}
	conn, err := a.reg.Get(args[0])
	if err != nil {
		return err
	}
	r, err := conn.Reader()
	if err != nil {
		return err
	}

	start := time.Now()
	m, err := schema.Introspect(ctx, r)
	if err != nil {
		return err
	}
	a.log.InfoWith("schema introspected", map[string]any{
		"conn":     conn.ID,
		"tables":   len(m),
		"duration": time.Since(start).String(),
	})

	var out any = m
	if introspectTable != "" {
		ts, ok := m.Table(introspectTable)
		if !ok {
			return errs.Newf(errs.ErrKindNotFound, "table %q not found in %q", introspectTable, conn.ID)
		}
		out = ts
	}
	return printSchema(cmd.OutOrStdout(), introspectFormat, out)
}

func printSchema(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}
