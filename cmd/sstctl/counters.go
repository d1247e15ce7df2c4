package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigeso/sst-registry/pkg/db"
	"github.com/sigeso/sst-registry/pkg/sequence"
)

// countersCmd talks to the database directly instead of the HTTP API: code
// counters are operator-facing state that must be inspectable even when the
// server is down.
var countersCmd = &cobra.Command{
	Use:   "contadores",
	Short: "Show the document code counters for a company",
	RunE:  runCounters,
}

func init() {
	countersCmd.Flags().String("db-type", "", "Database type (postgres, mysql or sqlite)")
	countersCmd.Flags().String("db-dsn", "", "Database connection string")
	_ = viper.BindPFlag("db-type", countersCmd.Flags().Lookup("db-type"))
	_ = viper.BindPFlag("db-dsn", countersCmd.Flags().Lookup("db-dsn"))
}

func runCounters(cmd *cobra.Command, args []string) error {
	cfg := db.FromEnv()
	if v := viper.GetString("db-type"); v != "" {
		cfg.Type = v
	}
	if v := viper.GetString("db-dsn"); v != "" {
		cfg.DSN = v
	}

	gormDB, err := db.Connect(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	comp := company()
	if comp == "" {
		comp = "default"
	}

	seq := sequence.New(gormDB)
	counters, err := seq.Scopes(comp)
	if err != nil {
		return err
	}

	if outputFmt() != "table" {
		return printOutput(counters)
	}

	rows := make([][]string, 0, len(counters))
	for _, c := range counters {
		rows = append(rows, []string{
			c.DocType,
			strconv.Itoa(c.Year),
			strconv.Itoa(c.LastSeq),
			sequence.Format(c.DocType, c.Year, c.LastSeq),
		})
	}
	printTable([]string{"Tipo", "Año", "Contador", "Ultimo codigo"}, rows)
	return nil
}
