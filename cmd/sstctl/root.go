package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "sstctl",
	Short: "CLI for the SST registry server",
	Long: `sstctl operates the SST registry: it inspects documents, launches
snapshot-repair jobs, browses the audit trail and reads the code counters.

Settings come from flags, SST_* environment variables or ~/.sstctl.yaml,
in that order of precedence.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringP("company", "c", "", "Company slug for multi-company servers")
	rootCmd.PersistentFlags().String("user", "", "Acting user sent as X-Remote-User")

	for _, key := range []string{"server", "output", "company", "user"} {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(countersCmd)
}

func initConfig() {
	viper.SetConfigName(".sstctl")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.SetEnvPrefix("SST")
	viper.AutomaticEnv()
	// Missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func serverURL() string { return viper.GetString("server") }
func outputFmt() string { return viper.GetString("output") }
func company() string   { return viper.GetString("company") }
func actingUser() string {
	return viper.GetString("user")
}
