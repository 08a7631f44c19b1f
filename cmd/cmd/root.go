// Package cmd wires the harvester's command surface: ingest, sources, read,
// sqlite, query, and schedule.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"harvester/internal/httpx"
	"harvester/internal/ingest"
	"harvester/internal/logger"
	"harvester/internal/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Multi-source content harvester",
	Long: `harvester pulls articles, aggregator stories, and release notes from
configured sources into a local content-addressed store, keeps an optional
SQLite query index, and serves keyword, source, and archive-date queries.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .harvester.yaml)")
}

func initConfig() {
	// .env first so viper's env binding sees it.
	godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".harvester")
	}

	viper.SetEnvPrefix("HARVEST")
	viper.AutomaticEnv()

	viper.SetDefault("data.root", storage.DefaultDataRoot)
	viper.SetDefault("http.timeout_seconds", 20)
	viper.SetDefault("ingest.throttle_ms", 0)
	viper.SetDefault("ingest.localize_assets", false)

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	}

	logger.Init()
}

func dataRoot() string {
	if env := os.Getenv("HARVEST_DATA_ROOT"); env != "" {
		return env
	}
	return viper.GetString("data.root")
}

func newStorage() *storage.Storage {
	return storage.New(dataRoot())
}

func ingestOptions() ingest.Options {
	return ingest.Options{
		Storage:        newStorage(),
		Client:         httpx.New(time.Duration(viper.GetInt("http.timeout_seconds")) * time.Second),
		Throttle:       time.Duration(viper.GetInt("ingest.throttle_ms")) * time.Millisecond,
		LocalizeAssets: viper.GetBool("ingest.localize_assets"),
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("Failed to encode output", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
