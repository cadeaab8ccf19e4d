package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "herdsync",
	Short: "Offline-first sync engine for livestock records",
	Long: `herdsync keeps a local SQLite cache of the herd (animals, health
events, tasks, documents) and reconciles offline edits with the remote
store through a durable mutation queue.

Configuration is resolved flags > environment (HERDSYNC_*) > config
file, e.g. HERDSYNC_API_TOKEN overrides api.token from the file.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default herdsync.yaml in . or $HOME/.herdsync)")
	rootCmd.PersistentFlags().String("data-dir", "./data", "directory for the local cache database")
	rootCmd.PersistentFlags().String("api-url", "", "base URL of the remote store")
	rootCmd.PersistentFlags().String("api-token", "", "bearer token for the remote store")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text|json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path; rotated when set")

	must(viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir")))
	must(viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api-url")))
	must(viper.BindPFlag("api.token", rootCmd.PersistentFlags().Lookup("api-token")))
	must(viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")))
	must(viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")))
	must(viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file")))

	viper.SetDefault("listen.addr", "127.0.0.1:8090")
	viper.SetDefault("sync.retrigger_delay", "2s")
	viper.SetDefault("connectivity.probe_interval", "30s")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("herdsync")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.herdsync")
	}

	viper.SetEnvPrefix("HERDSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Running without a config file is fine; everything can come
		// from flags and environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("config:", err)
		}
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
