package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	workdir string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rego",
	Short: "Managed resource lifecycle demo and server",
	Long:  `rego manages file and connection handles with deterministic, exactly-once release and a live-instance registry.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rego/config)")
	rootCmd.PersistentFlags().StringVar(&workdir, "workdir", "", "directory for managed files (default from config or current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".rego"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("workdir", "REGO_WORKDIR")

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetString("workdir") != "" && workdir == "" {
			workdir = viper.GetString("workdir")
		}
	}
}

func getWorkdir() string {
	if workdir != "" {
		return workdir
	}
	if dir := viper.GetString("workdir"); dir != "" {
		return dir
	}
	return "."
}

func newLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
