// Command admissions ingests university documents, answers questions from
// them and recommends degree programs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	admissions "github.com/hubenschmidt/go-admissions"
	"github.com/hubenschmidt/go-admissions/config"
)

var (
	configPath string
	envFile    string

	// service is opened before every command that needs it.
	service *admissions.Service
)

var rootCmd = &cobra.Command{
	Use:   "admissions",
	Short: "University admissions assistant",
	Long: `Ingests admission documents into a retrieval index, answers questions
from them and scores student profiles against the program catalog.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		getEnvOr("ADMISSIONS_CONFIG", "admissions.yaml"), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withService opens the service for the duration of run.
func withService(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		svc, err := admissions.New(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		service = svc
		defer func() {
			_ = svc.Close()
			service = nil
		}()

		return run(cmd, args)
	}
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
