package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/runner"
	srv "github.com/mohammad-safakhou/deepresearch/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "deepresearch"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("DEEPRESEARCH_HTTP_ADDR")
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var mode string
	var scenarioID string
	var research = &cobra.Command{
		Use:   "research [query]",
		Short: "Run one research query from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			if scenarioID != "" {
				s, ok := config.ScenarioByID(scenarioID)
				if !ok {
					return fmt.Errorf("unknown scenario: %s", scenarioID)
				}
				query = s.Query
			}
			if query == "" {
				return fmt.Errorf("a query or --scenario is required")
			}
			llm, err := provider.NewOpenAIProvider(cfg.LLM)
			if err != nil {
				return err
			}
			// CLI runs skip persistence: no store, no redis
			rn := runner.New(cfg, llm, nil, nil, telemetry.New())
			res, err := rn.Execute(context.Background(), uuid.NewString(), query, mode)
			if err != nil {
				return err
			}
			fmt.Println(res.Report)
			return nil
		},
	}
	research.Flags().StringVar(&mode, "mode", runner.ModeDeepResearch, "deep_research or baseline")
	research.Flags().StringVar(&scenarioID, "scenario", "", "run a curated demo scenario by id")

	var scenarios = &cobra.Command{
		Use:   "scenarios",
		Short: "List curated demo scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range config.Scenarios() {
				fmt.Printf("%-24s [%s] %s\n", s.ID, s.Category, s.Name)
			}
			return nil
		},
	}

	root.AddCommand(serve, migrate, research, scenarios)
	_ = root.Execute()
}
