// coachctl computes community health metrics for a single repository and prints them as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alliefeldman/climatecoachbot/internal/config"
	"github.com/alliefeldman/climatecoachbot/internal/db"
	"github.com/alliefeldman/climatecoachbot/internal/engine"
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/utils"
)

var (
	repoRef string
	period  string
	offset  int
	persist bool
)

var rootCmd = &cobra.Command{
	Use:           "coachctl",
	Short:         "Community health metrics for GitHub repositories",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute one metrics snapshot and print it as JSON",
	Example: `  coachctl calculate --repo octo/hello --period week --offset 0
  coachctl calculate --repo https://github.com/octo/hello --period day --offset 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, repo, err := utils.ParseRepository(repoRef)
		if err != nil {
			return err
		}

		service, cleanup, err := setup(false)
		if err != nil {
			return err
		}
		defer cleanup()

		snapshot, err := service.Calculate(cmd.Context(), owner, repo, models.Period(period), offset)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snapshot)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute the last and current snapshots with their trend and print them as JSON",
	Example: `  coachctl report --repo octo/hello
  coachctl report --repo octo/hello --persist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, repo, err := utils.ParseRepository(repoRef)
		if err != nil {
			return err
		}

		service, cleanup, err := setup(persist)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := service.RunReport(cmd.Context(), owner, repo)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoRef, "repo", "", "repository as owner/name or GitHub URL")
	_ = rootCmd.MarkPersistentFlagRequired("repo")

	calculateCmd.Flags().StringVar(&period, "period", string(models.PeriodWeek), "window length: day or week")
	calculateCmd.Flags().IntVar(&offset, "offset", 0, "number of periods between the window end and now")

	reportCmd.Flags().BoolVar(&persist, "persist", false, "store the report in DB_CONNECTION_STRING")

	rootCmd.AddCommand(calculateCmd, reportCmd)
}

// setup loads configuration and assembles the service. Logs go to stderr so
// stdout carries only JSON.
func setup(withStore bool) (*engine.Service, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	logger.SetOutput(os.Stderr)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	cleanup := func() {}
	var store db.ReportStore
	if withStore {
		if cfg.DBConnectionString == "" {
			return nil, nil, fmt.Errorf("--persist requires DB_CONNECTION_STRING")
		}
		pg, err := db.NewPostgresStore(cfg.DBConnectionString, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(); err != nil {
			pg.Close()
			return nil, nil, err
		}
		store = pg
		cleanup = func() { pg.Close() }
	}

	service, err := engine.NewFromConfig(cfg, store, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return service, cleanup, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
