package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "debateradar",
		Short:         "Pick a daily debate topic from what is trending across platforms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(collectCmd())
	root.AddCommand(rankCmd())
	root.AddCommand(topicsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func collectCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run source adapters and print item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to collect (e.g., reddit,trends,youtube)")
	return cmd
}

func rankCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Collect and print the ranked candidate list without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "max candidates to show (default: ranking.top_n)")
	return cmd
}

func topicsCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Show previously selected topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopics(cmd.Context(), jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 14, "max topics to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: server.port)")
	return cmd
}

func runCmd() *cobra.Command {
	var (
		port int
		once bool
		date string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if once {
				return runOnce(cmd.Context(), date)
			}
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: server.port)")
	cmd.Flags().BoolVar(&once, "once", false, "run the pipeline once and exit")
	cmd.Flags().StringVar(&date, "date", "", "date to select a topic for with --once (YYYY-MM-DD, default: today)")
	return cmd
}
