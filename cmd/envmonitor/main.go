package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/monitor"
)

var (
	initialDelayFlag time.Duration
	maxDelayFlag     time.Duration
	maxRetriesFlag   int
	maxFrameFlag     int64
	logLevelFlag     string
	logFormatFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "envmonitor <ws-url>",
	Short: "Print telemetry streamed by an envstream node",
	Long: `Connect to the streaming endpoint of an envstream node and print every
sensor snapshot and diagnostic entry it sends. The connection is re-established
with exponential backoff when it drops.

Examples:
  envmonitor ws://192.168.1.40:8080/ws
  envmonitor --max-retries 5 ws://localhost:8080/ws`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := sl.SetupLogger(logLevelFlag, logFormatFlag)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := monitor.New(log, cmd.OutOrStdout(), monitor.Options{
			URL:          args[0],
			InitialDelay: initialDelayFlag,
			MaxDelay:     maxDelayFlag,
			MaxRetries:   maxRetriesFlag,
			MaxFrameSize: maxFrameFlag,
		})
		return m.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().DurationVar(&initialDelayFlag, "initial-delay", time.Second, "delay before the first reconnect")
	rootCmd.Flags().DurationVar(&maxDelayFlag, "max-delay", 30*time.Second, "upper bound for the reconnect delay")
	rootCmd.Flags().IntVar(&maxRetriesFlag, "max-retries", 0, "give up after this many consecutive failures (0 retries forever)")
	rootCmd.Flags().Int64Var(&maxFrameFlag, "max-frame-size", 1<<20, "largest accepted message in bytes")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormatFlag, "log-format", "text", "log format (text, json)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
