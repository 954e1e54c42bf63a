package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hugoferreira/ivshmem-analysis/common/go/logging"
	"github.com/hugoferreira/ivshmem-analysis/common/go/xcmd"
	"github.com/hugoferreira/ivshmem-analysis/internal/backing"
	"github.com/hugoferreira/ivshmem-analysis/internal/config"
	"github.com/hugoferreira/ivshmem-analysis/internal/harness"
	"github.com/hugoferreira/ivshmem-analysis/internal/pin"
	"github.com/hugoferreira/ivshmem-analysis/internal/record"
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "ivshmem-writer",
	Short: "Host-side Writer peer of the shared-memory IPC benchmark",
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			var interrupted xcmd.Interrupted
			if errors.As(err, &interrupted) {
				return
			}

			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	obj, err := backing.OpenWriter(cfg.RegionPath, int64(cfg.RegionSize))
	if err != nil {
		return fmt.Errorf("failed to open backing region: %w", err)
	}
	defer obj.Close()

	reg, err := region.New(obj.Bytes())
	if err != nil {
		return fmt.Errorf("failed to wrap backing region: %w", err)
	}

	w := harness.NewWriter(reg, log, nil)

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return runSuite(ctx, cfg, reg, w, log)
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infow("caught signal", "error", err)
		return err
	})

	return wg.Wait()
}

// runSuite pins (if requested), brings the region up, runs the configured
// suite to completion, and shuts the region down, logging a final
// success/failure tally (spec §7's "per-iteration records are emitted
// regardless of success so downstream aggregation can see failure rates").
func runSuite(ctx context.Context, cfg *config.Config, reg *region.Region, w *harness.Writer, log *zap.SugaredLogger) error {
	if cfg.Pin {
		if _, err := pin.ToCPU(cfg.PinCPU); err != nil {
			return fmt.Errorf("failed to pin writer goroutine: %w", err)
		}
	}

	w.Init()
	defer w.Shutdown()

	var records []record.Record
	var err error
	switch cfg.Mode {
	case config.ModeBandwidth:
		configured := make([]int, len(cfg.PayloadSizes))
		for i, s := range cfg.PayloadSizes {
			configured[i] = int(s)
		}
		sizes := harness.ResolveBandwidthSizes(configured, reg.PayloadCapacity())
		records, err = w.RunBandwidthSuite(ctx, cfg.Iterations, sizes)
	default:
		records, err = w.RunLatencySuite(ctx, cfg.Iterations)
	}
	if err != nil {
		return fmt.Errorf("suite run failed: %w", err)
	}

	var ok int
	for _, r := range records {
		if r.Success {
			ok++
		}
	}
	log.Infow("suite complete", "iterations", len(records), "successful", ok)
	return nil
}
