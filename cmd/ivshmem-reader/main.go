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
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "ivshmem-reader",
	Short: "Guest-side Reader peer of the shared-memory IPC benchmark",
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

	obj, err := backing.OpenReader(cfg.DevicePath, cfg.RegionPath, int64(cfg.RegionSize))
	if err != nil {
		return fmt.Errorf("failed to open backing region: %w", err)
	}
	defer obj.Close()

	reg, err := region.New(obj.Bytes())
	if err != nil {
		return fmt.Errorf("failed to wrap backing region: %w", err)
	}

	r := harness.NewReader(reg, log, nil, nil)

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return serve(ctx, cfg, reg, r, log)
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infow("caught signal", "error", err)
		return err
	})

	return wg.Wait()
}

// serve pins (if requested), waits for the Writer's handshake, then serves
// messages until the Writer signals test_complete, the configured
// iteration cap is reached, or ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, reg *region.Region, r *harness.Reader, log *zap.SugaredLogger) error {
	if cfg.Pin {
		if _, err := pin.ToCPU(cfg.PinCPU); err != nil {
			return fmt.Errorf("failed to pin reader goroutine: %w", err)
		}
	}

	if err := r.AwaitHandshake(ctx); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	n := cfg.Iterations
	if cfg.Mode == config.ModeBandwidth {
		configured := make([]int, len(cfg.PayloadSizes))
		for i, s := range cfg.PayloadSizes {
			configured[i] = int(s)
		}
		sizes := harness.ResolveBandwidthSizes(configured, reg.PayloadCapacity())
		n *= len(sizes)
	}

	if err := r.Serve(ctx, n); err != nil {
		return fmt.Errorf("serve loop failed: %w", err)
	}

	log.Info("reader: run complete")
	return nil
}
