// Command validator runs the epoch-driven reward pipeline: it loads
// configuration from the environment, wires the Chain Adapter, Vote
// Client, State Cache, and the D/E/F ingestors behind the Epoch Scheduler,
// then blocks until an interrupt signal requests a graceful stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YouWishh/oceans-subnet/core/chainadapter"
	"github.com/YouWishh/oceans-subnet/core/liquidityingest"
	"github.com/YouWishh/oceans-subnet/core/reward"
	"github.com/YouWishh/oceans-subnet/core/scheduler"
	"github.com/YouWishh/oceans-subnet/core/statecache"
	"github.com/YouWishh/oceans-subnet/core/voteclient"
	"github.com/YouWishh/oceans-subnet/core/voteingest"
	"github.com/YouWishh/oceans-subnet/internal/config"
	"github.com/YouWishh/oceans-subnet/internal/httpstatus"
	"github.com/YouWishh/oceans-subnet/internal/metrics"
	"github.com/YouWishh/oceans-subnet/internal/obslog"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "validator",
		Short: "run the liquidity-and-vote weighted subnet validator",
		RunE:  runValidator,
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runValidator(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg := obslog.New(cfg.LogLevel, cfg.JSONLogs)
	log := obslog.Component(lg, "validator")
	log.WithField("mainnet", cfg.IsMainnet()).Info("starting validator")

	store, err := statecache.Open(cfg.DBURI)
	if err != nil {
		return fmt.Errorf("open state cache: %w", err)
	}
	defer store.Close()
	cache := statecache.New(store)

	chain := chainadapter.NewSubtensorAdapter(cfg.SubtensorRPC, obslog.Component(lg, "chainadapter"))
	defer chain.Close()

	client := voteclient.NewHTTPVoteClient(cfg.VoteAPIEndpoint, cfg.ActiveSubnets, obslog.Component(lg, "voteclient"))

	votes := voteingest.New(client, cache, obslog.Component(lg, "voteingest"))
	liq := liquidityingest.New(chain, cache, cfg.SourceNetUID, cfg.ActiveSubnets, cfg.MaxConcurrency, obslog.Component(lg, "liquidityingest"))
	calc := reward.New(cache, obslog.Component(lg, "reward"))

	status := httpstatus.NewServer()
	reg := metrics.New()

	sched := scheduler.New(chain, votes, liq, calc, scheduler.Config{
		Subnet:                cfg.DefaultNetUID,
		WeightsVersion:        cfg.WeightsVersion,
		NominalBlockTime:      cfg.NominalBlockTime,
		StatusLogIntervalBlks: cfg.StatusLogIntervalBlks,
	}, obslog.Component(lg, "scheduler"), func(s scheduler.Status) {
		reg.EpochIndex.Set(float64(s.EpochIndex))
		if s.State != scheduler.StateBootstrap && s.State != scheduler.StateEpochHead {
			return
		}
		status.Update(httpstatusFromSchedulerStatus(s))
		fields := map[string]interface{}{
			"state":        s.State.String(),
			"epoch_index":  s.EpochIndex,
			"bootstrapped": s.Bootstrapped,
		}
		if s.LastError != nil {
			reg.SubmissionFailed.Inc()
			log.WithFields(fields).WithError(s.LastError).Warn("epoch tick completed with error")
			return
		}
		reg.SubmissionOK.Inc()
		reg.VoteSnapshots.Add(float64(s.VoteSnapshotsPersisted))
		reg.LiquiditySnaps.Add(float64(s.LiquiditySnapshotsPersisted))
		reg.RewardVectorSum.Set(s.RewardVectorSum)
		reg.PipelineSeconds.Set(s.TickDuration.Seconds())
		log.WithFields(fields).Info("epoch tick completed")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	go func() {
		if err := reg.Serve(ctx, fmt.Sprintf(":%d", cfg.PrometheusPort)); err != nil {
			log.WithError(err).Warn("metrics server exited")
		}
	}()
	go func() {
		if err := status.Serve(ctx, fmt.Sprintf(":%d", cfg.PrometheusPort+1)); err != nil {
			log.WithError(err).Warn("status server exited")
		}
	}()

	runErr := sched.Run(ctx)
	if runErr != nil && runErr != context.Canceled {
		log.WithError(runErr).Error("scheduler exited with error")
		return runErr
	}
	log.Info("validator shut down cleanly")
	return nil
}

func httpstatusFromSchedulerStatus(s scheduler.Status) httpstatus.Status {
	status := httpstatus.Status{
		Bootstrapped: s.Bootstrapped,
		EpochIndex:   s.EpochIndex,
		LastTickAt:   time.Now(),
	}
	if s.LastError != nil {
		status.LastError = s.LastError.Error()
	}
	return status
}
