package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/pipeline"
)

var scheduleInterval int

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a fixed interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scheduleInterval > 0 {
			cfg.Schedule.IntervalMinutes = scheduleInterval
		}
		if err := cfg.Validate("schedule"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p := pipeline.FromConfig(cfg, st)

		runOnce := func() {
			if _, runErr := p.Run(ctx); runErr != nil {
				zap.L().Error("scheduled run failed", zap.Error(runErr))
			}
		}

		// First run happens immediately, then on the interval.
		runOnce()

		c := cron.New()
		spec := fmt.Sprintf("@every %dm", cfg.Schedule.IntervalMinutes)
		if _, err := c.AddFunc(spec, runOnce); err != nil {
			return eris.Wrapf(err, "schedule %s", spec)
		}

		zap.L().Info("scheduler started",
			zap.Int("interval_minutes", cfg.Schedule.IntervalMinutes),
		)
		c.Start()

		<-ctx.Done()
		zap.L().Info("scheduler stopping")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().IntVar(&scheduleInterval, "interval", 0, "minutes between runs (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}
