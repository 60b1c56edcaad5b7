package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gobldc/core"
	"gobldc/sim"
)

var (
	simulateDurationFlag  time.Duration
	simulateTelemetryFlag string
	simulateStallFlag     time.Duration
	simulateLoadFlag      float64
)

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().DurationVar(&simulateDurationFlag, "duration", 0, "simulated time, from the config when 0")
	simulateCmd.Flags().StringVar(&simulateTelemetryFlag, "telemetry", "", "write telemetry frames to this file")
	simulateCmd.Flags().DurationVar(&simulateStallFlag, "stall-at", 0, "lock the rotor at this simulated time")
	simulateCmd.Flags().Float64Var(&simulateLoadFlag, "load", 0, "load factor, from the config when 0")
}

func runSimulate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if simulateDurationFlag > 0 {
		cfg.Sim.Duration = simulateDurationFlag
	}
	if simulateStallFlag > 0 {
		cfg.Sim.StallAt = simulateStallFlag
	}
	if simulateLoadFlag > 0 {
		cfg.Sim.Load = simulateLoadFlag
	}

	var telemetry io.Writer
	if simulateTelemetryFlag != "" {
		f, err := os.Create(simulateTelemetryFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		telemetry = f
	}

	s, err := sim.New(cfg, telemetry)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := s.Run(ctx, func(st *core.Status) {
		log.WithFields(log.Fields{
			"seq":      st.Seq,
			"state":    st.State.String(),
			"throttle": st.Throttle,
			"speed":    st.Speed,
			"period":   st.Period,
			"error":    st.TimingError,
			"vbatt":    st.Battery,
		}).Debug("status")
	})
	if err != nil {
		return err
	}

	for _, tr := range res.Transitions {
		fmt.Printf("%10s  %-13s -> %s\n", tr.At.Round(time.Millisecond), tr.From, tr.To)
	}
	pwm := s.Motor().Params().PWMPeriodCounts
	fmt.Printf("final: state=%s period=%d speed=%d (%.1f%%) natural=%d faults=%#x\n",
		res.Final.State, res.Final.Period, res.Final.Speed, core.CountsToPercent(res.Final.Speed, pwm),
		s.Plant().NaturalPeriod(), uint8(res.Faults))
	if res.Faults != 0 {
		return fmt.Errorf("controller faulted: %#x", uint8(res.Faults))
	}
	return nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run the controller against a simulated motor",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runSimulate(); err != nil {
			log.Fatal(err)
		}
	},
}
