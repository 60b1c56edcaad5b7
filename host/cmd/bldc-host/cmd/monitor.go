package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gobldc/host/config"
	"gobldc/host/monitor"
	"gobldc/host/serial"
)

var (
	monitorDeviceFlag string
	monitorBaudFlag   int
	monitorListenFlag string
	monitorReplayFlag string
	monitorNoMetrics  bool
)

func init() {
	RootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorDeviceFlag, "device", "d", "", "serial device of the ESC telemetry link")
	monitorCmd.Flags().IntVar(&monitorBaudFlag, "baud", 0, "baud rate, from the config when 0")
	monitorCmd.Flags().StringVar(&monitorListenFlag, "listen", "", "metrics listen address, from the config when empty")
	monitorCmd.Flags().StringVar(&monitorReplayFlag, "replay", "", "read telemetry from a file written by simulate instead of a device")
	monitorCmd.Flags().BoolVar(&monitorNoMetrics, "no-metrics", false, "do not serve Prometheus metrics")
}

func openTelemetry(cfg *config.Config) (io.ReadCloser, error) {
	if monitorReplayFlag != "" {
		return os.Open(monitorReplayFlag)
	}
	sc := cfg.Serial
	if monitorDeviceFlag != "" {
		sc.Device = monitorDeviceFlag
	}
	if monitorBaudFlag != 0 {
		sc.Baud = monitorBaudFlag
	}
	return serial.Open(&sc)
}

func runMonitor() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port, err := openTelemetry(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *monitor.Metrics
	serveErr := make(chan error, 1)
	if !monitorNoMetrics {
		metrics = monitor.NewMetrics()
		listen := cfg.Metrics.Listen
		if monitorListenFlag != "" {
			listen = monitorListenFlag
		}
		go func() {
			serveErr <- monitor.Serve(ctx, listen, cfg.Metrics.Path, metrics)
		}()
	}

	mon := monitor.New(port, metrics)
	defer mon.Close()

	runErr := make(chan error, 1)
	go func() {
		runErr <- mon.Run(ctx)
	}()

	select {
	case err = <-runErr:
	case err = <-serveErr:
		stop()
		<-runErr
	}

	statuses, events := mon.Counts()
	stats := mon.Stats()
	log.WithFields(log.Fields{
		"statuses":   statuses,
		"events":     events,
		"crc_errors": stats.CRCErrors,
		"resyncs":    stats.Resyncs,
		"seq_gaps":   stats.SeqGaps,
	}).Info("monitor stopped")
	if last, ok := mon.Last(); ok {
		fmt.Printf("last status: state=%s period=%d speed=%d vbatt=%d faults=%#x\n",
			last.State, last.Period, last.Speed, last.Battery, uint8(last.Faults))
	}
	return err
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "decode ESC telemetry and export it as Prometheus metrics",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runMonitor(); err != nil {
			log.Fatal(err)
		}
	},
}
