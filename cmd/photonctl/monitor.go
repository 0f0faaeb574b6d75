package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/photonctl/internal/groutine"
	"github.com/srg/photonctl/internal/publish"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show live sensor status and light readings",
	Long: `Connect to the Photon sensor and print a line whenever its status changes:
connection phase, light level and Wi-Fi state.

When mqtt.broker is configured, every light sample and status change is also
published under <topic_prefix>/<sensor id>/{status,light,wifi}.`,
	Example: `  photonctl monitor
  photonctl monitor --format json --duration 1m
  photonctl monitor --fixture`,
	RunE: runMonitor,
}

var (
	monitorDuration time.Duration
	monitorFormat   string
	monitorNoColor  bool
)

func init() {
	monitorCmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "f", "text", "Output format (text, json)")
	monitorCmd.Flags().BoolVar(&monitorNoColor, "no-color", false, "Disable colored output")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if monitorFormat != "text" && monitorFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [text json]", monitorFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := configureLogger(cmd, cfg)

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	b, err := newBackend(cmd, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, monitorDuration)
	defer cancel()

	// Subscribe before starting so the first snapshots are not missed.
	sub := b.Subscribe(cfg.Session.SubscriptionBuffer)
	defer sub.Close()

	if cfg.MQTT.Enabled() {
		client, err := startForwarding(ctx, b, logger)
		if err != nil {
			return err
		}
		defer client.Disconnect()
	}

	errCh := b.start(ctx)
	r := newRenderer(cmd.OutOrStdout(), monitorFormat, !monitorNoColor && isTerminal(cmd))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case st, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := r.Render(st); err != nil {
				return err
			}
		}
	}
}

// startForwarding connects to the configured broker and forwards every snapshot.
func startForwarding(ctx context.Context, b *backend, logger *logrus.Logger) (*publish.Client, error) {
	mqttCfg := b.cfg.MQTT
	client := publish.NewClient(mqttCfg, "photonctl-"+uuid.NewString()[:8], logger)

	connectCtx, cancel := context.WithTimeout(ctx, mqttCfg.ConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", mqttCfg.Broker, err)
	}

	fwd := publish.NewForwarder(client, mqttCfg.TopicPrefix, byte(mqttCfg.QoS), logger)
	sub := b.Subscribe(b.cfg.Session.SubscriptionBuffer)
	groutine.Go(ctx, logger, "mqtt-forwarder", func(ctx context.Context) {
		_ = fwd.Run(ctx, sub)
	})
	return client, nil
}

// commandContext is cancelled by Ctrl+C, SIGTERM or after d when d is positive.
func commandContext(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
