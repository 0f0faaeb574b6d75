package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/photonctl/pkg/session"
)

// wifiCmd groups the Wi-Fi provisioning commands
var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Configure the sensor's Wi-Fi connection",
}

var wifiScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the Wi-Fi networks the sensor can see",
	Long: `Connect to the sensor, ask it to scan for Wi-Fi networks and print the SSIDs
it reports. The network the sensor is joined to is marked with '*'.`,
	Args: cobra.NoArgs,
	RunE: runWifiScan,
}

var wifiProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Send Wi-Fi credentials to the sensor",
	Long: `Connect to the sensor, send it the SSID and password of a Wi-Fi network and
wait until it reports being joined to that network.

The password is prompted for when --password is not given and stdin is a terminal.`,
	Example: `  photonctl wifi provision --ssid Home
  photonctl wifi provision --ssid Guest --password ""`,
	Args: cobra.NoArgs,
	RunE: runWifiProvision,
}

var (
	wifiTimeout  time.Duration
	wifiSSID     string
	wifiPassword string
)

// readPassword prompts on the terminal. Tests replace it.
var readPassword = func(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Wi-Fi password: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

func init() {
	wifiCmd.PersistentFlags().DurationVarP(&wifiTimeout, "timeout", "t", 60*time.Second, "Give up after this long")

	wifiProvisionCmd.Flags().StringVar(&wifiSSID, "ssid", "", "Network name")
	wifiProvisionCmd.Flags().StringVar(&wifiPassword, "password", "", "Network password")
	_ = wifiProvisionCmd.MarkFlagRequired("ssid")

	wifiCmd.AddCommand(wifiScanCmd)
	wifiCmd.AddCommand(wifiProvisionCmd)
}

func wifiReady(st session.State) bool {
	return st.IsConnected() && st.CanConfigureWifi
}

func credentialsReady(st session.State) bool {
	return st.IsConnected() && st.CanSendCredentials
}

// wifiRun is a started backend that is ready for a Wi-Fi command.
type wifiRun struct {
	*backend
	ctx    context.Context
	cancel context.CancelFunc
	errCh  <-chan error
}

// startWifiCommand loads config, starts the backend and waits until ready holds.
func startWifiCommand(cmd *cobra.Command, ready func(session.State) bool) (*wifiRun, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := configureLogger(cmd, cfg)
	cmd.SilenceUsage = true

	b, err := newBackend(cmd, cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := commandContext(cmd, wifiTimeout)
	run := &wifiRun{backend: b, ctx: ctx, cancel: cancel, errCh: b.start(ctx)}
	if _, err := b.waitFor(ctx, run.errCh, ready); err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrSensorNotReady, wifiTimeout)
		}
		return nil, err
	}
	return run, nil
}

func runWifiScan(cmd *cobra.Command, _ []string) error {
	run, err := startWifiCommand(cmd, wifiReady)
	if err != nil {
		return err
	}
	defer run.cancel()

	// Every request advances the counter, so even a scan rejected on the spot
	// publishes a snapshot.
	base := run.State().WifiScanRequests
	st, err := run.request(run.ctx, run.errCh, run.StartWifiScan, func(st session.State) bool {
		return !st.IsConnected() || (st.WifiScanRequests > base && !st.ScanningWifi)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("wifi scan did not complete within %s", wifiTimeout)
		}
		return err
	}
	switch {
	case st.WifiScanError != "":
		return fmt.Errorf("%w: %s", ErrWifiScanFailed, st.WifiScanError)
	case !st.IsConnected():
		return fmt.Errorf("%w: %s", ErrWifiScanFailed, session.ErrConnectionLost)
	}
	return renderNetworks(cmd.OutOrStdout(), st)
}

func runWifiProvision(cmd *cobra.Command, _ []string) error {
	if wifiSSID == "" {
		return errors.New("--ssid must not be empty")
	}
	password := wifiPassword
	if !cmd.Flags().Changed("password") {
		var err error
		if password, err = readPassword(cmd); err != nil {
			return err
		}
	}

	run, err := startWifiCommand(cmd, credentialsReady)
	if err != nil {
		return err
	}
	defer run.cancel()

	ssid := wifiSSID
	_, err = run.request(run.ctx, run.errCh, func() { run.SendCredentials(ssid, password) }, func(st session.State) bool {
		return st.WifiConnected && st.WifiSSID == ssid
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w %q within %s", ErrProvisionTimeout, ssid, wifiTimeout)
		}
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sensor joined Wi-Fi network %q\n", ssid)
	return err
}
