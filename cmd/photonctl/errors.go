package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/publish"
)

// Command-level errors
var (
	// ErrSensorNotReady means the sensor was not connected with its Wi-Fi characteristics
	// resolved before the command timed out.
	ErrSensorNotReady = errors.New("sensor not ready")

	// ErrProvisionTimeout means the sensor never reported joining the requested network.
	ErrProvisionTimeout = errors.New("sensor did not join the network")

	// ErrWifiScanFailed means the sensor rejected or dropped a Wi-Fi scan.
	ErrWifiScanFailed = errors.New("wifi scan failed")
)

// FormatUserError turns an error chain into a one-line hint for the terminal.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case device.IsConnectionState(err, device.BluetoothOff):
		return "Bluetooth is turned off or unavailable; enable it and try again"
	case errors.Is(err, device.ErrUnsupported):
		return "Bluetooth is not supported on this platform; use --fixture to run with a simulated sensor"
	case errors.Is(err, ErrSensorNotReady):
		return fmt.Sprintf("%v: make sure the Photon is powered and in range", err)
	case errors.Is(err, ErrProvisionTimeout):
		return fmt.Sprintf("%v: check the SSID and password", err)
	case errors.Is(err, ErrWifiScanFailed):
		return fmt.Sprintf("%v: try again once the sensor is connected", err)
	case errors.Is(err, publish.ErrNotConnected):
		return fmt.Sprintf("%v: check the mqtt.broker setting", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return err.Error()
	}
}
