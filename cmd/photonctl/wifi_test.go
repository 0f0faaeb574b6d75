package main

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/schema"
	"github.com/srg/photonctl/internal/testutils"
)

type WifiTestSuite struct {
	CommandTestSuite
}

func (s *WifiTestSuite) TestScanListsNetworks() {
	// GOAL: Verify wifi scan waits for the sensor, triggers a scan and prints the result
	//
	// TEST SCENARIO: fixture connects → scan reports three networks → one SSID per line

	out, _, err := s.ExecuteCommand("wifi", "scan", "--timeout", "2s")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, "  Home\n  Office\n  Guest\n")
}

func (s *WifiTestSuite) TestScanWithNoNetworks() {
	s.FixtureOptions.Networks = []string{}

	out, _, err := s.ExecuteCommand("wifi", "scan", "--timeout", "2s")
	s.Require().NoError(err)
	s.Equal("No Wi-Fi networks found\n", out)
}

func (s *WifiTestSuite) TestScanTimesOutWithoutSensor() {
	// GOAL: Verify a sensor that never connects yields ErrSensorNotReady instead of hanging
	//
	// TEST SCENARIO: backend never scans → timeout elapses → ErrSensorNotReady

	s.Run = func(*backend) func(context.Context) error {
		return func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}
	}

	_, _, err := s.ExecuteCommand("wifi", "scan", "--timeout", "100ms")
	s.Require().ErrorIs(err, ErrSensorNotReady)
	s.Contains(FormatUserError(err), "powered and in range")
}

func (s *WifiTestSuite) TestScanFailsFastWhenCommandRejected() {
	// GOAL: Verify a scan the radio refuses is reported at once instead of waiting out --timeout
	//
	// TEST SCENARIO: live session over a radio that rejects writes → wifi scan → ErrWifiScanFailed well before 30s

	radio := testutils.NewFakeRadio()
	radio.FailOn(testutils.OpWrite, device.ErrNotConnected)
	s.UseRadio(radio)

	start := time.Now()
	_, _, err := s.ExecuteCommand("wifi", "scan", "--timeout", "30s")
	s.Require().ErrorIs(err, ErrWifiScanFailed)
	s.Contains(err.Error(), device.ErrNotConnected.Error())
	s.Less(time.Since(start), 10*time.Second, "MUST NOT wait for the timeout")
	s.Contains(FormatUserError(err), "try again")
}

func (s *WifiTestSuite) TestScanOverLiveSession() {
	radio := testutils.NewFakeRadio()
	s.UseRadio(radio)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sensor := testutils.PhotonProfile().Build()
		deadline := time.Now().Add(5 * time.Second)
		for len(radio.Calls(testutils.OpWrite)) == 0 {
			if time.Now().After(deadline) {
				return
			}
			time.Sleep(time.Millisecond)
		}
		radio.Emit(device.Notified{
			Peripheral:     sensor.Peripheral,
			Characteristic: sensor.Characteristic(schema.WifiSSIDsUUID),
			Value:          []byte("Home,Lab"),
		})
	}()

	out, _, err := s.ExecuteCommand("wifi", "scan", "--timeout", "5s")
	<-done
	s.Require().NoError(err)
	s.Equal("  Home\n  Lab\n", out)
}

func (s *WifiTestSuite) TestProvisionJoinsNetwork() {
	// GOAL: Verify provision sends credentials and waits for the sensor to report the SSID
	//
	// TEST SCENARIO: --ssid Office --password secret → fixture joins Office → confirmation printed

	out, errOut, err := s.ExecuteCommand("wifi", "provision", "--ssid", "Office", "--password", "s3cr3t-pw", "--log-level", "debug")
	s.Require().NoError(err)

	s.Equal("Sensor joined Wi-Fi network \"Office\"\n", out)
	s.Contains(errOut, "ssid=Office")
	s.NotContains(errOut, "s3cr3t-pw", "the password MUST never be logged")
}

func (s *WifiTestSuite) TestProvisionPromptsForPassword() {
	prompted := false
	readPassword = func(*cobra.Command) (string, error) {
		prompted = true
		return "typed", nil
	}

	_, _, err := s.ExecuteCommand("wifi", "provision", "--ssid", "Home", "--timeout", "2s")
	s.Require().NoError(err)
	s.True(prompted)
}

func (s *WifiTestSuite) TestProvisionAcceptsEmptyPassword() {
	readPassword = func(*cobra.Command) (string, error) {
		s.Fail("MUST NOT prompt when --password is given")
		return "", nil
	}

	_, _, err := s.ExecuteCommand("wifi", "provision", "--ssid", "Guest", "--password", "", "--timeout", "2s")
	s.Require().NoError(err)
}

func (s *WifiTestSuite) TestProvisionRequiresSSID() {
	_, _, err := s.ExecuteCommand("wifi", "provision", "--password", "x")
	s.Require().Error(err)
	s.Contains(err.Error(), `required flag(s) "ssid" not set`)
}

func TestWifiTestSuite(t *testing.T) {
	suite.Run(t, new(WifiTestSuite))
}
