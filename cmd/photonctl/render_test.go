package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/publish"
	"github.com/srg/photonctl/internal/testutils"
	"github.com/srg/photonctl/pkg/session"
)

func connectedState() session.State {
	st := session.NewState()
	st.PoweredOn = true
	st.Phase = session.PhaseConnected
	st.Connected = &session.PeripheralInfo{ID: "AA:BB"}
	st.LightLevel = "42 lux"
	st.LightHistory = []session.LightSample{{Timestamp: fixedTime, Value: 42}}
	return st
}

func TestRendererText(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(st *session.State)
		want   string
	}{
		{
			name:   "connected without name shows id",
			mutate: func(*session.State) {},
			want:   "connected | AA:BB | light: 42 lux | wifi: not connected",
		},
		{
			name: "bluetooth off",
			mutate: func(st *session.State) {
				*st = session.NewState()
			},
			want: "idle (bluetooth off) | - | light: ? | wifi: not connected",
		},
		{
			name: "reconnecting",
			mutate: func(st *session.State) {
				st.Phase = session.PhaseReconnecting
				st.Connected = nil
				st.LightLevel = session.UnknownLightLevel
			},
			want: "reconnecting | - | light: ? | wifi: not connected",
		},
		{
			name:   "wifi scanning",
			mutate: func(st *session.State) { st.ScanningWifi = true },
			want:   "connected | AA:BB | light: 42 lux | wifi: scanning",
		},
		{
			name: "wifi joined",
			mutate: func(st *session.State) {
				st.WifiConnected = true
				st.WifiSSID = "Home"
			},
			want: "connected | AA:BB | light: 42 lux | wifi: connected to Home",
		},
		{
			name:   "wifi joined without ssid",
			mutate: func(st *session.State) { st.WifiConnected = true },
			want:   "connected | AA:BB | light: 42 lux | wifi: connected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := connectedState()
			tt.mutate(&st)

			var buf bytes.Buffer
			require.NoError(t, newRenderer(&buf, "text", false).Render(st))
			testutils.NewTextAsserter(t).Assert(buf.String(), tt.want+"\n")
		})
	}
}

func TestRendererSkipsUnchangedLines(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, "text", false)

	st := connectedState()
	require.NoError(t, r.Render(st))
	st.LightHistory = append(st.LightHistory, session.LightSample{Timestamp: fixedTime, Value: 42})
	require.NoError(t, r.Render(st), "a new sample with the same text MUST NOT print again")
	st.LightLevel = "43 lux"
	require.NoError(t, r.Render(st))

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestRendererColors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newRenderer(&buf, "text", true).Render(connectedState()))
	assert.Contains(t, buf.String(), "\x1b[32mconnected")
}

func TestRendererJSONOmitsLuxWhileDisconnected(t *testing.T) {
	st := connectedState()
	st.Connected = nil
	st.Phase = session.PhaseReconnecting

	var buf bytes.Buffer
	require.NoError(t, newRenderer(&buf, "json", false).Render(st))
	assert.NotContains(t, buf.String(), `"lux"`)
	assert.NotContains(t, buf.String(), `"sensor"`)
	testutils.NewJSONAsserter(t).Assert(buf.String(), `{"phase":"reconnecting"}`)
}

func TestRenderNetworks(t *testing.T) {
	st := connectedState()
	st.WifiNetworks = []string{"Home", "Office"}
	st.WifiConnected = true
	st.WifiSSID = "Office"

	var buf bytes.Buffer
	require.NoError(t, renderNetworks(&buf, st))
	testutils.NewTextAsserter(t).Assert(buf.String(), "  Home\n* Office\n")
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "bluetooth off", err: fmt.Errorf("failed to open radio: %w", device.ErrBluetoothOff), want: "Bluetooth is turned off"},
		{name: "unsupported", err: device.ErrUnsupported, want: "--fixture"},
		{name: "not ready", err: fmt.Errorf("%w after 1s", ErrSensorNotReady), want: "sensor not ready after 1s: make sure"},
		{name: "provision", err: ErrProvisionTimeout, want: "check the SSID"},
		{name: "mqtt", err: publish.ErrNotConnected, want: "mqtt.broker"},
		{name: "other", err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.want)
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
