package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/srg/photonctl/pkg/session"
)

// statusView is the JSON line emitted by monitor --format json.
type statusView struct {
	Phase         session.Phase           `json:"phase"`
	PoweredOn     bool                    `json:"powered_on"`
	Scanning      bool                    `json:"scanning"`
	Sensor        *session.PeripheralInfo `json:"sensor,omitempty"`
	LightLevel    string                  `json:"light_level"`
	Lux           *float64                `json:"lux,omitempty"`
	WifiConnected bool                    `json:"wifi_connected"`
	WifiSSID      string                  `json:"wifi_ssid,omitempty"`
	WifiNetworks  []string                `json:"wifi_networks"`
}

func newStatusView(st session.State) statusView {
	v := statusView{
		Phase:         st.Phase,
		PoweredOn:     st.PoweredOn,
		Scanning:      st.Scanning,
		Sensor:        st.Connected,
		LightLevel:    st.LightLevel,
		WifiConnected: st.WifiConnected,
		WifiSSID:      st.WifiSSID,
		WifiNetworks:  st.WifiNetworks,
	}
	if sample, ok := st.LastSample(); ok && st.Connected != nil {
		lux := sample.Value
		v.Lux = &lux
	}
	return v
}

// renderer writes one line per visible change of the session state.
type renderer struct {
	w      io.Writer
	format string
	last   string

	phase, dim, ok, warn *color.Color
}

func newRenderer(w io.Writer, format string, colors bool) *renderer {
	r := &renderer{
		w:      w,
		format: format,
		phase:  color.New(color.Bold),
		dim:    color.New(color.Faint),
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{r.phase, r.dim, r.ok, r.warn} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Render prints st unless it looks the same as the previous line.
func (r *renderer) Render(st session.State) error {
	line, err := r.line(st)
	if err != nil {
		return err
	}
	if line == r.last {
		return nil
	}
	r.last = line
	_, err = fmt.Fprintln(r.w, line)
	return err
}

func (r *renderer) line(st session.State) (string, error) {
	if r.format == "json" {
		data, err := json.Marshal(newStatusView(st))
		return string(data), err
	}

	sensor := r.dim.Sprint("-")
	if st.Connected != nil {
		sensor = st.Connected.Name
		if sensor == "" {
			sensor = st.Connected.ID
		}
	}

	phase := st.Phase.String()
	switch st.Phase {
	case session.PhaseConnected:
		phase = r.ok.Sprint(phase)
	case session.PhaseReconnecting:
		phase = r.warn.Sprint(phase)
	default:
		phase = r.phase.Sprint(phase)
	}
	if !st.PoweredOn {
		phase += r.warn.Sprint(" (bluetooth off)")
	}

	return strings.Join([]string{
		phase,
		sensor,
		"light: " + st.LightLevel,
		"wifi: " + wifiSummary(st),
	}, " | "), nil
}

func wifiSummary(st session.State) string {
	switch {
	case st.ScanningWifi:
		return "scanning"
	case st.WifiConnected && st.WifiSSID != "":
		return "connected to " + st.WifiSSID
	case st.WifiConnected:
		return "connected"
	default:
		return "not connected"
	}
}

// renderNetworks prints the result of a Wi-Fi scan, one SSID per line.
func renderNetworks(w io.Writer, st session.State) error {
	if len(st.WifiNetworks) == 0 {
		_, err := fmt.Fprintln(w, "No Wi-Fi networks found")
		return err
	}
	for _, ssid := range st.WifiNetworks {
		marker := " "
		if st.WifiConnected && ssid == st.WifiSSID {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", marker, ssid); err != nil {
			return err
		}
	}
	return nil
}
