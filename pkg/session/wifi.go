package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/schema"
)

const (
	// ScanCommandTrigger is the single byte that starts a Wi-Fi scan on the sensor.
	ScanCommandTrigger byte = 1

	ssidSeparator        = ","
	credentialsSeparator = ","
)

// ErrWifiUnavailable is reported for a Wi-Fi scan requested without a connected
// sensor exposing the scan command.
var ErrWifiUnavailable = errors.New("wifi scan command unavailable")

// ErrConnectionLost is reported for a Wi-Fi scan still running when the link dropped.
var ErrConnectionLost = errors.New("connection lost")

// ParseSSIDList splits a comma-delimited SSID payload, trimming whitespace and
// dropping empty entries. Duplicates are kept.
func ParseSSIDList(text string) []string {
	ssids := []string{}
	for _, tok := range strings.Split(text, ssidSeparator) {
		if tok = strings.TrimSpace(tok); tok != "" {
			ssids = append(ssids, tok)
		}
	}
	return ssids
}

// ParseConnectedStatus maps the connected-status payload to a flag: "1" means
// connected, anything else (including undecodable bytes) means not connected.
func ParseConnectedStatus(raw []byte) bool {
	if !utf8.Valid(raw) {
		return false
	}
	return strings.Trim(string(raw), " \t\r\n\x00") == "1"
}

// EncodeCredentials builds the credentials payload "<ssid>,<password>".
func EncodeCredentials(ssid, password string) []byte {
	return []byte(ssid + credentialsSeparator + password)
}

func (s *Session) startWifiScan() {
	s.state.WifiNetworks = []string{}
	s.state.ScanningWifi = true
	s.state.WifiScanError = ""
	s.wifiGen++
	s.state.WifiScanRequests = s.wifiGen
	s.sendScanCommand(s.wifiGen)
}

func (s *Session) sendScanCommand(gen uint64) {
	cmd, ok := s.handleFor(schema.WifiScanCommand)
	if s.conn == nil || !ok {
		s.logger.Warn("Cannot send Wi-Fi scan command: missing peripheral or characteristic")
		s.failWifiScan(ErrWifiUnavailable)
		return
	}

	mode := cmd.Properties().PreferredWriteMode()
	s.logger.WithFields(logrus.Fields{
		"peripheral": s.conn.ID(),
		"write_mode": mode,
		"generation": gen,
	}).Info("Sending Wi-Fi scan command")

	if err := s.radio.Write(s.conn, cmd, []byte{ScanCommandTrigger}, mode); err != nil {
		s.logger.WithField("error", err).Warn("Failed to issue Wi-Fi scan command")
		s.failWifiScan(err)
		return
	}
	s.pendingCmd = append(s.pendingCmd, gen)
}

func (s *Session) onScanCommandWritten(err error) {
	gen := s.wifiGen
	if len(s.pendingCmd) > 0 {
		gen = s.pendingCmd[0]
		s.pendingCmd = s.pendingCmd[1:]
	}

	if err == nil {
		s.logger.WithField("generation", gen).Info("Wi-Fi scan write confirmed")
		return
	}

	if gen != s.wifiGen {
		s.logger.WithFields(logrus.Fields{
			"generation": gen,
			"latest":     s.wifiGen,
			"error":      err,
		}).Warn("Superseded Wi-Fi scan write failed")
		return
	}
	s.logger.WithField("error", err).Warn("Wi-Fi scan write failed")
	s.failWifiScan(err)
}

func (s *Session) failWifiScan(err error) {
	s.state.ScanningWifi = false
	s.state.WifiScanError = err.Error()
}

func (s *Session) onSSIDList(raw []byte) {
	text, err := decodeText(raw)
	if err != nil {
		s.logger.WithField("error", err).Warn("Dropping Wi-Fi SSID list notification")
		return
	}

	s.state.WifiNetworks = ParseSSIDList(text)
	s.state.ScanningWifi = false
	s.state.WifiScanError = ""
	s.logger.WithField("count", len(s.state.WifiNetworks)).Info("Received Wi-Fi SSIDs")
}

func (s *Session) onConnectedSSID(raw []byte) {
	text, err := decodeText(raw)
	if err != nil {
		s.logger.WithField("error", err).Warn("Dropping Wi-Fi connected SSID notification")
		return
	}
	s.state.WifiSSID = text
	s.logger.WithField("ssid", text).Info("Wi-Fi connected SSID updated")
}

func (s *Session) onConnectedStatus(raw []byte) {
	if !utf8.Valid(raw) {
		s.logger.WithField("payload", fmt.Sprintf("% X", raw)).Warn("Wi-Fi status payload is not valid UTF-8")
	}
	s.state.WifiConnected = ParseConnectedStatus(raw)
	s.logger.WithField("connected", s.state.WifiConnected).Info("Wi-Fi status updated")
}

func (s *Session) sendCredentials(ssid, password string) {
	c, ok := s.handleFor(schema.WifiCredentials)
	if s.conn == nil || !ok {
		s.logger.Warn("Cannot send Wi-Fi credentials: missing peripheral or characteristic")
		return
	}

	mode := c.Properties().PreferredWriteMode()
	s.logger.WithFields(logrus.Fields{
		"ssid":       ssid,
		"write_mode": mode,
	}).Info("Sending Wi-Fi credentials")

	if err := s.radio.Write(s.conn, c, EncodeCredentials(ssid, password), mode); err != nil {
		s.logger.WithField("error", err).Warn("Failed to issue Wi-Fi credentials write")
	}
}

func (s *Session) onNotified(ev device.Notified) {
	if !s.isCurrent(ev.Peripheral) {
		s.logger.Debug("Ignoring notification from a stale connection")
		return
	}

	switch role := s.roleOf(ev.Characteristic); role {
	case schema.LightLevel:
		s.ingestLight(ev.Value)
	case schema.WifiSSIDs:
		s.onSSIDList(ev.Value)
	case schema.WifiConnectedSSID:
		s.onConnectedSSID(ev.Value)
	case schema.WifiConnectedStatus:
		s.onConnectedStatus(ev.Value)
	default:
		s.logger.WithField("role", role).Debug("Ignoring notification")
	}
}

func (s *Session) onWriteCompleted(ev device.WriteCompleted) {
	if !s.isCurrent(ev.Peripheral) {
		s.logger.Debug("Ignoring write completion from a stale connection")
		return
	}

	switch role := s.roleOf(ev.Characteristic); role {
	case schema.WifiScanCommand:
		s.onScanCommandWritten(ev.Err)
	case schema.WifiCredentials:
		if ev.Err != nil {
			s.logger.WithField("error", ev.Err).Warn("Wi-Fi credentials write failed")
			return
		}
		s.logger.Info("Wi-Fi credentials write confirmed")
	default:
		s.logger.WithFields(logrus.Fields{
			"role":  role,
			"error": ev.Err,
		}).Debug("Write completed")
	}
}
