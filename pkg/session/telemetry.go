package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// luxUnit is the unit suffix the firmware appends to light readings.
const luxUnit = "lux"

// ErrInvalidUTF8 is returned for payloads that are not UTF-8 text.
var ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")

// ParseLightLevel extracts the numeric reading from a payload such as "123.4 lux".
func ParseLightLevel(text string) (float64, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(text, luxUnit, ""))
	if clean == "" {
		return 0, fmt.Errorf("light level %q has no value", text)
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("light level %q: %w", text, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("light level %q is not finite", text)
	}
	return v, nil
}

func decodeText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	return string(raw), nil
}

func (s *Session) ingestLight(raw []byte) {
	text, err := decodeText(raw)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"payload": fmt.Sprintf("% X", raw),
			"error":   err,
		}).Warn("Dropping light level notification")
		return
	}

	// The display keeps the unit; only the history needs a number.
	s.state.LightLevel = text

	value, err := ParseLightLevel(text)
	if err != nil {
		s.logger.WithField("error", err).Warn("Could not parse light level")
		return
	}
	s.appendSample(LightSample{Timestamp: s.opts.Clock(), Value: value})
}

func (s *Session) appendSample(sample LightSample) {
	h := append(s.state.LightHistory, sample)
	if len(h) > MaxLightHistory {
		n := copy(h, h[len(h)-MaxLightHistory:])
		h = h[:n]
	}
	s.state.LightHistory = h
}
