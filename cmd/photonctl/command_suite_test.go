package main

import (
	"bytes"
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/testutils"
	"github.com/srg/photonctl/pkg/config"
	"github.com/srg/photonctl/pkg/fixture"
	"github.com/srg/photonctl/pkg/session"
)

// fixedTime stamps every simulated light sample.
var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// CommandTestSuite runs photonctl commands against a simulated sensor.
// All cmd/photonctl test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	// FixtureOptions shapes the simulated sensor of the next command.
	FixtureOptions fixture.Options
	// Run, when set, replaces the backend run loop of the next command.
	Run func(b *backend) func(ctx context.Context) error
	// Backend, when set, replaces the simulated sensor of the next command.
	Backend func(cfg *config.Config, logger *logrus.Logger) *backend

	originalBackend      func(*cobra.Command, *config.Config, *logrus.Logger) (*backend, error)
	originalFeedInterval time.Duration
	originalReadPassword func(*cobra.Command) (string, error)
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalBackend = newBackend
	s.originalFeedInterval = fixtureFeedInterval
	s.originalReadPassword = readPassword

	newBackend = func(_ *cobra.Command, cfg *config.Config, logger *logrus.Logger) (*backend, error) {
		if s.Backend != nil {
			return s.Backend(cfg, logger), nil
		}
		b := newFixtureBackend(cfg, logger, s.FixtureOptions)
		if s.Run != nil {
			b.run = s.Run(b)
		}
		return b, nil
	}
}

func (s *CommandTestSuite) TearDownSuite() {
	newBackend = s.originalBackend
	fixtureFeedInterval = s.originalFeedInterval
	readPassword = s.originalReadPassword
}

func (s *CommandTestSuite) SetupTest() {
	fixtureFeedInterval = 0
	s.FixtureOptions = fixture.DefaultOptions()
	s.FixtureOptions.Clock = func() time.Time { return fixedTime }
	s.Run = nil
	s.Backend = nil
	readPassword = s.originalReadPassword
}

// ExecuteCommand runs photonctl with args and returns what it wrote to stdout and
// stderr. Flags are reset to their defaults first.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (stdout, stderr string, err error) {
	resetFlags(rootCmd)

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// UseRadio runs the next command on a live session over radio. Once the radio is
// open a Photon sensor is discovered, connected and fully resolved.
func (s *CommandTestSuite) UseRadio(radio *testutils.FakeRadio) {
	s.Backend = func(cfg *config.Config, logger *logrus.Logger) *backend {
		sensor := testutils.PhotonProfile().Build()
		sess := session.New(radio, session.DefaultOptions(), logger)
		return &backend{
			Controller: sess,
			cfg:        cfg,
			logger:     logger,
			run: func(ctx context.Context) error {
				go func() {
					for !radio.IsOpen() {
						select {
						case <-ctx.Done():
							return
						case <-time.After(time.Millisecond):
						}
					}
					radio.Emit(device.PowerChanged{On: true})
					radio.Emit(device.Discovered{ID: sensor.Peripheral.ID(), Name: sensor.Peripheral.Name()})
					radio.Emit(device.Connected{Peripheral: sensor.Peripheral})
					for _, ev := range sensor.DiscoveryEvents() {
						radio.Emit(ev)
					}
				}()
				return sess.Run(ctx)
			},
		}
	}
}

// resetFlags undoes flag values and Changed marks left over from a previous Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
