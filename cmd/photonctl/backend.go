package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/photonctl/internal/device/goble"
	"github.com/srg/photonctl/internal/groutine"
	"github.com/srg/photonctl/pkg/config"
	"github.com/srg/photonctl/pkg/fixture"
	"github.com/srg/photonctl/pkg/session"
)

// fixtureFeedInterval paces simulated light readings; zero disables them.
var fixtureFeedInterval = time.Second

// errStopped is returned by waitFor when the backend ends its subscriptions.
var errStopped = errors.New("session stopped")

// backend is a running sensor session, live or simulated.
type backend struct {
	session.Controller
	cfg    *config.Config
	logger *logrus.Logger
	run    func(ctx context.Context) error
}

// newBackend picks the fixture or the Bluetooth radio from the command flags.
// Tests replace it to inject their own controller.
var newBackend = func(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger) (*backend, error) {
	if useFixture, _ := cmd.Flags().GetBool("fixture"); useFixture {
		return newFixtureBackend(cfg, logger, fixture.DefaultOptions()), nil
	}

	s := session.New(goble.NewRadio(logger), cfg.SessionOptions(), logger)
	return &backend{Controller: s, cfg: cfg, logger: logger, run: s.Run}, nil
}

func newFixtureBackend(cfg *config.Config, logger *logrus.Logger, opts fixture.Options) *backend {
	f := fixture.New(opts, logger)
	return &backend{
		Controller: f,
		cfg:        cfg,
		logger:     logger,
		run: func(ctx context.Context) error {
			defer f.Close()
			f.StartScan()
			if fixtureFeedInterval <= 0 {
				<-ctx.Done()
				return nil
			}

			ticker := time.NewTicker(fixtureFeedInterval)
			defer ticker.Stop()
			for tick := 0; ; tick++ {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					f.Feed(fmt.Sprintf("%.1f lux", 100+float64(tick%20)))
				}
			}
		},
	}
}

// start runs the session in the background. The returned channel yields the
// result of Run once it returns.
func (b *backend) start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	groutine.Go(ctx, b.logger, "photon-session", func(ctx context.Context) {
		errCh <- b.run(ctx)
	})

	// The live session scans on power-on only when auto_scan is set.
	if !b.cfg.Session.AutoScan {
		groutine.Go(ctx, b.logger, "photon-start-scan", func(ctx context.Context) {
			if _, err := b.waitFor(ctx, nil, func(st session.State) bool { return st.PoweredOn }); err == nil {
				b.StartScan()
			}
		})
	}
	return errCh
}

// waitFor blocks until pred holds for a published snapshot. A failure reported on
// errCh ends the wait early.
func (b *backend) waitFor(ctx context.Context, errCh <-chan error, pred func(session.State) bool) (session.State, error) {
	return b.request(ctx, errCh, nil, pred)
}

// request runs action once observing has begun, then waits like waitFor.
func (b *backend) request(ctx context.Context, errCh <-chan error, action func(), pred func(session.State) bool) (session.State, error) {
	sub := b.Subscribe(b.cfg.Session.SubscriptionBuffer)
	defer sub.Close()
	if action != nil {
		action()
	}

	for {
		select {
		case <-ctx.Done():
			return session.State{}, ctx.Err()
		case err := <-errCh:
			if err == nil {
				err = errStopped
			}
			return session.State{}, err
		case st, ok := <-sub.C():
			if !ok {
				return session.State{}, errStopped
			}
			if pred(st) {
				return st, nil
			}
		}
	}
}
