package coordinator

import (
	"context"
	"sync"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

// Monitor checks open legs every MonitorInterval until ctx is done. It
// settles unconfirmed transactions and reports refundable legs, but never
// refunds on its own.
func (c *Coordinator) Monitor(ctx context.Context) error {
	logger.WithField("interval", c.cfg.MonitorInterval).Info("starting expiry monitor")
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping expiry monitor")
			return ctx.Err()
		case <-c.clock.TickAfter(c.cfg.MonitorInterval):
			c.ResumePending(ctx)
			c.CheckExpiries(ctx)
		}
	}
}

type openLeg struct {
	info *swap.Info
	leg  swap.Leg
}

// openLegs lists legs with funds possibly still locked that have not been
// reported yet.
func (c *Coordinator) openLegs() []openLeg {
	c.notifiedMu.Lock()
	defer c.notifiedMu.Unlock()

	var legs []openLeg
	for _, info := range c.snapshot() {
		if info.Terminal() || info.PendingOp != "" {
			continue
		}
		for _, leg := range []swap.Leg{swap.LegSource, swap.LegDestination} {
			if info.ContractID(leg) == "" || !info.RefundedAt(leg).IsZero() {
				continue
			}
			if leg == swap.LegSource && !info.SourceClaimedAt.IsZero() {
				continue
			}
			if leg == swap.LegDestination && !info.ClaimedAt.IsZero() {
				continue
			}
			if _, ok := c.notified[notifyKey(info.ID, leg)]; ok {
				continue
			}
			legs = append(legs, openLeg{info: info, leg: leg})
		}
	}
	return legs
}

func notifyKey(id string, leg swap.Leg) string {
	return id + "/" + string(leg)
}

// CheckExpiries runs one monitor pass and returns how many legs were newly
// reported as refundable.
func (c *Coordinator) CheckExpiries(ctx context.Context) int {
	legs := c.openLegs()
	now := c.clock.Now().Unix()

	var mu sync.Mutex
	reported := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MonitorConcurrency)
	for _, l := range legs {
		// no chain query before the local time lock passes
		if now < l.info.TimeLock(l.leg) {
			continue
		}
		l := l
		g.Go(func() error {
			adapter, err := c.adapter(l.info.Chain(l.leg))
			if err != nil {
				return nil
			}
			got, err := adapter.GetInfo(gctx, l.info.ContractID(l.leg))
			if err != nil {
				logger.WithFields(logger.Fields{
					"swapId": l.info.ID,
					"leg":    l.leg,
				}).Warnf("monitor failed to read leg: %v", err)
				return nil
			}
			if got.Status != htlc.StatusExpired {
				return nil
			}

			c.notifiedMu.Lock()
			key := notifyKey(l.info.ID, l.leg)
			_, seen := c.notified[key]
			c.notified[key] = struct{}{}
			c.notifiedMu.Unlock()
			if seen {
				return nil
			}

			mu.Lock()
			reported++
			mu.Unlock()
			logger.WithFields(logger.Fields{
				"swapId": l.info.ID,
				"leg":    l.leg,
			}).Warn("leg expired, refund available")
			c.emit(ctx, audit.EventRefundAvailable, l.info, map[string]any{
				"leg":      l.leg,
				"chain":    l.info.Chain(l.leg),
				"contract": l.info.ContractID(l.leg),
				"timeLock": l.info.TimeLock(l.leg),
			})
			return nil
		})
	}
	_ = g.Wait()
	return reported
}
