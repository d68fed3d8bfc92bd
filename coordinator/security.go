package coordinator

import (
	"context"
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

const (
	CheckSourceContract      = "source_contract"
	CheckDestinationContract = "destination_contract"
	CheckTimeLockOrdering    = "time_lock_ordering"
	CheckApprovals           = "approvals"
	CheckGeolocation         = "geolocation"
	CheckBackupRecovery      = "backup_recovery"
)

const (
	scoreBase          = 50
	scoreEnhanced      = 10
	scoreMax           = 20
	scoreApprovals     = 15
	scorePartial       = 5
	scoreTripleChain   = 15
	scoreGeolocation   = 10
	scoreBackup        = 5
	scoreFailedPenalty = 25
)

// PerformSecurityVerification reads every created leg from its chain and
// checks it against the swap record, then scores the swap. The result is
// stored on the swap.
func (c *Coordinator) PerformSecurityVerification(ctx context.Context, id string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}

	legs := []swap.Leg{swap.LegSource, swap.LegDestination}
	observed := make([]*htlc.Info, len(legs))
	failures := make([]error, len(legs))
	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range legs {
		if info.ContractID(leg) == "" {
			continue
		}
		i, leg := i, leg
		g.Go(func() error {
			adapter, err := c.adapter(info.Chain(leg))
			if err != nil {
				failures[i] = err
				return nil
			}
			got, err := adapter.GetInfo(gctx, info.ContractID(leg))
			if err != nil {
				failures[i] = err
				return nil
			}
			observed[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var checks []swap.SecurityCheck
	for i, leg := range legs {
		if info.ContractID(leg) == "" {
			continue
		}
		name := CheckSourceContract
		if leg == swap.LegDestination {
			name = CheckDestinationContract
		}
		check := swap.SecurityCheck{Name: name, CheckedAt: now}
		if failures[i] != nil {
			check.Detail = failures[i].Error()
		} else {
			check.Detail = legMismatch(info, leg, observed[i])
			check.Passed = check.Detail == ""
		}
		checks = append(checks, check)
	}
	if info.DestinationContractID != "" {
		check := swap.SecurityCheck{
			Name:      CheckTimeLockOrdering,
			Passed:    info.DestinationTimeLock < info.SourceTimeLock,
			CheckedAt: now,
		}
		if !check.Passed {
			check.Detail = fmt.Sprintf("destination %d not before source %d", info.DestinationTimeLock, info.SourceTimeLock)
		}
		checks = append(checks, check)
	}
	checks = append(checks, swap.SecurityCheck{
		Name:      CheckApprovals,
		Passed:    approvalsMet(info),
		Detail:    fmt.Sprintf("%d of %d", len(info.Signatures), info.Config.RequiredSignatures),
		CheckedAt: now,
	})

	checks = append(checks, standing(info.SecurityChecks)...)
	info.SecurityChecks = checks
	info.Verification = verification(checks)
	info.SecurityScore = score(info, checks)
	info.Risk = risk(info.SecurityScore)
	if err := c.persist(ctx, info, false); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"swapId": id,
		"status": info.Verification,
		"score":  info.SecurityScore,
		"risk":   info.Risk,
	}).Info("security verification done")
	c.emit(ctx, audit.EventSecurityVerified, info, map[string]any{
		"verification": info.Verification,
		"score":        info.SecurityScore,
		"risk":         info.Risk,
	})
	return info.Redacted(), nil
}

// VerifyGeolocation checks locationHash against the locations allowed for
// swap id and records the result. Swaps without a geolocation restriction
// are returned unchanged.
func (c *Coordinator) VerifyGeolocation(ctx context.Context, id, locationHash string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if !info.Config.GeolocationRestricted {
		return info.Redacted(), nil
	}

	info.GeoVerified = info.Config.GeolocationAllowed(locationHash)
	check := swap.SecurityCheck{
		Name:      CheckGeolocation,
		Passed:    info.GeoVerified,
		CheckedAt: c.clock.Now(),
	}
	if !check.Passed {
		check.Detail = "location not in allowed set"
	}
	info.SecurityChecks = replaceCheck(info.SecurityChecks, check)
	info.SecurityScore = score(info, info.SecurityChecks)
	info.Risk = risk(info.SecurityScore)
	if err := c.persist(ctx, info, false); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"swapId":   id,
		"verified": info.GeoVerified,
		"score":    info.SecurityScore,
	}).Info("geolocation checked")
	c.emit(ctx, audit.EventGeolocation, info, map[string]any{
		"verified": info.GeoVerified,
		"score":    info.SecurityScore,
	})
	if !info.GeoVerified {
		return nil, &SwapError{Op: "verify_geolocation", Swap: info.Redacted(), Err: ErrGeolocationDenied}
	}
	return info.Redacted(), nil
}

// ActivateBackupRecovery marks the recovery address of swap id as active.
// The swap must have been created with backup recovery.
func (c *Coordinator) ActivateBackupRecovery(ctx context.Context, id string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if !info.Config.UseBackupRecovery || info.Config.RecoveryAddress == "" {
		return nil, fmt.Errorf("%w: swap %s", ErrBackupUnavailable, id)
	}
	if info.BackupActivated {
		return info.Redacted(), nil
	}

	now := c.clock.Now()
	info.BackupActivated = true
	info.BackupActivatedAt = now
	info.SecurityChecks = replaceCheck(info.SecurityChecks, swap.SecurityCheck{
		Name:      CheckBackupRecovery,
		Passed:    true,
		Detail:    info.Config.RecoveryAddress,
		CheckedAt: now,
	})
	if err := c.persist(ctx, info, false); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"swapId":   id,
		"recovery": info.Config.RecoveryAddress,
	}).Warn("backup recovery activated")
	c.emit(ctx, audit.EventBackupActivated, info, map[string]any{
		"recovery_address": info.Config.RecoveryAddress,
	})
	return info.Redacted(), nil
}

// standing returns the checks that are recorded by their own operations
// and survive a new verification.
func standing(checks []swap.SecurityCheck) []swap.SecurityCheck {
	var out []swap.SecurityCheck
	for _, c := range checks {
		if c.Name == CheckGeolocation || c.Name == CheckBackupRecovery {
			out = append(out, c)
		}
	}
	return out
}

func replaceCheck(checks []swap.SecurityCheck, check swap.SecurityCheck) []swap.SecurityCheck {
	out := make([]swap.SecurityCheck, 0, len(checks)+1)
	for _, c := range checks {
		if c.Name != check.Name {
			out = append(out, c)
		}
	}
	return append(out, check)
}

// advisory checks lower neither the verification status nor the score.
func advisory(name string) bool {
	return name == CheckApprovals || name == CheckGeolocation
}

// legMismatch describes how the observed contract of leg differs from the
// record, empty if it matches.
func legMismatch(info *swap.Info, leg swap.Leg, got *htlc.Info) string {
	want := info.Config.SourceHTLC(info.HashLock, info.SourceTimeLock)
	if leg == swap.LegDestination {
		want = info.Config.DestinationHTLC(info.HashLock, info.DestinationTimeLock)
	}

	var diffs []string
	if got.Config.HashLock != want.HashLock {
		diffs = append(diffs, "hash lock")
	}
	if !got.Config.Amount.Equal(want.Amount) {
		diffs = append(diffs, fmt.Sprintf("amount %s != %s", got.Config.Amount, want.Amount))
	}
	if got.Config.TimeLock != want.TimeLock {
		diffs = append(diffs, fmt.Sprintf("time lock %d != %d", got.Config.TimeLock, want.TimeLock))
	}
	if !strings.EqualFold(got.Config.Sender, want.Sender) {
		diffs = append(diffs, "sender")
	}
	if !strings.EqualFold(got.Config.Receiver, want.Receiver) {
		diffs = append(diffs, "receiver")
	}
	return strings.Join(diffs, ", ")
}

func verification(checks []swap.SecurityCheck) swap.VerificationStatus {
	status := swap.VerificationVerified
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if !advisory(c.Name) {
			return swap.VerificationFailed
		}
		status = swap.VerificationPending
	}
	return status
}

func score(info *swap.Info, checks []swap.SecurityCheck) int {
	s := scoreBase
	switch info.Config.Level() {
	case swap.SecurityEnhanced:
		s += scoreEnhanced
	case swap.SecurityMax:
		s += scoreMax
	}
	switch {
	case approvalsMet(info):
		s += scoreApprovals
	case len(info.Signatures) > 0:
		s += scorePartial
	}
	if info.Config.UseTripleChainSecurity {
		s += scoreTripleChain
	}
	if info.Config.GeolocationRestricted && info.GeoVerified {
		s += scoreGeolocation
	}
	if info.Config.UseBackupRecovery {
		s += scoreBackup
	}
	for _, c := range checks {
		if !c.Passed && !advisory(c.Name) {
			s -= scoreFailedPenalty
		}
	}
	if s > 100 {
		s = 100
	}
	if s < 0 {
		s = 0
	}
	return s
}

func risk(score int) swap.Risk {
	switch {
	case score >= 80:
		return swap.RiskLow
	case score >= 50:
		return swap.RiskMedium
	}
	return swap.RiskHigh
}
