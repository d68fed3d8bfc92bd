package htlc

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	logger "github.com/sirupsen/logrus"
)

type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime bounds one chain call including confirmation. Zero
	// means no bound.
	MaxElapsedTime time.Duration
	// MaxRetries is ignored when zero.
	MaxRetries uint64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     15 * time.Second,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	b.MaxElapsedTime = c.MaxElapsedTime
	b.Reset()

	var bo backoff.BackOff = b
	if c.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, c.MaxRetries)
	}
	return backoff.WithContext(bo, ctx)
}

// IsRetryable reports whether err is a pending confirmation or a transport
// failure that happened before the chain saw the transaction.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnconfirmed) {
		return false
	}
	return errors.Is(err, ErrTxPending) || errors.Is(err, ErrTransient)
}

// Transient marks transport level failures as retryable and returns every
// other error untouched.
func Transient(err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return errors.Join(ErrTransient, err)
	}
	return err
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// policy gives up. Rejections are never retried.
func Retry(ctx context.Context, cfg RetryConfig, chain ChainID, op string, fn func() error) error {
	operation := func() error {
		err := fn()
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		logger.WithFields(logger.Fields{
			"chain": chain,
			"op":    op,
			"next":  next,
		}).Warnf("chain call not final yet: %v", err)
	}
	return backoff.RetryNotify(operation, cfg.newBackOff(ctx), notify)
}
