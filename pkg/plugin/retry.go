// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package plugin

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrTransient marks a bus error worth retrying; drivers wrap busy or
// flaky-transfer errors with it. Anything else escalates immediately.
var ErrTransient = errors.New("transient bus error")

// RetryTransient runs op, retrying transient failures up to retries
// times with a fixed delay. The orchestrator never retries writes on
// its own; this is the one sanctioned retry point, at the bus boundary.
func RetryTransient(ctx context.Context, desc string, retries uint, delay time.Duration, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retries)), ctx)
	return backoff.RetryNotify(wrapped, bo, func(err error, d time.Duration) {
		log.Warn().Err(err).Str("op", desc).Dur("delay", d).Msg("Retrying transient bus error")
	})
}
