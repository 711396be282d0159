// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package plugin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

func TestRetryTransient_EventuallySucceeds(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), "read status", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: device busy", ErrTransient)
		}
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryTransient_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), "read status", 2, time.Millisecond, func() error {
		calls++
		return fmt.Errorf("%w: %w", errdefs.ErrBusy, ErrTransient)
	})
	require.NotNil(t, err)
	require.Equal(t, 3, calls, "one attempt plus two retries")
	require.True(t, errdefs.IsBusy(err), "the last bus error must escalate as-is")
}

func TestRetryTransient_PermanentErrorsEscalateImmediately(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), "write block", 5, time.Millisecond, func() error {
		calls++
		return errdefs.Wrap(errdefs.ErrInvalidData, "bad block header")
	})
	require.NotNil(t, err)
	require.Equal(t, 1, calls, "non-transient errors must not be retried")
	require.True(t, errdefs.IsInvalidData(err))
}
