// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"context"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/engine"
)

type Record = history.Record

// GetHistory returns every recorded install attempt, oldest first.
func GetHistory(ctx context.Context, cfg *config.Config, options ...Opt) ([]Record, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	return eng.GetHistory()
}

// GetResults returns the most recent install attempt for one device.
func GetResults(ctx context.Context, cfg *config.Config, deviceID string, options ...Opt) (*Record, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	return eng.GetResults(deviceID)
}

// ClearHistory erases every recorded install attempt.
func ClearHistory(ctx context.Context, cfg *config.Config, options ...Opt) error {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return err
	}
	return eng.ClearHistory()
}

// ReportHistory returns the completed install attempts that have not
// been handed to a reporting pipeline yet and marks them reported.
// Attempts still pending stay unreported until they reach a terminal
// outcome.
func ReportHistory(ctx context.Context, cfg *config.Config, options ...Opt) ([]Record, error) {
	opts := getOpts(options...)
	eng, err := engine.New(ctx, cfg, opts.EngineOptions...)
	if err != nil {
		return nil, err
	}
	recs, err := eng.GetHistory()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range recs {
		if rec.Reported || rec.Outcome == history.OutcomePending {
			continue
		}
		if err := eng.MarkReported(rec.ID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
