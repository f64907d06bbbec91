// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"time"
)

// IdleExpirer deletes sessions whose last update is older than a TTL. It
// serves stores without native expiry (memory, file, sqlite).
type IdleExpirer struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewIdleExpirer builds an expirer over store. A ttl <= 0 expires nothing.
func NewIdleExpirer(store Store, ttl time.Duration) *IdleExpirer {
	return &IdleExpirer{store: store, ttl: ttl, now: time.Now}
}

// ExpireSessions removes idle sessions and returns how many were deleted.
// Sessions that vanish while sweeping are skipped.
func (e *IdleExpirer) ExpireSessions(ctx context.Context) (int, error) {
	if e.ttl <= 0 {
		return 0, nil
	}
	ids, err := e.store.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := e.now().Add(-e.ttl)
	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		st, err := e.store.Get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return expired, err
		}
		if st.UpdatedAt.After(cutoff) {
			continue
		}
		if err := e.store.Delete(ctx, id); err != nil && !isNotFound(err) {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
