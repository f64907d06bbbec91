// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"strings"

	"github.com/jllopis/swarm/pkg/errors"
)

// ErrSessionNotFound is returned by Store.Get for unknown session ids.
var ErrSessionNotFound = errors.ErrNotFound

// Store persists session state by id with last-write-wins semantics.
// Implementations return copies: mutating a State returned by Get never
// affects the stored value until it is Put back.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Put(ctx context.Context, id string, state *State) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

func notFound(id string) error {
	return errors.New(errors.CodeNotFound, "session not found", nil).
		WithContext("session_id", id)
}

func storeError(op, id string, err error) error {
	return errors.New(errors.CodeSessionStore, "session store "+op+" failed", err).
		WithContext("session_id", id)
}

func validatePut(id string, state *State) error {
	if strings.TrimSpace(id) == "" {
		return errors.New(errors.CodeInvalidInput, "session id is required", nil)
	}
	if state == nil {
		return errors.New(errors.CodeInvalidInput, "session state is nil", nil).
			WithContext("session_id", id)
	}
	return nil
}

// prepare returns the copy that a store keeps for id.
func prepare(id string, state *State) *State {
	c := state.Clone()
	c.ID = id
	return c
}

func isNotFound(err error) bool {
	return errors.CodeOf(err) == errors.CodeNotFound
}
