/*
 * Copyright (c) 2019 VMware, Inc.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of this software and
 * associated documentation files (the "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is furnished to do
 * so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all copies or substantial
 * portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT
 * NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
 * WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */
package checkpoint

import (
	"errors"
	"sync"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
)

// ErrCheckpointNotFound is returned by Get when no token has been recorded
// for the stream yet.
var ErrCheckpointNotFound = errors.New("CheckpointNotFoundForStream")

// Store holds the in-memory forward-progress token for every tailed stream,
// keyed by the full (group, stream) identity. A stream's token is written
// only by its own tailer, once per fetched page, so per-stream updates are
// strictly ordered; updates across streams are independent.
type Store struct {
	mux    sync.RWMutex
	tokens map[catalog.StreamIdentity]string
}

func NewStore() *Store {
	return &Store{
		tokens: make(map[catalog.StreamIdentity]string),
	}
}

// Set overwrites the resumption token for identity.
func (s *Store) Set(identity catalog.StreamIdentity, nextToken string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.tokens[identity] = nextToken
}

// Get returns the last recorded token for identity.
func (s *Store) Get(identity catalog.StreamIdentity) (string, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	token, ok := s.tokens[identity]
	if !ok {
		return "", ErrCheckpointNotFound
	}
	return token, nil
}

// Snapshot returns a point-in-time copy of the full mapping for persistence.
func (s *Store) Snapshot() map[catalog.StreamIdentity]string {
	s.mux.RLock()
	defer s.mux.RUnlock()

	snapshot := make(map[catalog.StreamIdentity]string, len(s.tokens))
	for identity, token := range s.tokens {
		snapshot[identity] = token
	}
	return snapshot
}

// Restore seeds the store with previously persisted tokens. Only used at
// bootstrap, before any tailer is running; it never overwrites an existing
// entry.
func (s *Store) Restore(tokens map[catalog.StreamIdentity]string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	for identity, token := range tokens {
		if _, ok := s.tokens[identity]; !ok {
			s.tokens[identity] = token
		}
	}
}
