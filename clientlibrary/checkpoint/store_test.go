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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
)

func TestStoreSetGet(t *testing.T) {
	s := NewStore()
	id := catalog.StreamIdentity{GroupName: "g", StreamName: "s1"}

	_, err := s.Get(id)
	assert.Equal(t, ErrCheckpointNotFound, err)

	s.Set(id, "tok1")
	token, err := s.Get(id)
	assert.NoError(t, err)
	assert.Equal(t, "tok1", token)

	s.Set(id, "tok2")
	token, _ = s.Get(id)
	assert.Equal(t, "tok2", token)
}

func TestStoreKeysAreIndependent(t *testing.T) {
	s := NewStore()

	// Same stream name in two groups must not collide.
	a := catalog.StreamIdentity{GroupName: "g1", StreamName: "s"}
	b := catalog.StreamIdentity{GroupName: "g2", StreamName: "s"}
	s.Set(a, "tokA")
	s.Set(b, "tokB")

	tokA, _ := s.Get(a)
	tokB, _ := s.Get(b)
	assert.Equal(t, "tokA", tokA)
	assert.Equal(t, "tokB", tokB)
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	id := catalog.StreamIdentity{GroupName: "g", StreamName: "s1"}
	s.Set(id, "tok1")

	snapshot := s.Snapshot()
	snapshot[id] = "mutated"

	token, _ := s.Get(id)
	assert.Equal(t, "tok1", token)
}

// The last write for a stream must always win while persistence snapshots
// run concurrently; snapshot readers never see tokens out of order.
func TestStoreOrderedWritesUnderConcurrentSnapshots(t *testing.T) {
	const pages = 500
	s := NewStore()
	id := catalog.StreamIdentity{GroupName: "g", StreamName: "s1"}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.Snapshot()
			}
		}
	}()

	for i := 1; i <= pages; i++ {
		s.Set(id, fmt.Sprintf("tok%d", i))
	}
	close(done)
	wg.Wait()

	token, err := s.Get(id)
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("tok%d", pages), token)
}

func TestStoreRestoreNeverOverwrites(t *testing.T) {
	s := NewStore()
	live := catalog.StreamIdentity{GroupName: "g", StreamName: "live"}
	cold := catalog.StreamIdentity{GroupName: "g", StreamName: "cold"}
	s.Set(live, "tok9")

	s.Restore(map[catalog.StreamIdentity]string{
		live: "stale",
		cold: "tok1",
	})

	token, _ := s.Get(live)
	assert.Equal(t, "tok9", token)
	token, _ = s.Get(cold)
	assert.Equal(t, "tok1", token)
}
