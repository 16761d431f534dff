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
package catalog

import (
	"fmt"
	"sync"
	"time"
)

// StreamIdentity uniquely identifies a log stream within the process.
type StreamIdentity struct {
	GroupName  string
	StreamName string
}

func (id StreamIdentity) String() string {
	return fmt.Sprintf("%s/%s", id.GroupName, id.StreamName)
}

// TailerState describes the lifecycle of the tailer bound to a stream.
const (
	// PENDING tailer has been claimed but its goroutine has not reported in yet.
	PENDING TailerState = iota + 1
	// RUNNING tailer goroutine is fetching records.
	RUNNING
	// FINISHED tailer exited cleanly after the source signaled end of stream.
	FINISHED
	// FAILED tailer exited with an unrecoverable error.
	FAILED
	// STOPPED tailer was interrupted by shutdown before reaching end of stream.
	STOPPED
)

type TailerState int

var tailerStateNames = map[TailerState]string{
	PENDING:  "PENDING",
	RUNNING:  "RUNNING",
	FINISHED: "FINISHED",
	FAILED:   "FAILED",
	STOPPED:  "STOPPED",
}

func (s TailerState) String() string {
	if name, ok := tailerStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// TailerHandle is the claimed value of a catalog entry: bookkeeping for the
// single tailer ever dispatched for a stream. All mutation goes through the
// accessors; the handle is shared between the tailer goroutine, the
// dispatcher and the health reporter.
type TailerHandle struct {
	Identity StreamIdentity
	TailerID string
	FilePath string

	mux      sync.RWMutex
	state    TailerState
	restarts int
	lastExit time.Time
	lastErr  error
}

func NewTailerHandle(identity StreamIdentity, tailerID, filePath string) *TailerHandle {
	return &TailerHandle{
		Identity: identity,
		TailerID: tailerID,
		FilePath: filePath,
		state:    PENDING,
	}
}

func (h *TailerHandle) GetState() TailerState {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.state
}

func (h *TailerHandle) SetRunning() {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.state = RUNNING
}

func (h *TailerHandle) SetFinished() {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.state = FINISHED
	h.lastExit = time.Now().UTC()
}

func (h *TailerHandle) SetStopped() {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.state = STOPPED
	h.lastExit = time.Now().UTC()
}

func (h *TailerHandle) SetFailed(err error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.state = FAILED
	h.lastErr = err
	h.lastExit = time.Now().UTC()
}

// MarkRestarting flips a FAILED handle back to PENDING and bumps the restart
// counter. Returns false if the handle is not in a restartable state.
func (h *TailerHandle) MarkRestarting() bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.state != FAILED {
		return false
	}
	h.state = PENDING
	h.restarts++
	return true
}

func (h *TailerHandle) Restarts() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.restarts
}

func (h *TailerHandle) LastExit() time.Time {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.lastExit
}

func (h *TailerHandle) LastErr() error {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.lastErr
}

// Catalog maps discovered stream identities to their tailer handle. A nil
// handle marks the entry as unclaimed. Entries live for the process lifetime
// and are never removed.
type Catalog struct {
	mux     sync.Mutex
	entries map[StreamIdentity]*TailerHandle
}

func New() *Catalog {
	return &Catalog{
		entries: make(map[StreamIdentity]*TailerHandle),
	}
}

// Register inserts identity as unclaimed if absent. Registering an identity
// that is already present, claimed or not, is a no-op. Returns true when a
// new entry was created.
func (c *Catalog) Register(identity StreamIdentity) bool {
	c.mux.Lock()
	defer c.mux.Unlock()

	if _, ok := c.entries[identity]; ok {
		return false
	}
	c.entries[identity] = nil
	return true
}

// Claim binds handle to identity. The claim succeeds only when the entry
// exists and is still unclaimed, so at most one handle is ever bound to an
// identity no matter how many dispatchers race on it.
func (c *Catalog) Claim(identity StreamIdentity, handle *TailerHandle) bool {
	c.mux.Lock()
	defer c.mux.Unlock()

	existing, ok := c.entries[identity]
	if !ok || existing != nil {
		return false
	}
	c.entries[identity] = handle
	return true
}

// Snapshot returns a point-in-time copy of the catalog. Callers iterate the
// copy, never the live map.
func (c *Catalog) Snapshot() map[StreamIdentity]*TailerHandle {
	c.mux.Lock()
	defer c.mux.Unlock()

	snapshot := make(map[StreamIdentity]*TailerHandle, len(c.entries))
	for identity, handle := range c.entries {
		snapshot[identity] = handle
	}
	return snapshot
}

// Len returns the number of registered streams.
func (c *Catalog) Len() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.entries)
}
