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
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
)

// StateStore persists a wholesale snapshot of the checkpoint mapping each
// cycle. Persisted state lags the live store by at most one persistence
// interval.
type StateStore interface {
	// Save overwrites the previous snapshot with tokens.
	Save(tokens map[catalog.StreamIdentity]string) error

	// Load returns the tokens of the last snapshot for the given log group,
	// or an empty map when no snapshot exists yet.
	Load(groupName string) (map[catalog.StreamIdentity]string, error)
}

// persistedState is the snapshot file layout. Tokens are nested per group
// rather than flattened into "<group>/<stream>" keys: group names contain
// '/', so a flat key cannot be split back unambiguously when one group name
// is a prefix of another.
type persistedState struct {
	ModifiedTime string                       `json:"modifiedTime"`
	Groups       map[string]map[string]string `json:"groups"`
}

// FileStateStore keeps the snapshot in a single JSON file: the modifiedTime
// field plus the per-group token maps. Each save writes to a temporary file
// and renames it over the destination, so a crash mid-write never corrupts
// the previous snapshot.
type FileStateStore struct {
	path string
	fs   afero.Fs
	now  func() time.Time
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{
		path: path,
		fs:   afero.NewOsFs(),
		now:  time.Now,
	}
}

// WithFs is used to swap in an alternative filesystem, typically a memory
// backed one in unit tests.
func (s *FileStateStore) WithFs(fs afero.Fs) *FileStateStore {
	s.fs = fs
	return s
}

// WithClock is used to provide a deterministic clock in unit tests.
func (s *FileStateStore) WithClock(now func() time.Time) *FileStateStore {
	s.now = now
	return s
}

func (s *FileStateStore) Save(tokens map[catalog.StreamIdentity]string) error {
	state := persistedState{
		ModifiedTime: s.now().UTC().Format(time.RFC3339),
		Groups:       make(map[string]map[string]string),
	}
	for identity, token := range tokens {
		streams, ok := state.Groups[identity.GroupName]
		if !ok {
			streams = make(map[string]string)
			state.Groups[identity.GroupName] = streams
		}
		streams[identity.StreamName] = token
	}

	// Map keys marshal in sorted order, so identical stores yield identical
	// output apart from the timestamp.
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.path)
}

func (s *FileStateStore) Load(groupName string) (map[catalog.StreamIdentity]string, error) {
	tokens := make(map[catalog.StreamIdentity]string)

	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return tokens, nil
	}
	if err != nil {
		return nil, err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	for streamName, token := range state.Groups[groupName] {
		identity := catalog.StreamIdentity{
			GroupName:  groupName,
			StreamName: streamName,
		}
		tokens[identity] = token
	}
	return tokens, nil
}
