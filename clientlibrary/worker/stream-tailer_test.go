package worker

import (
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
	chk "github.com/vmware/vmware-go-cwl/clientlibrary/checkpoint"
	"github.com/vmware/vmware-go-cwl/clientlibrary/config"
	"github.com/vmware/vmware-go-cwl/clientlibrary/consumer"
	"github.com/vmware/vmware-go-cwl/clientlibrary/metrics"
	"github.com/vmware/vmware-go-cwl/clientlibrary/source"
)

// fakeLogSource serves canned stream listings and event pages. Every stream
// of the fake shares the same page sequence, which is enough for the tests.
type fakeLogSource struct {
	streams []*source.StreamDescriptor
	pages   []*source.Page
	failAt  int
}

func newFakeLogSource(streams []*source.StreamDescriptor, pages []*source.Page) *fakeLogSource {
	return &fakeLogSource{streams: streams, pages: pages, failAt: -1}
}

func (f *fakeLogSource) ListStreams(groupName string, lookbackCount int) ([]*source.StreamDescriptor, error) {
	if len(f.streams) > lookbackCount {
		return f.streams[:lookbackCount], nil
	}
	return f.streams, nil
}

func (f *fakeLogSource) GetLogEvents(groupName, streamName, fromToken string) source.EventPager {
	start := 0
	for i, page := range f.pages {
		if fromToken != "" && page.NextToken == fromToken {
			start = i + 1
		}
	}
	return &fakePager{source: f, next: start}
}

type fakePager struct {
	source *fakeLogSource
	next   int
}

func (p *fakePager) Next() (*source.Page, error) {
	if p.source.failAt >= 0 && p.next == p.source.failAt {
		return nil, errors.New("stream unavailable")
	}
	if p.next >= len(p.source.pages) {
		return nil, io.EOF
	}
	page := p.source.pages[p.next]
	p.next++
	return page, nil
}

type recordingConsumer struct {
	records []string
}

func (c *recordingConsumer) Process(record, groupName, streamName string) {
	c.records = append(c.records, record)
}

func testConfig() *config.CloudWatchTailerConfiguration {
	return config.NewCloudWatchTailerConfig("appName", "group", "us-west-2", "worker-1").
		WithDiscoveryIntervalMillis(10).
		WithDispatchIntervalMillis(10).
		WithPersistIntervalMillis(10).
		WithHealthIntervalMillis(10).
		WithRestartBackoffMillis(1)
}

func newTestTailer(src source.LogSource, store *chk.Store, fs afero.Fs, consumers ...consumer.Consumer) (*StreamTailer, chan struct{}) {
	identity := catalog.StreamIdentity{GroupName: "group", StreamName: "stream"}
	handle := catalog.NewTailerHandle(identity, "tailer-1", "logs/group/stream.log")
	stopChan := make(chan struct{})
	return &StreamTailer{
		handle:     handle,
		logSource:  src,
		checkpoint: store,
		consumers:  consumers,
		cwlConfig:  testConfig(),
		mService:   metrics.NoopMonitoringService{},
		stop:       &stopChan,
		fs:         fs,
	}, stopChan
}

func TestTailerWritesRecordsInOrder(t *testing.T) {
	src := newFakeLogSource(nil, []*source.Page{
		{Records: []string{"rec1"}, NextToken: "tok1"},
		{Records: []string{"rec2", "rec3"}, NextToken: "tok2"},
	})
	store := chk.NewStore()
	fs := afero.NewMemMapFs()
	st, _ := newTestTailer(src, store, fs)

	err := st.tail()
	assert.NoError(t, err)
	assert.Equal(t, catalog.FINISHED, st.handle.GetState())

	content, err := afero.ReadFile(fs, "logs/group/stream.log")
	assert.NoError(t, err)
	assert.Equal(t, "rec1\nrec2\nrec3\n", string(content))

	token, err := store.Get(st.handle.Identity)
	assert.NoError(t, err)
	assert.Equal(t, "tok2", token)
}

func TestTailerFansOutToConsumers(t *testing.T) {
	src := newFakeLogSource(nil, []*source.Page{
		{Records: []string{"rec1", "rec2"}, NextToken: "tok1"},
	})
	recorder := &recordingConsumer{}
	st, _ := newTestTailer(src, chk.NewStore(), afero.NewMemMapFs(), recorder)

	err := st.tail()
	assert.NoError(t, err)
	assert.Equal(t, []string{"rec1", "rec2"}, recorder.records)
}

func TestTailerResumesFromCheckpoint(t *testing.T) {
	src := newFakeLogSource(nil, []*source.Page{
		{Records: []string{"rec1"}, NextToken: "tok1"},
		{Records: []string{"rec2"}, NextToken: "tok2"},
	})
	store := chk.NewStore()
	fs := afero.NewMemMapFs()
	st, _ := newTestTailer(src, store, fs)
	store.Set(st.handle.Identity, "tok1")

	err := st.tail()
	assert.NoError(t, err)

	content, err := afero.ReadFile(fs, "logs/group/stream.log")
	assert.NoError(t, err)
	assert.Equal(t, "rec2\n", string(content))
}

func TestTailerKeepsCheckpointOnFailure(t *testing.T) {
	src := newFakeLogSource(nil, []*source.Page{
		{Records: []string{"rec1"}, NextToken: "tok1"},
		{Records: []string{"rec2"}, NextToken: "tok2"},
	})
	src.failAt = 1
	store := chk.NewStore()
	fs := afero.NewMemMapFs()
	st, _ := newTestTailer(src, store, fs)

	err := st.tail()
	assert.Error(t, err)
	assert.Equal(t, catalog.FAILED, st.handle.GetState())
	assert.Error(t, st.handle.LastErr())

	// the page fetched before the failure is on disk and checkpointed
	content, err := afero.ReadFile(fs, "logs/group/stream.log")
	assert.NoError(t, err)
	assert.Equal(t, "rec1\n", string(content))
	token, err := store.Get(st.handle.Identity)
	assert.NoError(t, err)
	assert.Equal(t, "tok1", token)
}

func TestTailerStopsOnShutdown(t *testing.T) {
	src := newFakeLogSource(nil, []*source.Page{
		{Records: []string{"rec1"}, NextToken: "tok1"},
		{Records: []string{"rec2"}, NextToken: "tok2"},
	})
	st, stopChan := newTestTailer(src, chk.NewStore(), afero.NewMemMapFs())
	close(stopChan)

	err := st.tail()
	assert.NoError(t, err)
	// interrupted, not end-of-stream: health must tell the two apart
	assert.Equal(t, catalog.STOPPED, st.handle.GetState())
}
