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
package worker

import (
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/spf13/afero"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
	chk "github.com/vmware/vmware-go-cwl/clientlibrary/checkpoint"
	"github.com/vmware/vmware-go-cwl/clientlibrary/config"
	"github.com/vmware/vmware-go-cwl/clientlibrary/consumer"
	"github.com/vmware/vmware-go-cwl/clientlibrary/metrics"
	"github.com/vmware/vmware-go-cwl/clientlibrary/source"
	"github.com/vmware/vmware-go-cwl/clientlibrary/utils"
	"github.com/vmware/vmware-go-cwl/logger"
)

/**
 * Worker is the high level class that applications use to tail a CloudWatch
 * Logs group. It initializes and oversees different components (discovering
 * log streams, dispatching stream tailers, persisting checkpoint state, and
 * reporting per-stream health).
 */
type Worker struct {
	groupName  string
	regionName string
	workerID   string

	cwlConfig  *config.CloudWatchTailerConfiguration
	logSource  source.LogSource
	catalog    *catalog.Catalog
	chkStore   *chk.Store
	stateStore chk.StateStore
	consumers  []consumer.Consumer
	mService   metrics.MonitoringService
	fs         afero.Fs

	stop            *chan struct{}
	waitGroup       *sync.WaitGroup
	tailerWaitGroup *sync.WaitGroup
	done            bool
}

// NewWorker constructs a Worker instance for tailing a CloudWatch Logs group.
func NewWorker(cwlConfig *config.CloudWatchTailerConfiguration) *Worker {
	mService := cwlConfig.MonitoringService
	if mService == nil {
		// Replaces nil with noop monitor service (not emitting any metrics).
		mService = metrics.NoopMonitoringService{}
	}

	return &Worker{
		groupName:  cwlConfig.LogGroupName,
		regionName: cwlConfig.RegionName,
		workerID:   cwlConfig.WorkerID,
		cwlConfig:  cwlConfig,
		catalog:    catalog.New(),
		chkStore:   chk.NewStore(),
		mService:   mService,
		fs:         afero.NewOsFs(),
		done:       false,
	}
}

// WithLogSource is used to provide a log source for either custom
// implementation or unit testing.
func (w *Worker) WithLogSource(s source.LogSource) *Worker {
	w.logSource = s
	return w
}

// WithStateStore is used to provide a custom state store for non-file,
// non-dynamodb implementation or unit testing.
func (w *Worker) WithStateStore(s chk.StateStore) *Worker {
	w.stateStore = s
	return w
}

// WithConsumers registers downstream consumers that receive every record
// fanned out by the stream tailers.
func (w *Worker) WithConsumers(consumers ...consumer.Consumer) *Worker {
	w.consumers = consumers
	return w
}

// WithFilesystem is used to swap the filesystem, mainly for unit testing.
func (w *Worker) WithFilesystem(fs afero.Fs) *Worker {
	w.fs = fs
	return w
}

// Start begins tailing the log group: it restores persisted checkpoints and
// spawns the discovery, dispatch, persist and health loops.
func (w *Worker) Start() error {
	log := w.cwlConfig.Logger
	if err := w.initialize(); err != nil {
		log.Errorf("Failed to initialize Worker: %+v", err)
		return err
	}

	// Start monitoring service
	log.Infof("Starting monitoring service.")
	if err := w.mService.Start(); err != nil {
		log.Errorf("Failed to start monitoring service: %+v", err)
		return err
	}

	log.Infof("Starting worker loops.")
	loops := []func(){w.discoverLoop, w.dispatchLoop, w.persistLoop, w.healthLoop}
	for _, loop := range loops {
		loop := loop
		w.waitGroup.Add(1)
		go func() {
			defer w.waitGroup.Done()
			loop()
		}()
	}
	return nil
}

// Shutdown signals worker to shutdown. Worker will stop all loops and stream
// tailers, wait for them to flush, and persist a final checkpoint snapshot.
func (w *Worker) Shutdown() {
	log := w.cwlConfig.Logger
	log.Infof("Worker shutdown in requested.")

	if w.done || w.stop == nil {
		return
	}

	close(*w.stop)
	w.done = true

	// Loops first, so dispatch cannot launch a tailer once we start waiting
	// for the tailers; then the tailers, which may still be blocked in a
	// fetch and record one more checkpoint before exiting. Only after both
	// have drained is the closing snapshot complete.
	w.waitGroup.Wait()
	w.tailerWaitGroup.Wait()
	w.persistOnce()

	w.mService.Shutdown()
	log.Infof("Worker loop is complete. Exiting from worker.")
}

// initialize
func (w *Worker) initialize() error {
	log := w.cwlConfig.Logger
	log.Infof("Worker initialization in progress...")

	// Create default CloudWatch Logs session
	if w.logSource == nil {
		log.Infof("Creating CloudWatch Logs session")

		s, err := session.NewSession(&aws.Config{
			Region:      aws.String(w.regionName),
			Endpoint:    &w.cwlConfig.CloudWatchEndpoint,
			Credentials: w.cwlConfig.CloudWatchCredentials,
		})

		if err != nil {
			// no need to move forward
			log.Fatalf("Failed in getting CloudWatch Logs session for creating Worker: %+v", err)
		}
		w.logSource = source.NewCloudWatchSource(cloudwatchlogs.New(s), w.cwlConfig.BatchSize)
	} else {
		log.Infof("Use custom log source.")
	}

	// Create default state store implementation
	if w.stateStore == nil {
		if w.cwlConfig.StateTableName != "" {
			log.Infof("Creating DynamoDB based state store")
			s, err := session.NewSession(&aws.Config{
				Region:      aws.String(w.regionName),
				Endpoint:    &w.cwlConfig.DynamoDBEndpoint,
				Credentials: w.cwlConfig.DynamoDBCredentials,
			})
			if err != nil {
				log.Fatalf("Failed in getting DynamoDB session for creating Worker: %+v", err)
			}
			dynamoStore := chk.NewDynamoStateStore(w.cwlConfig.StateTableName, dynamodb.New(s))
			if err := dynamoStore.Init(); err != nil {
				log.Errorf("Failed to initialize DynamoDB state store: %+v", err)
				return err
			}
			w.stateStore = dynamoStore
		} else {
			log.Infof("Creating file based state store: %s", w.cwlConfig.StateFilePath)
			w.stateStore = chk.NewFileStateStore(w.cwlConfig.StateFilePath).WithFs(w.fs)
		}
	} else {
		log.Infof("Use custom state store implementation.")
	}

	// Resume from whatever the previous run persisted.
	tokens, err := w.stateStore.Load(w.groupName)
	if err != nil {
		log.Errorf("Failed to load persisted state: %+v", err)
		return err
	}
	if len(tokens) > 0 {
		log.Infof("Restored checkpoints for %d streams", len(tokens))
		w.chkStore.Restore(tokens)
	}

	if err := w.mService.Init(w.cwlConfig.ApplicationName, w.groupName, w.workerID); err != nil {
		log.Errorf("Failed to start monitoring service: %+v", err)
	}

	stopChan := make(chan struct{})
	w.stop = &stopChan

	w.waitGroup = &sync.WaitGroup{}
	w.tailerWaitGroup = &sync.WaitGroup{}

	log.Infof("Initialization complete.")

	return nil
}

// discoverLoop lists the group's most recently active streams on every
// discovery interval and registers the ones passing the allow-list.
func (w *Worker) discoverLoop() {
	log := w.cwlConfig.Logger
	for {
		w.discoverOnce()

		select {
		case <-*w.stop:
			log.Infof("Shutting down discovery...")
			return
		case <-time.After(time.Duration(w.cwlConfig.DiscoveryIntervalMillis) * time.Millisecond):
		}
	}
}

func (w *Worker) discoverOnce() {
	log := w.cwlConfig.Logger

	streams, err := w.logSource.ListStreams(w.groupName, w.cwlConfig.StreamLookbackCount)
	if err != nil {
		// discovery runs periodically; a failed call is retried on the next tick.
		log.Errorf("Error listing streams for %s: %+v", w.groupName, err)
		return
	}
	w.mService.StreamsDiscovered(len(streams))

	for _, stream := range streams {
		if !w.admitStream(stream.StreamName) {
			continue
		}
		identity := catalog.StreamIdentity{GroupName: w.groupName, StreamName: stream.StreamName}
		if w.catalog.Register(identity) {
			log.Infof("Found new stream %s", identity)
		}
	}
}

// admitStream applies the optional stream name allow-list.
func (w *Worker) admitStream(streamName string) bool {
	if len(w.cwlConfig.StreamNameFilter) == 0 {
		return true
	}
	for _, name := range w.cwlConfig.StreamNameFilter {
		if name == streamName {
			return true
		}
	}
	return false
}

// dispatchLoop walks the catalog on every dispatch interval, claiming
// unclaimed streams up to the tailer cap and restarting failed tailers.
func (w *Worker) dispatchLoop() {
	log := w.cwlConfig.Logger
	for {
		w.dispatchOnce()

		select {
		case <-*w.stop:
			log.Infof("Shutting down dispatcher...")
			return
		case <-time.After(time.Duration(w.cwlConfig.DispatchIntervalMillis) * time.Millisecond):
		}
	}
}

func (w *Worker) dispatchOnce() {
	log := w.cwlConfig.Logger
	snapshot := w.catalog.Snapshot()

	// Count the number of live tailers held by this worker.
	running := 0
	for _, handle := range snapshot {
		if handle == nil {
			continue
		}
		if state := handle.GetState(); state == catalog.PENDING || state == catalog.RUNNING {
			running++
		}
	}

	for identity, handle := range snapshot {
		if running >= w.cwlConfig.MaxTailersForWorker {
			// over the cap; leave the backlog unclaimed until a slot frees up.
			log.Debugf("Tailer cap %d reached, %d streams waiting", w.cwlConfig.MaxTailersForWorker, w.catalog.Len()-running)
			return
		}

		if handle == nil {
			filePath := filepath.Join(w.cwlConfig.LogsDirectory,
				utils.Slug(identity.GroupName), utils.Slug(identity.StreamName)+".log")
			if err := w.fs.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
				log.Errorf("Unable to create log directory for %s: %+v", identity, err)
				continue
			}
			newHandle := catalog.NewTailerHandle(identity, utils.MustNewUUID(), filePath)
			if !w.catalog.Claim(identity, newHandle) {
				// another dispatch pass got there first
				continue
			}
			log.Infof("Start stream tailer for: %v", identity)
			w.launchTailer(newHandle)
			running++
			continue
		}

		if handle.GetState() == catalog.FAILED && w.shouldRestart(handle) {
			if !handle.MarkRestarting() {
				continue
			}
			log.Warnf("Restarting tailer for %v (attempt %d of %d)",
				identity, handle.Restarts(), w.cwlConfig.MaxTailerRestarts)
			w.mService.TailerRestarted(identity.StreamName)
			w.launchTailer(handle)
			running++
		}
	}
}

// shouldRestart reports whether a failed tailer still has restart budget and
// has sat out its backoff. Backoff doubles per attempt, like the AWS retry
// guidance the fetch path follows.
func (w *Worker) shouldRestart(handle *catalog.TailerHandle) bool {
	if handle.Restarts() >= w.cwlConfig.MaxTailerRestarts {
		return false
	}
	backoff := time.Duration(math.Exp2(float64(handle.Restarts()))*float64(w.cwlConfig.RestartBackoffMillis)) * time.Millisecond
	return time.Since(handle.LastExit()) >= backoff
}

func (w *Worker) launchTailer(handle *catalog.TailerHandle) {
	log := w.cwlConfig.Logger
	st := &StreamTailer{
		handle:     handle,
		logSource:  w.logSource,
		checkpoint: w.chkStore,
		consumers:  w.consumers,
		cwlConfig:  w.cwlConfig,
		mService:   w.mService,
		stop:       w.stop,
		fs:         w.fs,
	}
	w.tailerWaitGroup.Add(1)
	go func() {
		defer w.tailerWaitGroup.Done()
		if err := st.tail(); err != nil {
			log.Errorf("Error in tail: %+v", err)
		}
	}()
}

// persistLoop snapshots the checkpoint store on every persist interval and
// replaces the persisted state wholesale. The closing snapshot is taken by
// Shutdown once the tailers have drained, not here.
func (w *Worker) persistLoop() {
	log := w.cwlConfig.Logger
	for {
		select {
		case <-*w.stop:
			log.Infof("Shutting down state persister...")
			return
		case <-time.After(time.Duration(w.cwlConfig.PersistIntervalMillis) * time.Millisecond):
			w.persistOnce()
		}
	}
}

func (w *Worker) persistOnce() {
	log := w.cwlConfig.Logger

	persistStartTime := time.Now()
	if err := w.stateStore.Save(w.chkStore.Snapshot()); err != nil {
		// state stays in memory; the next tick retries with a fresh snapshot.
		log.Errorf("Error persisting state: %+v", err)
		return
	}
	w.mService.RecordStatePersistTime(float64(time.Since(persistStartTime).Milliseconds()))
}

// healthLoop reports the status of every known stream on each health
// interval. Read-only over a catalog snapshot.
func (w *Worker) healthLoop() {
	log := w.cwlConfig.Logger
	for {
		w.healthOnce()

		select {
		case <-*w.stop:
			log.Infof("Shutting down health reporter...")
			return
		case <-time.After(time.Duration(w.cwlConfig.HealthIntervalMillis) * time.Millisecond):
		}
	}
}

func (w *Worker) healthOnce() {
	log := w.cwlConfig.Logger

	for identity, handle := range w.catalog.Snapshot() {
		status := "unclaimed"
		if handle != nil {
			status = handle.GetState().String()
		}
		log.WithFields(logger.Fields{
			"logGroup":  identity.GroupName,
			"logStream": identity.StreamName,
			"status":    status,
		}).Infof("Stream status")
	}
}
