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
package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmware/vmware-go-cwl/logger"
)

// MonitoringService publishes tailer metrics to Prometheus.
type MonitoringService struct {
	listenAddress string
	namespace     string
	groupName     string
	workerID      string
	logger        logger.Logger

	writtenRecords    *prom.CounterVec
	writtenBytes      *prom.CounterVec
	tailersRunning    *prom.GaugeVec
	tailerRestarts    *prom.CounterVec
	discoveredStreams prom.Gauge
	fetchPageTime     *prom.HistogramVec
	statePersistTime  prom.Histogram
}

// NewMonitoringService returns a Monitoring service publishing metrics to
// Prometheus.
func NewMonitoringService(listenAddress string, logger logger.Logger) *MonitoringService {
	return &MonitoringService{
		listenAddress: listenAddress,
		logger:        logger,
	}
}

func (p *MonitoringService) Init(appName, groupName, workerID string) error {
	p.namespace = appName
	p.groupName = groupName
	p.workerID = workerID

	p.writtenRecords = prom.NewCounterVec(prom.CounterOpts{
		Name: p.namespace + `_written_records`,
		Help: "Number of records appended to stream log files",
	}, []string{"logGroup", "logStream"})
	p.writtenBytes = prom.NewCounterVec(prom.CounterOpts{
		Name: p.namespace + `_written_bytes`,
		Help: "Number of bytes appended to stream log files",
	}, []string{"logGroup", "logStream"})
	p.tailersRunning = prom.NewGaugeVec(prom.GaugeOpts{
		Name: p.namespace + `_tailers_running`,
		Help: "The number of stream tailers held by the worker",
	}, []string{"logGroup", "logStream", "workerID"})
	p.tailerRestarts = prom.NewCounterVec(prom.CounterOpts{
		Name: p.namespace + `_tailer_restarts`,
		Help: "The number of supervised tailer restarts",
	}, []string{"logGroup", "logStream", "workerID"})
	p.discoveredStreams = prom.NewGauge(prom.GaugeOpts{
		Name: p.namespace + `_discovered_streams`,
		Help: "The number of streams registered in the catalog",
	})
	p.fetchPageTime = prom.NewHistogramVec(prom.HistogramOpts{
		Name: p.namespace + `_fetch_page_duration_seconds`,
		Help: "The time taken to fetch one page of records",
	}, []string{"logGroup", "logStream"})
	p.statePersistTime = prom.NewHistogram(prom.HistogramOpts{
		Name: p.namespace + `_state_persist_duration_seconds`,
		Help: "The time taken to persist the checkpoint snapshot",
	})

	metrics := []prom.Collector{
		p.writtenRecords,
		p.writtenBytes,
		p.tailersRunning,
		p.tailerRestarts,
		p.discoveredStreams,
		p.fetchPageTime,
		p.statePersistTime,
	}
	for _, metric := range metrics {
		err := prom.Register(metric)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *MonitoringService) Start() error {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		p.logger.Infof("Starting Prometheus listener on %s", p.listenAddress)
		err := http.ListenAndServe(p.listenAddress, nil)
		if err != nil {
			p.logger.Errorf("Error starting Prometheus metrics endpoint. %+v", err)
		}
		p.logger.Infof("Stopped metrics server")
	}()

	return nil
}

func (p *MonitoringService) Shutdown() {}

func (p *MonitoringService) IncrRecordsWritten(stream string, count int) {
	p.writtenRecords.With(prom.Labels{"logGroup": p.groupName, "logStream": stream}).Add(float64(count))
}

func (p *MonitoringService) IncrBytesWritten(stream string, count int64) {
	p.writtenBytes.With(prom.Labels{"logGroup": p.groupName, "logStream": stream}).Add(float64(count))
}

func (p *MonitoringService) TailerStarted(stream string) {
	p.tailersRunning.With(prom.Labels{"logGroup": p.groupName, "logStream": stream, "workerID": p.workerID}).Inc()
}

func (p *MonitoringService) TailerStopped(stream string) {
	p.tailersRunning.With(prom.Labels{"logGroup": p.groupName, "logStream": stream, "workerID": p.workerID}).Dec()
}

func (p *MonitoringService) TailerRestarted(stream string) {
	p.tailerRestarts.With(prom.Labels{"logGroup": p.groupName, "logStream": stream, "workerID": p.workerID}).Inc()
}

func (p *MonitoringService) StreamsDiscovered(count int) {
	p.discoveredStreams.Set(float64(count))
}

func (p *MonitoringService) RecordFetchPageTime(stream string, millis float64) {
	p.fetchPageTime.With(prom.Labels{"logGroup": p.groupName, "logStream": stream}).Observe(millis / 1000)
}

func (p *MonitoringService) RecordStatePersistTime(millis float64) {
	p.statePersistTime.Observe(millis / 1000)
}
