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
package metrics

// MonitoringService publishes per worker-scoped metrics.
type MonitoringService interface {
	Init(appName, groupName, workerID string) error
	Start() error
	IncrRecordsWritten(stream string, count int)
	IncrBytesWritten(stream string, count int64)
	TailerStarted(stream string)
	TailerStopped(stream string)
	TailerRestarted(stream string)
	StreamsDiscovered(count int)
	RecordFetchPageTime(stream string, millis float64)
	RecordStatePersistTime(millis float64)
	Shutdown()
}

// NoopMonitoringService implements MonitoringService by doing nothing.
type NoopMonitoringService struct{}

func (NoopMonitoringService) Init(appName, groupName, workerID string) error { return nil }
func (NoopMonitoringService) Start() error                                   { return nil }
func (NoopMonitoringService) Shutdown()                                      {}

func (NoopMonitoringService) IncrRecordsWritten(stream string, count int)       {}
func (NoopMonitoringService) IncrBytesWritten(stream string, count int64)       {}
func (NoopMonitoringService) TailerStarted(stream string)                       {}
func (NoopMonitoringService) TailerStopped(stream string)                       {}
func (NoopMonitoringService) TailerRestarted(stream string)                     {}
func (NoopMonitoringService) StreamsDiscovered(count int)                       {}
func (NoopMonitoringService) RecordFetchPageTime(stream string, millis float64) {}
func (NoopMonitoringService) RecordStatePersistTime(millis float64)             {}
