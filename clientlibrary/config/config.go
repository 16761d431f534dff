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
package config

import (
	"log"
	"math"
	"strings"

	creds "github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/vmware/vmware-go-cwl/clientlibrary/metrics"
	"github.com/vmware/vmware-go-cwl/logger"
)

const (
	// Max records to fetch from CloudWatch Logs in a single GetLogEvents call.
	DefaultBatchSize = 1000

	// Number of most-recent streams considered per discovery call.
	DefaultStreamLookbackCount = 1

	// Interval between discovery calls listing the log group's streams.
	DefaultDiscoveryIntervalMillis = 10000

	// Interval between dispatcher passes over the catalog.
	DefaultDispatchIntervalMillis = 10000

	// Interval between checkpoint snapshot persists.
	DefaultPersistIntervalMillis = 1000

	// Interval between health reports of per-stream worker status.
	DefaultHealthIntervalMillis = 10000

	// The max number of stream tailers this worker runs concurrently.
	// Streams beyond the cap stay unclaimed until a slot frees up.
	DefaultMaxTailersForWorker = math.MaxInt16

	// How many times a failed tailer is restarted before its stream is
	// given up on for the rest of the process lifetime.
	DefaultMaxTailerRestarts = 3

	// Base backoff before restarting a failed tailer; doubles per restart.
	DefaultRestartBackoffMillis = 500

	// Where per-stream log files are written.
	DefaultLogsDirectory = "cwl-logs"

	// Where the checkpoint snapshot file is written.
	DefaultStateFilePath = "cwl.state"

	// Environment tag attached to outgoing consumer payloads.
	DefaultEnvironmentTag = "local"
)

// Configuration for the CloudWatch Logs tailer.
type CloudWatchTailerConfiguration struct {
	// ApplicationName is the name of the consuming application, used as
	// metrics namespace and DynamoDB state table default.
	ApplicationName string

	// LogGroupName is the log group being tailed.
	LogGroupName string

	// RegionName is the AWS region of the log group.
	RegionName string

	// CloudWatchEndpoint is an optional endpoint URL that overrides the default
	// generated endpoint for a CloudWatch Logs client.
	CloudWatchEndpoint string

	// DynamoDBEndpoint is an optional endpoint URL that overrides the default
	// generated endpoint for a DynamoDB client.
	DynamoDBEndpoint string

	// CloudWatchCredentials is used to access CloudWatch Logs.
	CloudWatchCredentials *creds.Credentials

	// DynamoDBCredentials is used to access DynamoDB.
	DynamoDBCredentials *creds.Credentials

	// WorkerID distinguishes different worker processes of an application.
	WorkerID string

	// BatchSize is the max records per GetLogEvents call.
	BatchSize int

	// StreamLookbackCount bounds how many most-recent streams each
	// discovery call considers.
	StreamLookbackCount int

	// StreamNameFilter is an optional allow-list of stream names applied at
	// discovery; nil admits every stream.
	StreamNameFilter []string

	// DiscoveryIntervalMillis is the time between stream discovery calls.
	DiscoveryIntervalMillis int

	// DispatchIntervalMillis is the time between dispatcher passes.
	DispatchIntervalMillis int

	// PersistIntervalMillis is the time between state snapshot persists.
	PersistIntervalMillis int

	// HealthIntervalMillis is the time between worker status reports.
	HealthIntervalMillis int

	// MaxTailersForWorker caps concurrently running stream tailers.
	MaxTailersForWorker int

	// MaxTailerRestarts caps supervised restarts per stream.
	MaxTailerRestarts int

	// RestartBackoffMillis is the base backoff before a tailer restart.
	RestartBackoffMillis int

	// LogsDirectory is the root under which per-stream files are written as
	// <root>/<slug(group)>/<slug(stream)>.log.
	LogsDirectory string

	// StateFilePath is the checkpoint snapshot file. Ignored when
	// StateTableName selects the DynamoDB state store.
	StateFilePath string

	// StateTableName selects the DynamoDB state store when non-empty.
	StateTableName string

	// EnvironmentTag labels consumer payloads (e.g. "local", "prod").
	EnvironmentTag string

	// Logger used to log messages.
	Logger logger.Logger

	// MonitoringService publishes per worker-scoped metrics.
	MonitoringService metrics.MonitoringService
}

func empty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// checkIsValueNotEmpty makes sure the value is not empty.
func checkIsValueNotEmpty(key string, value string) {
	if empty(value) {
		// There is no point to continue for incorrect configuration. Fail fast!
		log.Panicf("Non-empty value expected for %v, actual: %v", key, value)
	}
}

// checkIsValuePositive makes sure the value is positive.
func checkIsValuePositive(key string, value int) {
	if value <= 0 {
		// There is no point to continue for incorrect configuration. Fail fast!
		log.Panicf("Positive value expected for %v, actual: %v", key, value)
	}
}
