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

	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/vmware/vmware-go-cwl/clientlibrary/metrics"
	"github.com/vmware/vmware-go-cwl/clientlibrary/utils"
	"github.com/vmware/vmware-go-cwl/logger"
)

// NewCloudWatchTailerConfig creates a default CloudWatchTailerConfiguration
// based on the required fields.
func NewCloudWatchTailerConfig(applicationName, logGroupName, regionName, workerID string) *CloudWatchTailerConfiguration {
	return NewCloudWatchTailerConfigWithCredentials(applicationName, logGroupName, regionName, workerID, nil, nil)
}

// NewCloudWatchTailerConfigWithCredential creates a default configuration
// using the same credentials for CloudWatch Logs and DynamoDB.
func NewCloudWatchTailerConfigWithCredential(applicationName, logGroupName, regionName, workerID string,
	creds *credentials.Credentials) *CloudWatchTailerConfiguration {
	return NewCloudWatchTailerConfigWithCredentials(applicationName, logGroupName, regionName, workerID, creds, creds)
}

// NewCloudWatchTailerConfigWithCredentials creates a default configuration
// with specific credentials for each service.
func NewCloudWatchTailerConfigWithCredentials(applicationName, logGroupName, regionName, workerID string,
	cloudwatchCreds, dynamodbCreds *credentials.Credentials) *CloudWatchTailerConfiguration {
	checkIsValueNotEmpty("ApplicationName", applicationName)
	checkIsValueNotEmpty("LogGroupName", logGroupName)
	checkIsValueNotEmpty("RegionName", regionName)

	if empty(workerID) {
		workerID = utils.MustNewUUID()
	}

	// populate the configuration with default values
	return &CloudWatchTailerConfiguration{
		ApplicationName:         applicationName,
		LogGroupName:            logGroupName,
		RegionName:              regionName,
		WorkerID:                workerID,
		CloudWatchCredentials:   cloudwatchCreds,
		DynamoDBCredentials:     dynamodbCreds,
		BatchSize:               DefaultBatchSize,
		StreamLookbackCount:     DefaultStreamLookbackCount,
		DiscoveryIntervalMillis: DefaultDiscoveryIntervalMillis,
		DispatchIntervalMillis:  DefaultDispatchIntervalMillis,
		PersistIntervalMillis:   DefaultPersistIntervalMillis,
		HealthIntervalMillis:    DefaultHealthIntervalMillis,
		MaxTailersForWorker:     DefaultMaxTailersForWorker,
		MaxTailerRestarts:       DefaultMaxTailerRestarts,
		RestartBackoffMillis:    DefaultRestartBackoffMillis,
		LogsDirectory:           DefaultLogsDirectory,
		StateFilePath:           DefaultStateFilePath,
		EnvironmentTag:          DefaultEnvironmentTag,
		Logger:                  logger.GetDefaultLogger(),
	}
}

// WithCloudWatchEndpoint is used to provide an alternative CloudWatch Logs endpoint.
func (c *CloudWatchTailerConfiguration) WithCloudWatchEndpoint(endpoint string) *CloudWatchTailerConfiguration {
	c.CloudWatchEndpoint = endpoint
	return c
}

// WithDynamoDBEndpoint is used to provide an alternative DynamoDB endpoint.
func (c *CloudWatchTailerConfiguration) WithDynamoDBEndpoint(endpoint string) *CloudWatchTailerConfiguration {
	c.DynamoDBEndpoint = endpoint
	return c
}

func (c *CloudWatchTailerConfiguration) WithBatchSize(batchSize int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("BatchSize", batchSize)
	c.BatchSize = batchSize
	return c
}

func (c *CloudWatchTailerConfiguration) WithStreamLookbackCount(lookbackCount int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("StreamLookbackCount", lookbackCount)
	c.StreamLookbackCount = lookbackCount
	return c
}

// WithStreamNameFilter sets the allow-list of stream names admitted at
// discovery. An empty list admits every stream.
func (c *CloudWatchTailerConfiguration) WithStreamNameFilter(streamNames ...string) *CloudWatchTailerConfiguration {
	c.StreamNameFilter = streamNames
	return c
}

func (c *CloudWatchTailerConfiguration) WithDiscoveryIntervalMillis(intervalMillis int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("DiscoveryIntervalMillis", intervalMillis)
	c.DiscoveryIntervalMillis = intervalMillis
	return c
}

func (c *CloudWatchTailerConfiguration) WithDispatchIntervalMillis(intervalMillis int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("DispatchIntervalMillis", intervalMillis)
	c.DispatchIntervalMillis = intervalMillis
	return c
}

func (c *CloudWatchTailerConfiguration) WithPersistIntervalMillis(intervalMillis int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("PersistIntervalMillis", intervalMillis)
	c.PersistIntervalMillis = intervalMillis
	return c
}

func (c *CloudWatchTailerConfiguration) WithHealthIntervalMillis(intervalMillis int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("HealthIntervalMillis", intervalMillis)
	c.HealthIntervalMillis = intervalMillis
	return c
}

// WithMaxTailersForWorker caps how many stream tailers this worker runs at
// once. Unclaimed streams beyond the cap wait for a free slot.
func (c *CloudWatchTailerConfiguration) WithMaxTailersForWorker(n int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("MaxTailersForWorker", n)
	c.MaxTailersForWorker = n
	return c
}

func (c *CloudWatchTailerConfiguration) WithMaxTailerRestarts(n int) *CloudWatchTailerConfiguration {
	c.MaxTailerRestarts = n
	return c
}

func (c *CloudWatchTailerConfiguration) WithRestartBackoffMillis(backoffMillis int) *CloudWatchTailerConfiguration {
	checkIsValuePositive("RestartBackoffMillis", backoffMillis)
	c.RestartBackoffMillis = backoffMillis
	return c
}

func (c *CloudWatchTailerConfiguration) WithLogsDirectory(dir string) *CloudWatchTailerConfiguration {
	checkIsValueNotEmpty("LogsDirectory", dir)
	c.LogsDirectory = dir
	return c
}

func (c *CloudWatchTailerConfiguration) WithStateFilePath(path string) *CloudWatchTailerConfiguration {
	checkIsValueNotEmpty("StateFilePath", path)
	c.StateFilePath = path
	return c
}

// WithStateTableName selects the DynamoDB state store instead of the local
// state file.
func (c *CloudWatchTailerConfiguration) WithStateTableName(tableName string) *CloudWatchTailerConfiguration {
	checkIsValueNotEmpty("StateTableName", tableName)
	c.StateTableName = tableName
	return c
}

func (c *CloudWatchTailerConfiguration) WithEnvironmentTag(tag string) *CloudWatchTailerConfiguration {
	c.EnvironmentTag = tag
	return c
}

func (c *CloudWatchTailerConfiguration) WithLogger(logger logger.Logger) *CloudWatchTailerConfiguration {
	if logger == nil {
		log.Panic("Logger cannot be null")
	}
	c.Logger = logger
	return c
}

// WithMonitoringService sets the monitoring service to use to publish metrics.
func (c *CloudWatchTailerConfiguration) WithMonitoringService(mService metrics.MonitoringService) *CloudWatchTailerConfiguration {
	// Nil case is handled downward (at worker creation) so no need to do it here.
	// Plus the user might want to be explicit about passing a nil monitoring service here.
	c.MonitoringService = mService
	return c
}
