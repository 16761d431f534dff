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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws/credentials"
)

// Environment variables making up the configuration surface. The process
// reads its whole configuration from the environment; there are no flags or
// subcommands.
const (
	EnvAccessKey         = "AWS_ACCESS_KEY"
	EnvSecretKey         = "AWS_SECRET_KEY"
	EnvRegion            = "AWS_REGION"
	EnvLogGroupName      = "LOG_GROUP_NAME"
	EnvBatchSize         = "BATCH_SIZE"
	EnvLookbackCount     = "STREAM_LOOKBACK_COUNT"
	EnvStreamsFilter     = "LOG_STREAMS_FILTER"
	EnvLogsDirectory     = "AWS_LOGS_DIRECTORY"
	EnvStateFile         = "CWL_STATE_FILE"
	EnvStateTable        = "CWL_STATE_TABLE"
	EnvEnvironmentTag    = "CWL_ENV"
	EnvApplicationName   = "CWL_APP_NAME"
	EnvDiscoveryInterval = "CWL_DISCOVERY_INTERVAL_MS"
	EnvDispatchInterval  = "CWL_DISPATCH_INTERVAL_MS"
	EnvPersistInterval   = "CWL_PERSIST_INTERVAL_MS"
	EnvHealthInterval    = "CWL_HEALTH_INTERVAL_MS"
	EnvMaxTailers        = "CWL_MAX_TAILERS"
	EnvMaxRestarts       = "CWL_MAX_RESTARTS"
)

const defaultApplicationName = "cwltail"

// NewConfigFromEnv builds the configuration from the process environment.
// LOG_GROUP_NAME and AWS_REGION are required; everything else falls back to
// the package defaults. When AWS_ACCESS_KEY/AWS_SECRET_KEY are absent the
// SDK's default credential chain is used.
func NewConfigFromEnv() (*CloudWatchTailerConfiguration, error) {
	groupName := os.Getenv(EnvLogGroupName)
	if empty(groupName) {
		return nil, fmt.Errorf("missing required environment variable %s", EnvLogGroupName)
	}
	regionName := os.Getenv(EnvRegion)
	if empty(regionName) {
		return nil, fmt.Errorf("missing required environment variable %s", EnvRegion)
	}

	appName := envOrDefault(EnvApplicationName, defaultApplicationName)

	var creds *credentials.Credentials
	accessKey, secretKey := os.Getenv(EnvAccessKey), os.Getenv(EnvSecretKey)
	if !empty(accessKey) && !empty(secretKey) {
		creds = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	c := NewCloudWatchTailerConfigWithCredential(appName, groupName, regionName, "", creds)

	var err error
	if c.BatchSize, err = envInt(EnvBatchSize, c.BatchSize); err != nil {
		return nil, err
	}
	if c.StreamLookbackCount, err = envInt(EnvLookbackCount, c.StreamLookbackCount); err != nil {
		return nil, err
	}
	if c.DiscoveryIntervalMillis, err = envInt(EnvDiscoveryInterval, c.DiscoveryIntervalMillis); err != nil {
		return nil, err
	}
	if c.DispatchIntervalMillis, err = envInt(EnvDispatchInterval, c.DispatchIntervalMillis); err != nil {
		return nil, err
	}
	if c.PersistIntervalMillis, err = envInt(EnvPersistInterval, c.PersistIntervalMillis); err != nil {
		return nil, err
	}
	if c.HealthIntervalMillis, err = envInt(EnvHealthInterval, c.HealthIntervalMillis); err != nil {
		return nil, err
	}
	if c.MaxTailersForWorker, err = envInt(EnvMaxTailers, c.MaxTailersForWorker); err != nil {
		return nil, err
	}
	if c.MaxTailerRestarts, err = envInt(EnvMaxRestarts, c.MaxTailerRestarts); err != nil {
		return nil, err
	}

	c.LogsDirectory = envOrDefault(EnvLogsDirectory, c.LogsDirectory)
	c.StateFilePath = envOrDefault(EnvStateFile, c.StateFilePath)
	c.StateTableName = os.Getenv(EnvStateTable)
	c.EnvironmentTag = envOrDefault(EnvEnvironmentTag, c.EnvironmentTag)

	if filter := os.Getenv(EnvStreamsFilter); !empty(filter) {
		for _, name := range strings.Split(filter, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.StreamNameFilter = append(c.StreamNameFilter, name)
			}
		}
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); !empty(value) {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if empty(value) {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("positive value expected for %s, actual: %d", key, parsed)
	}
	return parsed, nil
}
