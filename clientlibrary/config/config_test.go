package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	cwlConfig := NewCloudWatchTailerConfig("appName", "GroupName", "us-west-2", "workerId").
		WithBatchSize(100).
		WithStreamLookbackCount(5).
		WithStreamNameFilter("api", "scheduler").
		WithDiscoveryIntervalMillis(500).
		WithDispatchIntervalMillis(250).
		WithPersistIntervalMillis(2000).
		WithHealthIntervalMillis(5000).
		WithMaxTailersForWorker(10).
		WithMaxTailerRestarts(2).
		WithRestartBackoffMillis(100).
		WithLogsDirectory("logs").
		WithStateFilePath("state/cwl.state").
		WithEnvironmentTag("staging")

	assert.Equal(t, "appName", cwlConfig.ApplicationName)
	assert.Equal(t, "GroupName", cwlConfig.LogGroupName)
	assert.Equal(t, "workerId", cwlConfig.WorkerID)
	assert.Equal(t, 100, cwlConfig.BatchSize)
	assert.Equal(t, 5, cwlConfig.StreamLookbackCount)
	assert.Equal(t, []string{"api", "scheduler"}, cwlConfig.StreamNameFilter)
	assert.Equal(t, 500, cwlConfig.DiscoveryIntervalMillis)
	assert.Equal(t, 250, cwlConfig.DispatchIntervalMillis)
	assert.Equal(t, 2000, cwlConfig.PersistIntervalMillis)
	assert.Equal(t, 5000, cwlConfig.HealthIntervalMillis)
	assert.Equal(t, 10, cwlConfig.MaxTailersForWorker)
	assert.Equal(t, 2, cwlConfig.MaxTailerRestarts)
	assert.Equal(t, 100, cwlConfig.RestartBackoffMillis)
	assert.Equal(t, "logs", cwlConfig.LogsDirectory)
	assert.Equal(t, "state/cwl.state", cwlConfig.StateFilePath)
	assert.Equal(t, "staging", cwlConfig.EnvironmentTag)
}

func TestConfigDefaults(t *testing.T) {
	cwlConfig := NewCloudWatchTailerConfig("appName", "GroupName", "us-west-2", "workerId")

	assert.Equal(t, DefaultBatchSize, cwlConfig.BatchSize)
	assert.Equal(t, DefaultStreamLookbackCount, cwlConfig.StreamLookbackCount)
	assert.Equal(t, DefaultDiscoveryIntervalMillis, cwlConfig.DiscoveryIntervalMillis)
	assert.Equal(t, DefaultDispatchIntervalMillis, cwlConfig.DispatchIntervalMillis)
	assert.Equal(t, DefaultPersistIntervalMillis, cwlConfig.PersistIntervalMillis)
	assert.Equal(t, DefaultHealthIntervalMillis, cwlConfig.HealthIntervalMillis)
	assert.Equal(t, DefaultMaxTailersForWorker, cwlConfig.MaxTailersForWorker)
	assert.Equal(t, DefaultMaxTailerRestarts, cwlConfig.MaxTailerRestarts)
	assert.Equal(t, DefaultRestartBackoffMillis, cwlConfig.RestartBackoffMillis)
	assert.Equal(t, DefaultLogsDirectory, cwlConfig.LogsDirectory)
	assert.Equal(t, DefaultStateFilePath, cwlConfig.StateFilePath)
	assert.Equal(t, DefaultEnvironmentTag, cwlConfig.EnvironmentTag)
	assert.NotNil(t, cwlConfig.Logger)
	assert.Empty(t, cwlConfig.StateTableName)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvLogGroupName, "my/log/group")
	t.Setenv(EnvRegion, "us-east-1")
	t.Setenv(EnvBatchSize, "200")
	t.Setenv(EnvLookbackCount, "3")
	t.Setenv(EnvStreamsFilter, "api, scheduler ,")
	t.Setenv(EnvLogsDirectory, "/var/log/cwl")
	t.Setenv(EnvStateTable, "cwl-state")
	t.Setenv(EnvEnvironmentTag, "prod")

	cwlConfig, err := NewConfigFromEnv()
	assert.NoError(t, err)
	assert.Equal(t, "my/log/group", cwlConfig.LogGroupName)
	assert.Equal(t, "us-east-1", cwlConfig.RegionName)
	assert.Equal(t, 200, cwlConfig.BatchSize)
	assert.Equal(t, 3, cwlConfig.StreamLookbackCount)
	assert.Equal(t, []string{"api", "scheduler"}, cwlConfig.StreamNameFilter)
	assert.Equal(t, "/var/log/cwl", cwlConfig.LogsDirectory)
	assert.Equal(t, "cwl-state", cwlConfig.StateTableName)
	assert.Equal(t, "prod", cwlConfig.EnvironmentTag)
	assert.NotEmpty(t, cwlConfig.WorkerID)
}

func TestConfigFromEnvMissingGroup(t *testing.T) {
	t.Setenv(EnvLogGroupName, "")
	t.Setenv(EnvRegion, "us-east-1")

	_, err := NewConfigFromEnv()
	assert.Error(t, err)
}

func TestConfigFromEnvBadInteger(t *testing.T) {
	t.Setenv(EnvLogGroupName, "my/log/group")
	t.Setenv(EnvRegion, "us-east-1")
	t.Setenv(EnvBatchSize, "not-a-number")

	_, err := NewConfigFromEnv()
	assert.Error(t, err)
}
