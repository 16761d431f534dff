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
package source

import (
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"
	"github.com/stretchr/testify/assert"
)

type mockCloudWatchLogs struct {
	cloudwatchlogsiface.CloudWatchLogsAPI
	streams       []*cloudwatchlogs.LogStream
	pages         map[string]*cloudwatchlogs.GetLogEventsOutput
	headToken     string
	throttleFirst int
	getCalls      int
	lastList      *cloudwatchlogs.DescribeLogStreamsInput
}

func (m *mockCloudWatchLogs) DescribeLogStreams(input *cloudwatchlogs.DescribeLogStreamsInput) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	m.lastList = input
	limit := int(aws.Int64Value(input.Limit))
	streams := m.streams
	if limit > 0 && limit < len(streams) {
		streams = streams[:limit]
	}
	return &cloudwatchlogs.DescribeLogStreamsOutput{LogStreams: streams}, nil
}

func (m *mockCloudWatchLogs) GetLogEvents(input *cloudwatchlogs.GetLogEventsInput) (*cloudwatchlogs.GetLogEventsOutput, error) {
	m.getCalls++
	if m.throttleFirst > 0 {
		m.throttleFirst--
		return nil, awserr.New("ThrottlingException", "slow down", nil)
	}

	token := aws.StringValue(input.NextToken)
	if page, ok := m.pages[token]; ok {
		return page, nil
	}
	// At the head: echo the token back, no events.
	return &cloudwatchlogs.GetLogEventsOutput{
		NextForwardToken: aws.String(m.headToken),
	}, nil
}

func event(ts int64, message string) *cloudwatchlogs.OutputLogEvent {
	return &cloudwatchlogs.OutputLogEvent{
		Timestamp:     aws.Int64(ts),
		IngestionTime: aws.Int64(ts + 1),
		Message:       aws.String(message),
	}
}

func TestListStreams(t *testing.T) {
	svc := &mockCloudWatchLogs{
		streams: []*cloudwatchlogs.LogStream{
			{LogStreamName: aws.String("s2"), LastEventTimestamp: aws.Int64(200)},
			{LogStreamName: aws.String("s1"), LastEventTimestamp: aws.Int64(100)},
		},
	}
	s := NewCloudWatchSource(svc, 100)

	descriptors, err := s.ListStreams("g", 1)
	assert.NoError(t, err)
	assert.Len(t, descriptors, 1)
	assert.Equal(t, "s2", descriptors[0].StreamName)
	assert.Equal(t, int64(200), descriptors[0].LastEventTimestamp)

	assert.Equal(t, cloudwatchlogs.OrderByLastEventTime, aws.StringValue(svc.lastList.OrderBy))
	assert.True(t, aws.BoolValue(svc.lastList.Descending))
	assert.Equal(t, int64(1), aws.Int64Value(svc.lastList.Limit))
}

func TestPagerYieldsPagesThenEOF(t *testing.T) {
	svc := &mockCloudWatchLogs{
		headToken: "tok2",
		pages: map[string]*cloudwatchlogs.GetLogEventsOutput{
			"": {
				Events:           []*cloudwatchlogs.OutputLogEvent{event(1, "rec1")},
				NextForwardToken: aws.String("tok1"),
			},
			"tok1": {
				Events:           []*cloudwatchlogs.OutputLogEvent{event(2, "rec2")},
				NextForwardToken: aws.String("tok2"),
			},
		},
	}
	pager := NewCloudWatchSource(svc, 100).GetLogEvents("g", "s1", "")

	page, err := pager.Next()
	assert.NoError(t, err)
	assert.Equal(t, "tok1", page.NextToken)
	assert.Equal(t, []string{`{"ingestionTime":2,"message":"rec1","timestamp":1}`}, page.Records)

	page, err = pager.Next()
	assert.NoError(t, err)
	assert.Equal(t, "tok2", page.NextToken)
	assert.Equal(t, []string{`{"ingestionTime":3,"message":"rec2","timestamp":2}`}, page.Records)

	_, err = pager.Next()
	assert.Equal(t, io.EOF, err)
}

func TestPagerResumesFromToken(t *testing.T) {
	svc := &mockCloudWatchLogs{
		headToken: "tok2",
		pages: map[string]*cloudwatchlogs.GetLogEventsOutput{
			"tok1": {
				Events:           []*cloudwatchlogs.OutputLogEvent{event(2, "rec2")},
				NextForwardToken: aws.String("tok2"),
			},
		},
	}
	pager := NewCloudWatchSource(svc, 100).GetLogEvents("g", "s1", "tok1")

	page, err := pager.Next()
	assert.NoError(t, err)
	assert.Equal(t, "tok2", page.NextToken)
	assert.Len(t, page.Records, 1)
}

func TestPagerRetriesThrottling(t *testing.T) {
	svc := &mockCloudWatchLogs{
		headToken:     "tok1",
		throttleFirst: 2,
		pages: map[string]*cloudwatchlogs.GetLogEventsOutput{
			"": {
				Events:           []*cloudwatchlogs.OutputLogEvent{event(1, "rec1")},
				NextForwardToken: aws.String("tok1"),
			},
		},
	}
	pager := NewCloudWatchSource(svc, 100).GetLogEvents("g", "s1", "")

	page, err := pager.Next()
	assert.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, 3, svc.getCalls)
}

func TestPagerEscalatesFatalErrors(t *testing.T) {
	svc := &failingCloudWatchLogs{}
	pager := NewCloudWatchSource(svc, 100).GetLogEvents("g", "gone", "")

	_, err := pager.Next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

type failingCloudWatchLogs struct {
	cloudwatchlogsiface.CloudWatchLogsAPI
}

func (f *failingCloudWatchLogs) GetLogEvents(*cloudwatchlogs.GetLogEventsInput) (*cloudwatchlogs.GetLogEventsOutput, error) {
	return nil, awserr.New(cloudwatchlogs.ErrCodeResourceNotFoundException, "no such stream", nil)
}
