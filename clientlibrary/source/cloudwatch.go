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
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"

	"github.com/vmware/vmware-go-cwl/clientlibrary/utils"
)

const (
	// Throttling error code shared across AWS services; the cloudwatchlogs
	// package does not export a constant for it.
	errCodeThrottling = "ThrottlingException"

	defaultFetchRetries = 5
)

// CloudWatchSource implements LogSource on the CloudWatch Logs API.
type CloudWatchSource struct {
	svc       cloudwatchlogsiface.CloudWatchLogsAPI
	batchSize int64
	retries   int
}

func NewCloudWatchSource(svc cloudwatchlogsiface.CloudWatchLogsAPI, batchSize int) *CloudWatchSource {
	return &CloudWatchSource{
		svc:       svc,
		batchSize: int64(batchSize),
		retries:   defaultFetchRetries,
	}
}

func (s *CloudWatchSource) ListStreams(groupName string, lookbackCount int) ([]*StreamDescriptor, error) {
	resp, err := s.svc.DescribeLogStreams(&cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(groupName),
		OrderBy:      aws.String(cloudwatchlogs.OrderByLastEventTime),
		Descending:   aws.Bool(true),
		Limit:        aws.Int64(int64(lookbackCount)),
	})
	if err != nil {
		return nil, err
	}

	descriptors := make([]*StreamDescriptor, 0, len(resp.LogStreams))
	for _, ls := range resp.LogStreams {
		descriptors = append(descriptors, &StreamDescriptor{
			StreamName:         aws.StringValue(ls.LogStreamName),
			LastEventTimestamp: aws.Int64Value(ls.LastEventTimestamp),
		})
	}
	return descriptors, nil
}

func (s *CloudWatchSource) GetLogEvents(groupName, streamName, fromToken string) EventPager {
	return &cloudWatchPager{
		source:     s,
		groupName:  groupName,
		streamName: streamName,
		token:      fromToken,
	}
}

type cloudWatchPager struct {
	source     *CloudWatchSource
	groupName  string
	streamName string
	token      string
}

// Next fetches one page. CloudWatch signals the head of the stream by
// echoing the forward token back unchanged; that is surfaced as io.EOF.
func (p *cloudWatchPager) Next() (*Page, error) {
	input := &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(p.groupName),
		LogStreamName: aws.String(p.streamName),
		Limit:         aws.Int64(p.source.batchSize),
		StartFromHead: aws.Bool(true),
	}
	if p.token != "" {
		input.NextToken = aws.String(p.token)
	}

	resp, err := p.source.getLogEvents(input)
	if err != nil {
		return nil, err
	}

	nextToken := aws.StringValue(resp.NextForwardToken)
	if p.token != "" && nextToken == p.token {
		return nil, io.EOF
	}
	p.token = nextToken

	records := make([]string, 0, len(resp.Events))
	for _, event := range resp.Events {
		records = append(records, formatEvent(event))
	}
	return &Page{Records: records, NextToken: nextToken}, nil
}

// getLogEvents retries throttling with exponential backoff; other errors
// escalate to the tailer.
func (s *CloudWatchSource) getLogEvents(input *cloudwatchlogs.GetLogEventsInput) (*cloudwatchlogs.GetLogEventsOutput, error) {
	retried := 0
	for {
		resp, err := s.svc.GetLogEvents(input)
		if err == nil {
			return resp, nil
		}

		code := utils.AWSErrCode(err)
		if (code == errCodeThrottling || code == cloudwatchlogs.ErrCodeServiceUnavailableException) &&
			retried < s.retries {
			retried++
			time.Sleep(time.Duration(math.Exp2(float64(retried))*100) * time.Millisecond)
			continue
		}
		return nil, err
	}
}

// formatEvent renders the record's literal textual form: one JSON object
// per line, stable field order.
func formatEvent(event *cloudwatchlogs.OutputLogEvent) string {
	line, err := json.Marshal(struct {
		IngestionTime int64  `json:"ingestionTime"`
		Message       string `json:"message"`
		Timestamp     int64  `json:"timestamp"`
	}{
		IngestionTime: aws.Int64Value(event.IngestionTime),
		Message:       aws.StringValue(event.Message),
		Timestamp:     aws.Int64Value(event.Timestamp),
	})
	if err != nil {
		// Marshaling fixed scalar fields cannot fail; keep the record anyway.
		return aws.StringValue(event.Message)
	}
	return string(line)
}
