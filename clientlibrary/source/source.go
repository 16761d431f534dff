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

// StreamDescriptor describes one log stream returned by discovery.
type StreamDescriptor struct {
	StreamName string

	// LastEventTimestamp is milliseconds since epoch of the stream's most
	// recent event, zero when the stream is empty.
	LastEventTimestamp int64
}

// Page is one fetched batch of records plus the token resuming after it.
type Page struct {
	// Records in the textual form written to the stream's log file, one
	// element per line.
	Records []string

	// NextToken is the opaque resumption token for the page after this one.
	NextToken string
}

// EventPager is a lazy, resumable sequence of record pages for one stream.
// Next blocks on the underlying fetch and returns io.EOF when the source
// signals end of stream.
type EventPager interface {
	Next() (*Page, error)
}

// LogSource is the remote logging service being tailed.
type LogSource interface {
	// ListStreams returns up to lookbackCount stream descriptors for the
	// group, most recent first.
	ListStreams(groupName string, lookbackCount int) ([]*StreamDescriptor, error)

	// GetLogEvents opens a pager over the stream's records, resuming after
	// fromToken when it is non-empty.
	GetLogEvents(groupName, streamName, fromToken string) EventPager
}
