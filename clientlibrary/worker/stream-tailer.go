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
	"bufio"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
	chk "github.com/vmware/vmware-go-cwl/clientlibrary/checkpoint"
	"github.com/vmware/vmware-go-cwl/clientlibrary/config"
	"github.com/vmware/vmware-go-cwl/clientlibrary/consumer"
	"github.com/vmware/vmware-go-cwl/clientlibrary/metrics"
	"github.com/vmware/vmware-go-cwl/clientlibrary/source"
)

// StreamTailer is responsible for tailing one log stream: fetching event
// pages from where the checkpoint left off, appending each record to the
// stream's file, fanning records out to consumers, and advancing the
// checkpoint once a page is durably written.
// Note: StreamTailer only deals with one stream; the file it writes is
// exclusively its own.
type StreamTailer struct {
	handle     *catalog.TailerHandle
	logSource  source.LogSource
	checkpoint *chk.Store
	consumers  []consumer.Consumer
	cwlConfig  *config.CloudWatchTailerConfiguration
	mService   metrics.MonitoringService
	stop       *chan struct{}
	fs         afero.Fs
}

// tail fetches pages for the stream until end-of-stream, an unrecoverable
// source error, or shutdown. Terminal state is recorded on the handle.
// Precondition: the tailer holds the catalog claim for the stream.
func (st *StreamTailer) tail() error {
	log := st.cwlConfig.Logger
	identity := st.handle.Identity

	st.handle.SetRunning()
	st.mService.TailerStarted(identity.StreamName)
	defer st.mService.TailerStopped(identity.StreamName)

	file, err := st.fs.OpenFile(st.handle.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Errorf("Unable to open log file %s for %s: %+v", st.handle.FilePath, identity, err)
		st.handle.SetFailed(err)
		return err
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	defer writer.Flush()

	// Resume from the last recorded token. A missing checkpoint means the
	// stream has not been read before; start from the head.
	fromToken, err := st.checkpoint.Get(identity)
	if err != nil && err != chk.ErrCheckpointNotFound {
		st.handle.SetFailed(err)
		return err
	}

	pager := st.logSource.GetLogEvents(identity.GroupName, identity.StreamName, fromToken)

	for {
		fetchStartTime := time.Now()
		page, err := pager.Next()
		if err == io.EOF {
			log.Infof("Reached end of stream %s", identity)
			st.handle.SetFinished()
			return nil
		}
		if err != nil {
			log.Errorf("Error fetching events for %s: %+v", identity, err)
			st.handle.SetFailed(err)
			return err
		}
		st.mService.RecordFetchPageTime(identity.StreamName, float64(time.Since(fetchStartTime).Milliseconds()))

		for _, record := range page.Records {
			consumer.Fanout(log, st.consumers, record, identity.GroupName, identity.StreamName)

			if _, err := writer.WriteString(record + "\n"); err != nil {
				log.Errorf("Error writing record for %s: %+v", identity, err)
				st.handle.SetFailed(err)
				return err
			}
			if err := writer.Flush(); err != nil {
				log.Errorf("Error flushing log file for %s: %+v", identity, err)
				st.handle.SetFailed(err)
				return err
			}
			st.mService.IncrRecordsWritten(identity.StreamName, 1)
			st.mService.IncrBytesWritten(identity.StreamName, int64(len(record)+1))
		}

		// Records in this page are on disk; advancing the checkpoint now
		// keeps replay-on-restart bounded to at most one page.
		st.checkpoint.Set(identity, page.NextToken)

		select {
		case <-*st.stop:
			log.Infof("Shutting down tailer for %s", identity)
			st.handle.SetStopped()
			return nil
		default:
		}
	}
}
