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
package consumer

import (
	"github.com/vmware/vmware-go-cwl/logger"
)

// Consumer receives every retrieved record, e.g. to forward parsed records
// to an analytics system. Implementations must absorb their own failures; a
// failing record must never interrupt the records after it.
type Consumer interface {
	Process(record, groupName, streamName string)
}

// Fanout delivers a record to every consumer. A panicking consumer is
// logged and skipped for that record; delivery to the remaining consumers
// and records continues.
func Fanout(log logger.Logger, consumers []Consumer, record, groupName, streamName string) {
	for _, c := range consumers {
		process(log, c, record, groupName, streamName)
	}
}

func process(log logger.Logger, c Consumer, record, groupName, streamName string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Consumer failed on record from %s/%s: %+v", groupName, streamName, r)
		}
	}()
	c.Process(record, groupName, streamName)
}

// LoggingConsumer writes each record to the logger at debug level. Useful
// as a tracing tap and as the reference Consumer implementation. Environment,
// when set, labels every record with the deployment it came from.
type LoggingConsumer struct {
	Logger      logger.Logger
	Environment string
}

func (c *LoggingConsumer) Process(record, groupName, streamName string) {
	fields := logger.Fields{
		"logGroup":  groupName,
		"logStream": streamName,
	}
	if c.Environment != "" {
		fields["env"] = c.Environment
	}
	c.Logger.WithFields(fields).Debugf("%s", record)
}
