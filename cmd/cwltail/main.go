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

// cwltail tails a CloudWatch Logs group to local files, one file per log
// stream, resuming from where the previous run stopped. All configuration
// comes from the environment; see the config package for the variables.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/vmware/vmware-go-cwl/clientlibrary/config"
	"github.com/vmware/vmware-go-cwl/clientlibrary/consumer"
	wk "github.com/vmware/vmware-go-cwl/clientlibrary/worker"
	"github.com/vmware/vmware-go-cwl/logger"
)

func main() {
	log := logger.GetDefaultLogger()

	cwlConfig, err := config.NewConfigFromEnv()
	if err != nil {
		log.Errorf("Failed to load configuration: %+v", err)
		os.Exit(1)
	}
	cwlConfig.WithLogger(log)

	worker := wk.NewWorker(cwlConfig).
		WithConsumers(&consumer.LoggingConsumer{Logger: log, Environment: cwlConfig.EnvironmentTag})
	if err := worker.Start(); err != nil {
		log.Errorf("Failed to start worker: %+v", err)
		os.Exit(1)
	}
	log.Infof("Tailing log group %s in %s", cwlConfig.LogGroupName, cwlConfig.RegionName)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infof("Received signal %s. Exiting", sig)

	worker.Shutdown()
}
