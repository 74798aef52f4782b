// Command all-smi is a cross-vendor accelerator telemetry collector: a
// Prometheus-style exporter ("api") and a rolling snapshot viewer
// ("view") that can aggregate many such exporters across a cluster.
package main

import (
	"os"

	"github.com/accelmetrics/all-smi/internal/cli"
)

func main() {
	os.Exit(cli.New().Run(os.Args[1:]))
}
