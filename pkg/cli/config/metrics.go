package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// Metrics holds CLI flags for metrics export. A CLI run is short lived, so
// metrics are written once to a node_exporter textfile instead of served.
type Metrics struct {
	textfile string
	registry *prometheus.Registry
}

func (x *Metrics) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "metrics-textfile",
			Usage:       "Write memory store metrics to this file on exit",
			Category:    "Metrics",
			Sources:     cli.EnvVars("HEALTHMEM_METRICS_TEXTFILE"),
			Destination: &x.textfile,
		},
	}
}

func (x Metrics) LogValue() slog.Value {
	return slog.StringValue(x.textfile)
}

// Registry returns the registry collectors are registered with
func (x *Metrics) Registry() *prometheus.Registry {
	if x.registry == nil {
		x.registry = prometheus.NewRegistry()
	}
	return x.registry
}

// Flush writes the gathered metrics when a textfile is configured
func (x *Metrics) Flush() error {
	if x.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(x.textfile, x.Registry()); err != nil {
		return goerr.Wrap(err, "failed to write metrics textfile", goerr.V("path", x.textfile))
	}
	return nil
}
