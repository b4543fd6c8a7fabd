package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/cli/config"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/pulsekit/healthmem/pkg/utils/async"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// env bundles the configuration shared by every memory command
type env struct {
	memory  config.Memory
	rules   config.Rules
	sentry  config.Sentry
	metrics config.Metrics
}

func (x *env) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.memory.Flags()...)
	flags = append(flags, x.rules.Flags()...)
	flags = append(flags, x.sentry.Flags()...)
	flags = append(flags, x.metrics.Flags()...)
	return flags
}

// Configure builds the store client and use cases. The returned closer
// waits for background writes, flushes metrics and Sentry.
func (x *env) Configure(c *cli.Command) (*usecase.UseCases, *memory.Client, func(), error) {
	flushSentry, err := x.sentry.Configure(c.Root().Version)
	if err != nil {
		return nil, nil, nil, err
	}

	rules, err := x.rules.Configure()
	if err != nil {
		flushSentry()
		return nil, nil, nil, goerr.Wrap(err, "failed to configure insight rules")
	}

	logging.Default().Debug("Memory configuration",
		"memory", x.memory,
		"rules", x.rules,
		"sentry", x.sentry,
		"metrics", x.metrics,
	)

	client := x.memory.Configure(x.metrics.Registry())
	uc := usecase.New(client, usecase.WithRules(rules))

	closer := func() {
		async.Wait()
		if err := x.metrics.Flush(); err != nil {
			logging.Default().Error("failed to flush metrics", "error", err)
		}
		flushSentry()
	}
	return uc, client, closer, nil
}

// withUseCases runs action with configured use cases and always releases
// them afterwards
func (x *env) withUseCases(action func(ctx context.Context, c *cli.Command, uc *usecase.UseCases, client *memory.Client) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		uc, client, closer, err := x.Configure(c)
		if err != nil {
			return err
		}
		defer closer()
		return action(ctx, c, uc, client)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write output")
	}
	return nil
}

func ownerFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "owner",
		Aliases:     []string{"u"},
		Usage:       "Owner (user) identifier memories belong to",
		Required:    true,
		Sources:     cli.EnvVars("HEALTHMEM_OWNER"),
		Destination: dst,
	}
}
