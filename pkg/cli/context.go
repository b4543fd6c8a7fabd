package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdContext() *cli.Command {
	var e env
	var ownerID string
	var intent string

	flags := []cli.Flag{
		ownerFlag(&ownerID),
		&cli.StringFlag{
			Name:        "intent",
			Aliases:     []string{"i"},
			Usage:       "Context intent (fitness_plan, nutrition_plan, insights)",
			Value:       types.IntentInsights.String(),
			Destination: &intent,
		},
	}
	flags = append(flags, e.Flags()...)

	return &cli.Command{
		Name:  "context",
		Usage: "Print the context pack built for an intent",
		Flags: flags,
		Action: e.withUseCases(func(ctx context.Context, c *cli.Command, uc *usecase.UseCases, _ *memory.Client) error {
			parsed, err := types.ParseIntent(intent)
			if err != nil {
				return goerr.Wrap(err, "invalid intent", goerr.V("intent", intent))
			}

			pack := uc.Context.BuildMemoryContext(ctx, ownerID, parsed)
			return writeJSON(c.Root().Writer, pack)
		}),
	}
}
