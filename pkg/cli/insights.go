package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdInsights() *cli.Command {
	var e env
	var ownerID string
	var asJSON bool

	flags := []cli.Flag{
		ownerFlag(&ownerID),
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print insights as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, e.Flags()...)

	return &cli.Command{
		Name:    "insights",
		Aliases: []string{"i"},
		Usage:   "Generate insights from memory",
		Flags:   flags,
		Action: e.withUseCases(func(ctx context.Context, c *cli.Command, uc *usecase.UseCases, _ *memory.Client) error {
			insights := uc.Insight.GenerateInsights(ctx, ownerID)
			if asJSON {
				return writeJSON(c.Root().Writer, insights)
			}
			printInsights(c.Root().Writer, insights)
			return nil
		}),
	}
}

var insightColors = map[types.InsightType]*color.Color{
	types.InsightTypeCritical:   color.New(color.FgRed, color.Bold),
	types.InsightTypeWarning:    color.New(color.FgYellow, color.Bold),
	types.InsightTypeAction:     color.New(color.FgMagenta, color.Bold),
	types.InsightTypeSuggestion: color.New(color.FgCyan),
	types.InsightTypePositive:   color.New(color.FgGreen),
}

func printInsights(w io.Writer, insights []model.Insight) {
	if len(insights) == 0 {
		_, _ = fmt.Fprintln(w, "No insights available")
		return
	}

	dim := color.New(color.Faint)
	for _, in := range insights {
		c, ok := insightColors[in.Type]
		if !ok {
			c = color.New(color.Reset)
		}
		_, _ = c.Fprintf(w, "[%s] %s\n", strings.ToUpper(in.Type.String()), in.Title)
		_, _ = fmt.Fprintf(w, "  %s\n", in.Message)
		for _, ev := range in.Evidence {
			_, _ = dim.Fprintf(w, "  - %s\n", ev)
		}
		if in.SuggestedIntervention != "" {
			_, _ = fmt.Fprintf(w, "  suggested: %s\n", in.SuggestedIntervention)
		}
	}
}
