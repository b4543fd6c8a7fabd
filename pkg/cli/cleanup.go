package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Cleanup modes
const (
	cleanupAll        = "all"
	cleanupAge        = "age"
	cleanupConfidence = "confidence"
)

func cmdCleanup() *cli.Command {
	var e env
	var ownerID string
	var mode string
	var retentionDays int
	var minConfidence float64

	flags := []cli.Flag{
		ownerFlag(&ownerID),
		&cli.StringFlag{
			Name:        "mode",
			Usage:       "What to prune (all, age, confidence)",
			Value:       cleanupAll,
			Destination: &mode,
		},
		&cli.IntFlag{
			Name:        "retention-days",
			Usage:       "Delete memories older than this many days",
			Value:       usecase.DefaultRetentionDays,
			Destination: &retentionDays,
		},
		&cli.FloatFlag{
			Name:        "min-confidence",
			Usage:       "Delete memories whose confidence is below this value",
			Value:       usecase.DefaultConfidenceThreshold,
			Destination: &minConfidence,
		},
	}
	flags = append(flags, e.Flags()...)

	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete stale and low-confidence memories",
		Flags: flags,
		Action: e.withUseCases(func(ctx context.Context, c *cli.Command, uc *usecase.UseCases, _ *memory.Client) error {
			var (
				result *usecase.CleanupResult
				err    error
			)
			switch mode {
			case cleanupAll:
				result, err = uc.Hygiene.Cleanup(ctx, ownerID, retentionDays, minConfidence)
			case cleanupAge:
				result, err = uc.Hygiene.CleanupOldMemories(ctx, ownerID, retentionDays)
			case cleanupConfidence:
				result, err = uc.Hygiene.CleanupLowConfidence(ctx, ownerID, minConfidence)
			default:
				return goerr.New("unknown cleanup mode", goerr.V("mode", mode))
			}
			if err != nil {
				return goerr.Wrap(err, "cleanup failed", goerr.V("mode", mode))
			}
			return writeJSON(c.Root().Writer, result)
		}),
	}
}
