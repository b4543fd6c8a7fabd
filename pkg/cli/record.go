package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/urfave/cli/v3"
)

type recordOutput struct {
	Recorded  bool           `json:"recorded"`
	Duplicate bool           `json:"duplicate,omitempty"`
	Queued    bool           `json:"queued,omitempty"`
	MemoryID  model.MemoryID `json:"memoryId,omitempty"`
}

func cmdRecord() *cli.Command {
	var e env
	var ownerID string
	var kind string
	var eventJSON string
	var background bool

	kinds := make([]string, 0, len(model.EventKinds()))
	for _, k := range model.EventKinds() {
		kinds = append(kinds, k.String())
	}

	flags := []cli.Flag{
		ownerFlag(&ownerID),
		&cli.StringFlag{
			Name:        "event",
			Aliases:     []string{"e"},
			Usage:       "Event kind (" + strings.Join(kinds, ", ") + ")",
			Required:    true,
			Destination: &kind,
		},
		&cli.StringFlag{
			Name:        "event-json",
			Aliases:     []string{"j"},
			Usage:       `Event payload as JSON, e.g. {"hours": 7, "quality_score": 8}`,
			Value:       "{}",
			Destination: &eventJSON,
		},
		&cli.BoolFlag{
			Name:        "async",
			Usage:       "Record in the background; the command still waits before exiting",
			Destination: &background,
		},
	}
	flags = append(flags, e.Flags()...)

	return &cli.Command{
		Name:    "record",
		Aliases: []string{"r"},
		Usage:   "Record a domain event, skipping it when an equivalent memory exists",
		Flags:   flags,
		Action: e.withUseCases(func(ctx context.Context, c *cli.Command, uc *usecase.UseCases, client *memory.Client) error {
			event, err := model.DecodeEvent(model.EventKind(kind), []byte(eventJSON))
			if err != nil {
				return err
			}

			if background {
				uc.Ingest.RecordAsync(ctx, ownerID, event)
				return writeJSON(c.Root().Writer, recordOutput{Queued: true})
			}

			result, err := uc.Ingest.Record(ctx, ownerID, event)
			if err != nil {
				return goerr.Wrap(err, "failed to record event", goerr.V("kind", memory.KindOf(err)))
			}
			if result == nil {
				return writeJSON(c.Root().Writer, recordOutput{Duplicate: true})
			}
			if !result.Success {
				if err := client.Err(); err != nil {
					return goerr.Wrap(err, "event was not stored")
				}
				return goerr.New("event was not stored")
			}
			return writeJSON(c.Root().Writer, recordOutput{Recorded: true, MemoryID: result.MemoryID})
		}),
	}
}
