package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdAdd() *cli.Command {
	var e env
	var ownerID string
	var text string
	var category string
	var source string
	var confidence float64
	var timestamp string
	var timezone string
	var tags []string
	var fields []string
	var metadataJSON string

	flags := []cli.Flag{
		ownerFlag(&ownerID),
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"t"},
			Usage:       "Natural language description of the memory",
			Required:    true,
			Destination: &text,
		},
		&cli.StringFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "Memory category (e.g. recovery.sleep, user.defined)",
			Value:       types.CategoryUserDefined.String(),
			Destination: &category,
		},
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Memory source",
			Value:       types.SourceUserInput.String(),
			Destination: &source,
		},
		&cli.FloatFlag{
			Name:        "confidence",
			Usage:       "Confidence in [0, 1] (source default when omitted)",
			Destination: &confidence,
		},
		&cli.StringFlag{
			Name:        "timestamp",
			Usage:       "Event time, ISO-8601 (now when omitted)",
			Destination: &timestamp,
		},
		&cli.StringFlag{
			Name:        "timezone",
			Usage:       "IANA timezone of the event",
			Destination: &timezone,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Usage:       "Tag, repeatable",
			Destination: &tags,
		},
		&cli.StringSliceFlag{
			Name:        "field",
			Aliases:     []string{"f"},
			Usage:       "Category field as key=value, repeatable (numbers are parsed)",
			Destination: &fields,
		},
		&cli.StringFlag{
			Name:        "metadata-json",
			Usage:       "Full metadata as a JSON object; other metadata flags are ignored",
			Destination: &metadataJSON,
		},
	}
	flags = append(flags, e.Flags()...)

	return &cli.Command{
		Name:    "add",
		Aliases: []string{"a"},
		Usage:   "Add a memory manually",
		Flags:   flags,
		Action: e.withUseCases(func(ctx context.Context, c *cli.Command, uc *usecase.UseCases, client *memory.Client) error {
			var metadata model.Metadata
			if metadataJSON != "" {
				parsed, err := model.ParseMetadata([]byte(metadataJSON))
				if err != nil {
					return err
				}
				metadata = *parsed
			} else {
				ms, err := parseFields(fields)
				if err != nil {
					return err
				}
				metadata = model.Metadata{
					Category:       types.Category(category),
					Source:         types.Source(source),
					Timestamp:      timestamp,
					Timezone:       timezone,
					Tags:           tags,
					ModuleSpecific: ms,
				}
				if c.IsSet("confidence") {
					metadata.Confidence = model.Confidence(confidence)
				}
			}

			result, err := uc.Store().AddMemory(ctx, ownerID, text, metadata)
			if err != nil {
				return goerr.Wrap(err, "failed to add memory", goerr.V("kind", memory.KindOf(err)))
			}
			if !result.Success {
				if err := client.Err(); err != nil {
					return goerr.Wrap(err, "memory was not stored")
				}
				return goerr.New("memory was not stored")
			}
			return writeJSON(c.Root().Writer, result)
		}),
	}
}

// parseFields turns key=value pairs into module specific fields. Numeric
// values become float64.
func parseFields(pairs []string) (model.ModuleSpecific, error) {
	ms := model.ModuleSpecific{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, goerr.Wrap(model.ErrInvalidMetadata, "field must be key=value", goerr.V(model.FieldKey, p))
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			ms[key] = n
			continue
		}
		ms[key] = value
	}
	return ms, nil
}
