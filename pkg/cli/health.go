package cli

import (
	"context"

	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/usecase"
	"github.com/urfave/cli/v3"
)

type healthReport struct {
	Available  bool   `json:"available"`
	Configured bool   `json:"configured"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
}

func cmdHealth() *cli.Command {
	var e env

	return &cli.Command{
		Name:  "health",
		Usage: "Report memory store state without contacting the backend",
		Flags: e.Flags(),
		Action: e.withUseCases(func(ctx context.Context, c *cli.Command, _ *usecase.UseCases, client *memory.Client) error {
			h := client.CheckHealth()
			report := healthReport{
				Available:  h.Available,
				Configured: h.Configured,
				State:      client.State().String(),
			}
			if err := client.Err(); err != nil {
				report.Error = err.Error()
			}
			return writeJSON(c.Root().Writer, report)
		}),
	}
}
