package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/rule"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Rules holds CLI flags for the insight rule catalogue
type Rules struct {
	path string
}

// Flags returns CLI flags for rule configuration
func (x *Rules) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "rules",
			Usage:       "Path to a TOML insight rule catalogue (built-in rules when empty)",
			Category:    "Insights",
			Sources:     cli.EnvVars("HEALTHMEM_RULES"),
			Destination: &x.path,
		},
	}
}

func (x Rules) LogValue() slog.Value {
	if x.path == "" {
		return slog.StringValue("built-in")
	}
	return slog.StringValue(x.path)
}

// Configure compiles the configured catalogue into a rule battery
func (x *Rules) Configure() ([]rule.Rule, error) {
	if x.path == "" {
		return rule.DefaultBattery(), nil
	}

	catalogue, err := LoadCatalogue(x.path)
	if err != nil {
		return nil, err
	}
	rules, err := rule.NewBattery(catalogue)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile rule catalogue", goerr.V(ConfigPathKey, x.path))
	}

	logging.Default().Info("Loaded insight rules", "path", x.path, "count", len(rules))
	return rules, nil
}

// LoadCatalogue loads an insight rule catalogue from a TOML file
func LoadCatalogue(path string) (*rule.Catalogue, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "rule catalogue does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read rule catalogue", goerr.V(ConfigPathKey, path))
	}

	catalogue, err := rule.ParseCatalogue(data)
	if err != nil {
		return nil, goerr.Wrap(err, "rule catalogue validation failed", goerr.V(ConfigPathKey, path))
	}
	return catalogue, nil
}
