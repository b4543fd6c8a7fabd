package rule

import (
	_ "embed"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed default.toml
var defaultCatalogue []byte

// ParseCatalogue decodes and validates a TOML rule catalogue
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, goerr.Wrap(err, "failed to parse rule catalogue")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultCatalogue returns a fresh copy of the built-in rules
func DefaultCatalogue() *Catalogue {
	c, err := ParseCatalogue(defaultCatalogue)
	if err != nil {
		panic("built-in rule catalogue is broken: " + err.Error())
	}
	return c
}

// DefaultBattery compiles the built-in rules
func DefaultBattery() []Rule {
	rules, err := NewBattery(DefaultCatalogue())
	if err != nil {
		panic("built-in rule catalogue is broken: " + err.Error())
	}
	return rules
}
