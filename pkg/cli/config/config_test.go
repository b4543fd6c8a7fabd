package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/pulsekit/healthmem/pkg/cli/config"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

const customRules = `
[[rule]]
name = "low-adherence"
type = "action"
title = "Meal Plan Drift"
message = "Only {plan_adherence_percent}% of recent meals followed the plan."

  [[rule.trend]]
  key = "plan_adherence_percent"
  op = "<"
  value = 50.0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestLoadCatalogue(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := config.LoadCatalogue(writeFile(t, "rules.toml", customRules))
		gt.NoError(t, err).Required()
		gt.A(t, c.Rules).Length(1).Required()
		gt.V(t, c.Rules[0].Type).Equal(types.InsightTypeAction)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadCatalogue(filepath.Join(t.TempDir(), "nope.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})

	t.Run("invalid catalogue", func(t *testing.T) {
		_, err := config.LoadCatalogue(writeFile(t, "rules.toml", "[[rule]]\nname = \"x\"\n"))
		gt.Error(t, err)
	})
}

func TestRules_Configure(t *testing.T) {
	t.Run("built-in", func(t *testing.T) {
		rules, err := config.NewRulesForTest("").Configure()
		gt.NoError(t, err).Required()
		gt.A(t, rules).Length(8)
	})

	t.Run("custom", func(t *testing.T) {
		rules, err := config.NewRulesForTest(writeFile(t, "rules.toml", customRules)).Configure()
		gt.NoError(t, err).Required()
		gt.A(t, rules).Length(1).Required()

		pack := model.NewContextPack(types.IntentNutritionPlan)
		pack.Trends[model.TrendPlanAdherencePercent] = 40
		insights := rules[0].Evaluate(pack)
		gt.A(t, insights).Length(1).Required()
		gt.V(t, insights[0].Message).Equal("Only 40% of recent meals followed the plan.")
	})
}

func TestLogger_Configure(t *testing.T) {
	prev := logging.Default()
	t.Cleanup(func() { logging.SetDefault(prev) })

	t.Run("json to file redacts PII", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Info("hello", "email", "user@example.com", "steps", 100)
		closer()

		raw, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.S(t, string(raw)).Contains("hello")
		gt.B(t, strings.Contains(string(raw), "user@example.com")).False()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("loud", "json", "stderr").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stderr").Configure()
		gt.Error(t, err)
	})
}

func TestMemory_Configure(t *testing.T) {
	testCases := map[string]struct {
		cfg        *config.Memory
		available  bool
		configured bool
	}{
		"remote with credentials": {
			cfg:        config.NewMemoryForTest("remote", "key", "coach", "https://memory.example.com"),
			available:  true,
			configured: true,
		},
		"remote without api key": {
			cfg:        config.NewMemoryForTest("remote", "", "coach", "https://memory.example.com"),
			available:  false,
			configured: false,
		},
		"remote with bad url": {
			cfg:        config.NewMemoryForTest("remote", "key", "coach", "ftp://memory.example.com"),
			available:  false,
			configured: true,
		},
		"local with ollama": {
			cfg:        config.NewMemoryForTest("local", "", "coach", ""),
			available:  true,
			configured: true,
		},
		"unknown backend": {
			cfg:        config.NewMemoryForTest("sqlite", "key", "coach", ""),
			available:  false,
			configured: false,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			client := tc.cfg.Configure(nil)
			health := client.CheckHealth()
			gt.V(t, health.Available).Equal(tc.available)
			gt.V(t, health.Configured).Equal(tc.configured)
		})
	}

	t.Run("local backend persists under local-path", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "memory")
		cfg := config.NewMemoryForTest("local", "", "coach", "")
		cfg.SetLocalPath(dir)

		client := cfg.Configure(nil)
		gt.V(t, client.State()).Equal(memory.StateAvailable)

		info, err := os.Stat(dir)
		gt.NoError(t, err).Required()
		gt.B(t, info.IsDir()).True()
	})

	t.Run("local openai needs a key", func(t *testing.T) {
		cfg := config.NewMemoryForTest("local", "", "coach", "")
		cfg.SetEmbedding(config.EmbeddingOpenAI, "")

		client := cfg.Configure(nil)
		gt.V(t, client.State()).Equal(memory.StateUnavailable)
		gt.Error(t, client.Err()).Is(memory.ErrUnavailable)
	})
}

func TestMetrics_Flush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthmem.prom")
	metrics := config.NewMetricsForTest(path)

	client := config.NewMemoryForTest("remote", "", "coach", "").Configure(metrics.Registry())
	_, err := client.AddMemory(context.Background(), "user-1", "text", model.Metadata{})
	gt.NoError(t, err)

	gt.NoError(t, metrics.Flush()).Required()
	raw, err := os.ReadFile(path)
	gt.NoError(t, err).Required()
	gt.S(t, string(raw)).Contains("healthmem_memory_operations_total")
	gt.S(t, string(raw)).Contains(`outcome="unavailable"`)

	t.Run("no textfile is a no-op", func(t *testing.T) {
		gt.NoError(t, config.NewMetricsForTest("").Flush())
	})
}
