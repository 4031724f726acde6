package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boobootoo2/medbilldozer-sub000/internal/analysis"
	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MockBackend is a mock llm.Backend for testing
type MockBackend struct {
	Key       string
	Available bool
}

func (m *MockBackend) Name() string { return m.Key }

func (m *MockBackend) IsAvailable(ctx context.Context) bool { return m.Available }

func (m *MockBackend) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("not used")
}

func TestApplyEnvCredentials(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":       "sk-test-123456789",
		"GOOGLE_CLOUD_PROJECT": "my-project",
		"OLLAMA_BASE_URL":      "http://gpu-box:11434",
	}
	cfg := model.DefaultConfig()
	applyEnvCredentials(cfg, func(k string) string { return env[k] })

	if !cfg.Backends.OpenAI.Enabled || cfg.Backends.OpenAI.APIKey != "sk-test-123456789" {
		t.Errorf("openai not configured from env: %+v", cfg.Backends.OpenAI)
	}
	if !cfg.Backends.Gemini.Enabled || cfg.Backends.Gemini.Project != "my-project" {
		t.Errorf("gemini not configured from env: %+v", cfg.Backends.Gemini)
	}
	if !cfg.Backends.MedGemma.Enabled || cfg.Backends.MedGemma.BaseURL != "http://gpu-box:11434" {
		t.Errorf("medgemma not configured from env: %+v", cfg.Backends.MedGemma)
	}
	if cfg.Backends.Anthropic.Enabled {
		t.Error("anthropic should stay disabled without a key")
	}
}

func TestApplyEnvCredentials_ConfigKeyWins(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Backends.Anthropic.APIKey = "from-config"
	applyEnvCredentials(cfg, func(k string) string {
		if k == "ANTHROPIC_API_KEY" {
			return "from-env"
		}
		return ""
	})
	if cfg.Backends.Anthropic.APIKey != "from-config" || !cfg.Backends.Anthropic.Enabled {
		t.Errorf("unexpected anthropic config %+v", cfg.Backends.Anthropic)
	}
}

func TestMasked(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Backends.OpenAI.APIKey = "sk-abcdefghijklmnop"
	cfg.Backends.Anthropic.APIKey = "short"

	out := masked(cfg)
	if out.Backends.OpenAI.APIKey != "sk-a****mnop" {
		t.Errorf("unexpected mask %q", out.Backends.OpenAI.APIKey)
	}
	if out.Backends.Anthropic.APIKey != "****" {
		t.Errorf("unexpected mask %q", out.Backends.Anthropic.APIKey)
	}
	if cfg.Backends.OpenAI.APIKey != "sk-abcdefghijklmnop" {
		t.Error("masking must not modify the original config")
	}
}

func TestDefaultConfigFile_Parses(t *testing.T) {
	data, err := defaultConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# medbilldozer configuration file") {
		t.Error("missing header")
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("default config file is not valid YAML: %v", err)
	}
	if cfg.Analysis.DefaultProvider != "smart" || cfg.Backends.MedGemma.Model != "medgemma" {
		t.Errorf("unexpected parsed config %+v", cfg.Analysis)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("MEDBILLDOZER_ANALYSIS_DEFAULT_PROVIDER", "local")
	t.Setenv("MEDBILLDOZER_ANALYSIS_TIMEOUT", "5s")

	registerDefaults()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.DefaultProvider != "local" {
		t.Errorf("expected env override, got %q", cfg.Analysis.DefaultProvider)
	}
	if cfg.Analysis.Timeout.Seconds() != 5 {
		t.Errorf("expected 5s timeout, got %v", cfg.Analysis.Timeout)
	}
	if cfg.Backends.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("defaults should survive, got %q", cfg.Backends.OpenAI.Model)
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Analysis.CanonicalizerEnabled = true
	backends := map[string]llm.Backend{
		llm.KeyMedGemma:  &MockBackend{Key: llm.KeyMedGemma, Available: true},
		llm.KeyOpenAI:    &MockBackend{Key: llm.KeyOpenAI, Available: true},
		llm.KeyAnthropic: &MockBackend{Key: llm.KeyAnthropic, Available: false},
	}

	r := buildRegistry(context.Background(), cfg, backends)

	want := []string{analysis.KeyEnsemble, analysis.KeyLocal, analysis.KeyMedGemma, analysis.KeyOpenAI}
	if got := strings.Join(r.Keys(), ","); got != strings.Join(want, ",") {
		t.Errorf("expected providers %v, got %v", want, r.Keys())
	}
	if got := r.Excluded(); len(got) != 1 || got[0] != analysis.KeyAnthropic {
		t.Errorf("expected anthropic excluded, got %v", got)
	}

	smart, err := r.Select(analysis.KeySmart)
	if err != nil || smart.Name() != analysis.KeyEnsemble {
		t.Errorf("smart should pick the ensemble, got %v, %v", smart, err)
	}
}

func TestBuildRegistry_Offline(t *testing.T) {
	r := buildRegistry(context.Background(), model.DefaultConfig(), map[string]llm.Backend{})
	if keys := r.Keys(); len(keys) != 1 || keys[0] != analysis.KeyLocal {
		t.Errorf("expected only local, got %v", keys)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"bill.txt":              "bill",
		"dir/My Statement.html": "My-Statement",
		"a:b?c.md":              "a_b_c",
		"":                      "",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinOutput(t *testing.T) {
	if got := joinOutput("gs://bucket/reports/", "session.json"); got != "gs://bucket/reports/session.json" {
		t.Errorf("unexpected gs path %q", got)
	}
	if got := joinOutput("out", "session.json"); got != "out/session.json" {
		t.Errorf("unexpected local path %q", got)
	}
}

func TestOpenCache_UsesConfiguredDir(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	registerDefaults()
	dir := t.TempDir()
	viper.Set("cache.dir", dir)

	c, got, err := openCache()
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("cache dir = %s, want %s", got, dir)
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if n, _, _ := c.Usage(); n != 1 {
		t.Errorf("Usage entries = %d, want 1", n)
	}
}
