package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_HasRadiusStepsAndStoryBounds(t *testing.T) {
	cfg := DefaultConfig()
	want := []int{500, 900, 1500, 2400}
	if len(cfg.Geo.RadiusStepsMeters) != len(want) {
		t.Fatalf("RadiusStepsMeters = %v, want %v", cfg.Geo.RadiusStepsMeters, want)
	}
	for i, v := range want {
		if cfg.Geo.RadiusStepsMeters[i] != v {
			t.Errorf("RadiusStepsMeters[%d] = %d, want %d", i, cfg.Geo.RadiusStepsMeters[i], v)
		}
	}
	if cfg.Story.MinWords != 180 || cfg.Story.MaxWords != 340 {
		t.Errorf("story bounds = [%d,%d], want [180,340]", cfg.Story.MinWords, cfg.Story.MaxWords)
	}
}

func TestLoad_WritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address == "" {
		t.Error("expected a default server address")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be written: %v", err)
	}
}

func TestLoad_EnvOverridesPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("PORT", "9090")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":9090")
	}
}

func TestLoad_EnvOverridesRadiusAndScoreThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("POI_RADIUS_METERS", "800")
	t.Setenv("MIN_POI_SCORE_TO_SPEAK", "-50")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Geo.RadiusStepsMeters) != 1 || cfg.Geo.RadiusStepsMeters[0] != 800 {
		t.Errorf("RadiusStepsMeters = %v, want [800]", cfg.Geo.RadiusStepsMeters)
	}
	if cfg.Story.MinScoreToSpeak != -50 {
		t.Errorf("MinScoreToSpeak = %v, want -50", cfg.Story.MinScoreToSpeak)
	}
}

func TestLoad_OpenAIKeyFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers["openai"].Key != "sk-test-key" {
		t.Errorf("openai key = %q, want sk-test-key", cfg.LLM.Providers["openai"].Key)
	}
}
