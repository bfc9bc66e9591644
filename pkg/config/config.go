// Package config implements the configuration provider (C13): a YAML file
// with environment-variable secret/override injection, following the
// teacher's nested-struct + custom scalar-type pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the immutable application configuration, read once at
// startup per spec.md §5 ("configuration is an immutable value read at
// startup").
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Request  RequestConfig  `yaml:"request"`
	Geo      GeoConfig      `yaml:"geo"`
	Story    StoryConfig    `yaml:"story"`
	LLM      LLMConfig      `yaml:"llm"`
	TTS      TTSConfig      `yaml:"tts"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Places   PlacesConfig   `yaml:"places"`
	OSM      OSMConfig      `yaml:"osm"`
	Wikidata WikidataConfig `yaml:"wikidata"`
	Filler   FillerConfig   `yaml:"filler"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address          string   `yaml:"address"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// RequestConfig holds outbound HTTP client settings.
type RequestConfig struct {
	TimeoutMs   int           `yaml:"timeout_ms"`
	BatchTimeoutMs int        `yaml:"batch_timeout_ms"`
	Backoff     BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// GeoConfig holds POI aggregation geometry settings.
type GeoConfig struct {
	RadiusStepsMeters []int    `yaml:"radius_steps_meters"`
	MaxCandidateDist  Distance `yaml:"max_candidate_distance"`
	MaxCandidates     int      `yaml:"max_candidates"`
	GeoCacheTTL       Duration `yaml:"geo_cache_ttl"`
	DisplayRoundStep  Distance `yaml:"display_round_step"`
}

// StoryConfig holds prompt/validator length and scoring bounds.
type StoryConfig struct {
	MinWords          int     `yaml:"min_words"`
	MaxWords          int     `yaml:"max_words"`
	MinFactsToSpeak   int     `yaml:"min_facts_to_speak"`
	MinAnchorsToSpeak int     `yaml:"min_anchors_to_speak"`
	MinScoreToSpeak   float64 `yaml:"min_score_to_speak"`
}

// LLMConfig holds settings for the LLM providers and their fallback chain.
type LLMConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Fallback  []string                  `yaml:"fallback"`
	LogPath   string                    `yaml:"log_path"`
	LogEnabled bool                     `yaml:"log_enabled"`
}

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	Type     string            `yaml:"type"`
	Key      string            `yaml:"-"`
	BaseURL  string            `yaml:"base_url"`
	Profiles map[string]string `yaml:"profiles"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine string `yaml:"engine"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds the durable store settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// PlacesConfig holds the commercial places fallback adapter settings.
type PlacesConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"-"`
}

// OSMConfig holds the Overpass/OSM adapter settings.
type OSMConfig struct {
	NominatimBaseURL string `yaml:"nominatim_base_url"`
	OverpassBaseURL  string `yaml:"overpass_base_url"`
	UserAgent        string `yaml:"user_agent"`
}

// WikidataConfig holds knowledge-graph adapter settings.
type WikidataConfig struct {
	SparqlEndpoint string `yaml:"sparql_endpoint"`
}

// FillerConfig holds the language-keyed banned-filler and sensitive-content
// denylists (spec.md §6, §4.6c).
type FillerConfig struct {
	BannedByLang    map[string][]string `yaml:"banned_by_lang"`
	SensitiveByLang map[string][]string `yaml:"sensitive_by_lang"`
	SignalByLang    map[string][]string `yaml:"signal_by_lang"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          "localhost:8080",
			CORSAllowOrigins: []string{"*"},
		},
		Request: RequestConfig{
			TimeoutMs:      6500,
			BatchTimeoutMs: 12000,
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Geo: GeoConfig{
			RadiusStepsMeters: []int{500, 900, 1500, 2400},
			MaxCandidateDist:  Distance(2200),
			MaxCandidates:     18,
			GeoCacheTTL:       Duration(6 * time.Hour),
			DisplayRoundStep:  Distance(50),
		},
		Story: StoryConfig{
			MinWords:          180,
			MaxWords:          340,
			MinFactsToSpeak:   10,
			MinAnchorsToSpeak: 2,
			MinScoreToSpeak:   0,
		},
		LLM: LLMConfig{
			Providers: map[string]ProviderConfig{
				"openai": {
					Type: "openai",
					Profiles: map[string]string{
						"narration":    "gpt-4o-mini",
						"fact_extract": "gpt-4o-mini",
					},
				},
				"perplexity": {
					Type: "perplexity",
					Profiles: map[string]string{
						"fact_extract": "sonar",
					},
				},
			},
			Fallback:   []string{"openai", "perplexity"},
			LogPath:    "./logs/llm.log",
			LogEnabled: true,
		},
		TTS: TTSConfig{Engine: "edge-tts"},
		Log: LogConfig{
			Server:   LogSettings{Path: "./logs/server.log", Level: "INFO"},
			Requests: LogSettings{Path: "./logs/requests.log", Level: "INFO"},
		},
		DB: DBConfig{Path: "./data/wayfarer.db"},
		Places: PlacesConfig{
			BaseURL: "https://places.googleapis.com/v1/places:searchNearby",
		},
		OSM: OSMConfig{
			NominatimBaseURL: "https://nominatim.openstreetmap.org",
			OverpassBaseURL:  "https://overpass-api.de/api/interpreter",
			UserAgent:        "wayfarer-narrator/1.0 (contact=ops@wayfarer.example)",
		},
		Wikidata: WikidataConfig{
			SparqlEndpoint: "https://query.wikidata.org/sparql",
		},
		Filler: FillerConfig{
			BannedByLang: map[string][]string{
				"en": {"must-see", "breathtaking", "hidden gem", "nestled", "boasts", "in conclusion", "as you can see", "drive safely", "enjoy your trip"},
				"he": {"חובה לראות", "עוצר נשימה", "אבן חן נסתרת"},
			},
			SensitiveByLang: map[string][]string{
				"en": {"war", "terror", "massacre", "genocide", "assassination"},
				"he": {"מלחמה", "טרור", "טבח", "רצח עם", "התנקשות"},
			},
			SignalByLang: map[string][]string{
				"en": {"built", "founded", "constructed", "destroyed", "restored", "renamed", "discovered", "excavated", "designated", "inhabitants", "meters", "metres", "acres", "residents"},
				"he": {"נבנה", "נוסד", "נהרס", "שופץ", "שונה שם", "התגלה", "תושבים", "מטרים", "דונם"},
			},
		},
	}
}

// Load reads the configuration from path, merging YAML defaults with
// environment-variable overrides. If path does not exist, defaults are
// written there and returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	_ = godotenv.Load(".env.local", ".env")
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Save writes the configuration to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Wayfarer Configuration
# ---------------------
# Supported units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvOverrides reads spec.md §6's environment variables as overrides
// on top of the YAML-loaded defaults.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.CORSAllowOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("OSM_NOMINATIM_BASE_URL"); v != "" {
		cfg.OSM.NominatimBaseURL = v
	}
	if v := os.Getenv("OSM_USER_AGENT"); v != "" {
		cfg.OSM.UserAgent = v
	}
	if v := os.Getenv("GEO_CACHE_TTL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Geo.GeoCacheTTL = Duration(time.Duration(ms) * time.Millisecond)
		}
	}
	if v := os.Getenv("HTTP_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Request.TimeoutMs = ms
		}
	}
	if v := os.Getenv("POI_RADIUS_METERS"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.Geo.RadiusStepsMeters = []int{m}
		}
	}
	if v := os.Getenv("POI_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Geo.MaxCandidates = n
		}
	}
	if v := os.Getenv("MIN_POI_SCORE_TO_SPEAK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Story.MinScoreToSpeak = f
		}
	}
	if v := os.Getenv("GOOGLE_PLACES_API_KEY"); v != "" {
		cfg.Places.Key = v
	}

	for name, p := range cfg.LLM.Providers {
		switch p.Type {
		case "openai":
			if key := os.Getenv("OPENAI_API_KEY"); key != "" {
				p.Key = key
			}
			if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
				p.BaseURL = base
			}
		case "gemini":
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				p.Key = key
			}
		case "groq":
			if key := os.Getenv("GROQ_API_KEY"); key != "" {
				p.Key = key
			}
		case "nvidia":
			if key := os.Getenv("NVIDIA_API_KEY"); key != "" {
				p.Key = key
			}
		case "deepseek":
			if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
				p.Key = key
			}
		case "perplexity":
			if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
				p.Key = key
			}
		}
		cfg.LLM.Providers[name] = p
	}
}
