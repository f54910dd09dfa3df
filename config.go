package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"time"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	Addr string `json:"addr"` // HTTP listen address
	DB   string `json:"db"`   // database connection string
	Dev  bool   `json:"dev"`  // dev mode: verbose logging

	// Session rules
	PreSeconds    int  `json:"pre_seconds"`     // length of the pre phase
	DaySeconds    int  `json:"day_seconds"`     // length of each day phase
	NightSeconds  int  `json:"night_seconds"`   // length of each night phase
	AllowSelfVote bool `json:"allow_self_vote"` // whether a player may vote for themself

	// Group membership lookup
	MembershipBackend string `json:"membership_backend"` // sqlite | redis
	RedisAddr         string `json:"redis_addr"`

	// AI Narrator
	NarratorProvider    string `json:"narrator_provider"`    // ollama | openai | claude | openai-compatible
	NarratorModel       string `json:"narrator_model"`       // model name
	NarratorOllamaURL   string `json:"narrator_ollama_url"`  // Ollama server URL
	NarratorURL         string `json:"narrator_url"`         // base URL for openai-compatible
	NarratorAPIKey      string `json:"narrator_api_key"`     // API key for openai-compatible
	NarratorTemperature string `json:"narrator_temperature"` // float 0-1 as string
}

func (cfg AppConfig) durations() PhaseDurations {
	return PhaseDurations{
		Pre:   time.Duration(cfg.PreSeconds) * time.Second,
		Day:   time.Duration(cfg.DaySeconds) * time.Second,
		Night: time.Duration(cfg.NightSeconds) * time.Second,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		Addr:              ":8080",
		DB:                "file::memory:?cache=shared",
		PreSeconds:        30,
		DaySeconds:        300,
		NightSeconds:      180,
		MembershipBackend: "sqlite",
		RedisAddr:         "localhost:6379",
		NarratorOllamaURL: "http://localhost:11434",
	}
}

// loadConfig builds a config by layering: defaults → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 1: env vars
	envStr := os.Getenv
	envBool := func(key string) (val bool, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return false, false
		}
		return v == "1" || v == "true" || v == "yes", true
	}
	envInt := func(key string) (val int, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Config: invalid %s=%q, ignoring", key, v)
			return 0, false
		}
		return n, true
	}

	if v := envStr("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := envStr("DB"); v != "" {
		cfg.DB = v
	}
	if v, ok := envBool("DEV"); ok {
		cfg.Dev = v
	}
	if v, ok := envInt("PRE_SECONDS"); ok {
		cfg.PreSeconds = v
	}
	if v, ok := envInt("DAY_SECONDS"); ok {
		cfg.DaySeconds = v
	}
	if v, ok := envInt("NIGHT_SECONDS"); ok {
		cfg.NightSeconds = v
	}
	if v, ok := envBool("ALLOW_SELF_VOTE"); ok {
		cfg.AllowSelfVote = v
	}
	if v := envStr("MEMBERSHIP_BACKEND"); v != "" {
		cfg.MembershipBackend = v
	}
	if v := envStr("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := envStr("NARRATOR_PROVIDER"); v != "" {
		cfg.NarratorProvider = v
	}
	if v := envStr("NARRATOR_MODEL"); v != "" {
		cfg.NarratorModel = v
	}
	if v := envStr("NARRATOR_OLLAMA_URL"); v != "" {
		cfg.NarratorOllamaURL = v
	}
	if v := envStr("NARRATOR_URL"); v != "" {
		cfg.NarratorURL = v
	}
	if v := envStr("NARRATOR_API_KEY"); v != "" {
		cfg.NarratorAPIKey = v
	}
	if v := envStr("NARRATOR_TEMPERATURE"); v != "" {
		cfg.NarratorTemperature = v
	}

	// Layer 2: JSON config file — only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	str := func(key string, dst *string) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	str("addr", &cfg.Addr)
	str("db", &cfg.DB)
	boolean("dev", &cfg.Dev)
	integer("pre_seconds", &cfg.PreSeconds)
	integer("day_seconds", &cfg.DaySeconds)
	integer("night_seconds", &cfg.NightSeconds)
	boolean("allow_self_vote", &cfg.AllowSelfVote)
	str("membership_backend", &cfg.MembershipBackend)
	str("redis_addr", &cfg.RedisAddr)
	str("narrator_provider", &cfg.NarratorProvider)
	str("narrator_model", &cfg.NarratorModel)
	str("narrator_ollama_url", &cfg.NarratorOllamaURL)
	str("narrator_url", &cfg.NarratorURL)
	str("narrator_api_key", &cfg.NarratorAPIKey)
	str("narrator_temperature", &cfg.NarratorTemperature)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath          *string
	addr                *string
	db                  *string
	dev                 *bool
	preSeconds          *int
	daySeconds          *int
	nightSeconds        *int
	allowSelfVote       *bool
	membershipBackend   *string
	redisAddr           *string
	narratorProvider    *string
	narratorModel       *string
	narratorOllamaURL   *string
	narratorURL         *string
	narratorAPIKey      *string
	narratorTemperature *string
}

// registerFlags registers all CLI flags and returns pointers to their values.
// Call flag.Parse() after this, then applyTo to layer them over the loaded config.
func registerFlags() flagValues {
	return flagValues{
		configPath:          flag.String("config", "config.json", "path to JSON config file"),
		addr:                flag.String("addr", "", "HTTP listen address (e.g. :8080)"),
		db:                  flag.String("db", "", "database connection string"),
		dev:                 flag.Bool("dev", false, "enable development mode (verbose logging)"),
		preSeconds:          flag.Int("pre-seconds", 0, "length of the pre phase in seconds"),
		daySeconds:          flag.Int("day-seconds", 0, "length of each day phase in seconds"),
		nightSeconds:        flag.Int("night-seconds", 0, "length of each night phase in seconds"),
		allowSelfVote:       flag.Bool("allow-self-vote", false, "allow players to vote for themselves"),
		membershipBackend:   flag.String("membership-backend", "", "group membership backend (sqlite|redis)"),
		redisAddr:           flag.String("redis-addr", "", "redis address for the redis membership backend"),
		narratorProvider:    flag.String("narrator-provider", "", "AI narrator provider (ollama|openai|claude|openai-compatible)"),
		narratorModel:       flag.String("narrator-model", "", "AI narrator model name"),
		narratorOllamaURL:   flag.String("narrator-ollama-url", "", "Ollama server URL"),
		narratorURL:         flag.String("narrator-url", "", "base URL for openai-compatible provider"),
		narratorAPIKey:      flag.String("narrator-api-key", "", "API key for narrator provider"),
		narratorTemperature: flag.String("narrator-temperature", "", "sampling temperature 0-1"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(cfg *AppConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *fv.addr
		case "db":
			cfg.DB = *fv.db
		case "dev":
			cfg.Dev = *fv.dev
		case "pre-seconds":
			cfg.PreSeconds = *fv.preSeconds
		case "day-seconds":
			cfg.DaySeconds = *fv.daySeconds
		case "night-seconds":
			cfg.NightSeconds = *fv.nightSeconds
		case "allow-self-vote":
			cfg.AllowSelfVote = *fv.allowSelfVote
		case "membership-backend":
			cfg.MembershipBackend = *fv.membershipBackend
		case "redis-addr":
			cfg.RedisAddr = *fv.redisAddr
		case "narrator-provider":
			cfg.NarratorProvider = *fv.narratorProvider
		case "narrator-model":
			cfg.NarratorModel = *fv.narratorModel
		case "narrator-ollama-url":
			cfg.NarratorOllamaURL = *fv.narratorOllamaURL
		case "narrator-url":
			cfg.NarratorURL = *fv.narratorURL
		case "narrator-api-key":
			cfg.NarratorAPIKey = *fv.narratorAPIKey
		case "narrator-temperature":
			cfg.NarratorTemperature = *fv.narratorTemperature
		}
	})
}
