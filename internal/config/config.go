package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const (
	GLOBAL_LANGUAGE         = "global.interface_language"
	HTTP_PROXY              = "http.proxy"
	HTTP_NO_PROXY           = "http.no_proxy"
	TELEGRAM_TOKEN          = "telegram.token"
	TELEGRAM_ALLOWED_USERS  = "telegram.allowed_users"
	AI_USE_MOCK             = "ai.use_mock"
	AI_MAX_TOKENS           = "ai.max_tokens"
	AI_TEMPERATURE          = "ai.temperature"
	AI_ATTEMPT_TIMEOUT      = "ai.attempt_timeout"
	AI_FAILURE_THRESHOLD    = "ai.failure_threshold"
	AI_COOLDOWN             = "ai.cooldown"
	AI_ENDPOINTS            = "ai.endpoints"
	AI_SYSTEM_PROMPT        = "ai.system_prompt"
	AI_EMPATHY_PROMPT       = "ai.empathy_prompt"
	MEMORY_BACKEND          = "memory.backend"
	MEMORY_MAX_PAIRS        = "memory.max_pairs"
	MEMORY_CONTEXT_TURNS    = "memory.context_turns"
	MEMORY_TTL              = "memory.ttl"
	MEMORY_REDIS_URL        = "memory.redis.url"
	MEMORY_REDIS_ADDR       = "memory.redis.addr"
	MEMORY_REDIS_USERNAME   = "memory.redis.username"
	MEMORY_REDIS_PASSWORD   = "memory.redis.password"
	MEMORY_REDIS_DB         = "memory.redis.db"
	MEMORY_REDIS_KEY_PREFIX = "memory.redis.key_prefix"
	CACHE_ENABLED           = "cache.enabled"
	CACHE_TTL               = "cache.ttl"
	CHAT_COOLDOWN           = "chat.cooldown"
	CHAT_MAX_INPUT_LENGTH   = "chat.max_input_length"
	DATABASE_DSN            = "database.dsn"
	LOGGING_LEVEL           = "logging.level"
	LOGGING_FORMAT          = "logging.format"
	LOGGING_WRITE_IN_FILE   = "logging.write_in_file"
	LOGGING_FILE_PATH       = "logging.file_path"
)

const (
	envPrefix = "PABLOS_"

	DefaultBaseURL = "https://ai.megallm.io/v1"
	DefaultModel   = "gpt-4.1"

	// MODEL_ACCESS_KEY, MODEL_ACCESS_KEY_2, MODEL_ACCESS_KEY_3
	legacyEndpointSlots = 3
)

var defaultSQLiteParams = map[string]string{
	"_journal":      "WAL",
	"_busy_timeout": "10000",
	"_synchronous":  "NORMAL",
}

type Config struct {
	k *koanf.Koanf
}

// Duration defaults are strings so k.Duration and Unmarshal parse them the
// same way TOML and env values are parsed.
func defaults() map[string]any {
	return map[string]any{
		GLOBAL_LANGUAGE:         "id",
		HTTP_PROXY:              "",
		TELEGRAM_TOKEN:          "",
		AI_USE_MOCK:             false,
		AI_MAX_TOKENS:           400,
		AI_TEMPERATURE:          0.8,
		AI_ATTEMPT_TIMEOUT:      "30s",
		AI_FAILURE_THRESHOLD:    3,
		AI_COOLDOWN:             "5m",
		AI_SYSTEM_PROMPT:        defaultSystemPrompt,
		AI_EMPATHY_PROMPT:       defaultEmpathyPrompt,
		MEMORY_BACKEND:          "auto",
		MEMORY_MAX_PAIRS:        25,
		MEMORY_CONTEXT_TURNS:    8,
		MEMORY_TTL:              "168h",
		MEMORY_REDIS_DB:         0,
		MEMORY_REDIS_KEY_PREFIX: "pablos:history:",
		CACHE_ENABLED:           true,
		CACHE_TTL:               "1h",
		CHAT_COOLDOWN:           "2s",
		CHAT_MAX_INPUT_LENGTH:   4000,
		DATABASE_DSN:            "pablos.db",
		LOGGING_LEVEL:           "info",
		LOGGING_FORMAT:          "text",
		LOGGING_WRITE_IN_FILE:   false,
	}
}

// Load reads configuration in increasing priority: built-in defaults, the
// first TOML file found, legacy environment variables, PABLOS_* variables.
// Nested keys use a double underscore in env names, so
// PABLOS_MEMORY__MAX_PAIRS sets memory.max_pairs.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	for _, p := range getConfigPaths(path) {
		if _, err := os.Stat(p); err != nil {
			if path != "" {
				return nil, fmt.Errorf("config file %s: %w", p, err)
			}
			continue
		}
		if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", p, err)
		}
		break
	}

	if err := loadLegacyEnv(k); err != nil {
		return nil, fmt.Errorf("error loading legacy environment: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	return &Config{k: k}, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// loadLegacyEnv maps the flat variable names used by earlier deployments
// (TELEGRAM_BOT_TOKEN, MODEL_ACCESS_KEY_2, REDIS_URL...) onto config keys.
func loadLegacyEnv(k *koanf.Koanf) error {
	overrides := map[string]any{}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		overrides[TELEGRAM_TOKEN] = v
	}
	if v, ok := lookupInt("MAX_TOKENS"); ok {
		overrides[AI_MAX_TOKENS] = v
	}
	if v, ok := lookupInt("COOLDOWN"); ok {
		overrides[CHAT_COOLDOWN] = seconds(v)
	}
	if v, ok := lookupInt("ENDPOINT_COOLDOWN"); ok {
		overrides[AI_COOLDOWN] = seconds(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		overrides[MEMORY_REDIS_URL] = v
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		overrides[MEMORY_REDIS_ADDR] = host + ":" + port
	}
	if v := os.Getenv("REDIS_USERNAME"); v != "" {
		overrides[MEMORY_REDIS_USERNAME] = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		overrides[MEMORY_REDIS_PASSWORD] = v
	}

	// File-configured endpoints win over the legacy variables.
	if !k.Exists(AI_ENDPOINTS) {
		if eps := legacyEndpoints(); len(eps) > 0 {
			overrides[AI_ENDPOINTS] = eps
		}
	}

	if len(overrides) == 0 {
		return nil
	}
	return k.Load(confmap.Provider(overrides, "."), nil)
}

func legacyEndpoints() []map[string]any {
	var endpoints []map[string]any
	for i := 1; i <= legacyEndpointSlots; i++ {
		suffix, name := "", "primary"
		if i > 1 {
			suffix = "_" + strconv.Itoa(i)
			name = fmt.Sprintf("endpoint-%d", i)
		}

		key := os.Getenv("MODEL_ACCESS_KEY" + suffix)
		if key == "" {
			continue
		}
		baseURL := os.Getenv("MODEL_BASE_URL" + suffix)
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		model := os.Getenv("MODEL_CHAT" + suffix)
		if model == "" {
			model = DefaultModel
		}

		endpoints = append(endpoints, map[string]any{
			"name":     name,
			"base_url": baseURL,
			"api_key":  key,
			"model":    model,
			"priority": i,
		})
	}
	return endpoints
}

func seconds(n int) string {
	return (time.Duration(n) * time.Second).String()
}

func lookupInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks the settings required to serve Telegram traffic.
func (c *Config) Validate() error {
	if c.Telegram().Token == "" {
		return fmt.Errorf("telegram token is required (telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	ai, err := c.AI()
	if err != nil {
		return err
	}
	if !ai.UseMock && len(ai.Endpoints) == 0 {
		return fmt.Errorf("no AI endpoints configured (ai.endpoints or MODEL_ACCESS_KEY)")
	}
	for i, ep := range ai.Endpoints {
		if ep.BaseURL == "" {
			return fmt.Errorf("ai.endpoints[%d]: base_url is required", i)
		}
		if ep.GetAPIKey() == "" {
			return fmt.Errorf("ai.endpoints[%d] (%s): api key is empty", i, ep.Name)
		}
	}
	return nil
}

func (c *Config) Telegram() TelegramConfig {
	cfg := TelegramConfig{Token: c.k.String(TELEGRAM_TOKEN)}

	// From the environment allowed_users arrives as "1,2,3".
	switch v := c.k.Get(TELEGRAM_ALLOWED_USERS).(type) {
	case string:
		for part := range strings.SplitSeq(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err == nil {
				cfg.AllowedUsers = append(cfg.AllowedUsers, id)
			}
		}
	case nil:
	default:
		cfg.AllowedUsers = c.k.Int64s(TELEGRAM_ALLOWED_USERS)
	}
	return cfg
}

func (c *Config) AI() (AIConfig, error) {
	var cfg AIConfig
	if err := c.k.Unmarshal("ai", &cfg); err != nil {
		return AIConfig{}, fmt.Errorf("ai config: %w", err)
	}
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		if ep.Name == "" {
			ep.Name = fmt.Sprintf("endpoint-%d", i+1)
		}
		if ep.Model == "" {
			ep.Model = DefaultModel
		}
		if ep.MaxTokens == 0 {
			ep.MaxTokens = cfg.MaxTokens
		}
	}
	return cfg, nil
}

func (c *Config) Memory() MemoryConfig {
	return MemoryConfig{
		Backend:      strings.ToLower(c.k.String(MEMORY_BACKEND)),
		MaxPairs:     c.k.Int(MEMORY_MAX_PAIRS),
		ContextTurns: c.k.Int(MEMORY_CONTEXT_TURNS),
		TTL:          c.k.Duration(MEMORY_TTL),
		Redis: RedisConfig{
			URL:       c.k.String(MEMORY_REDIS_URL),
			Addr:      c.k.String(MEMORY_REDIS_ADDR),
			Username:  c.k.String(MEMORY_REDIS_USERNAME),
			Password:  c.k.String(MEMORY_REDIS_PASSWORD),
			DB:        c.k.Int(MEMORY_REDIS_DB),
			KeyPrefix: c.k.String(MEMORY_REDIS_KEY_PREFIX),
		},
	}
}

func (c *Config) Cache() CacheConfig {
	return CacheConfig{
		Enabled: c.k.Bool(CACHE_ENABLED),
		TTL:     c.k.Duration(CACHE_TTL),
	}
}

func (c *Config) Chat() ChatConfig {
	return ChatConfig{
		Cooldown:       c.k.Duration(CHAT_COOLDOWN),
		MaxInputLength: c.k.Int(CHAT_MAX_INPUT_LENGTH),
	}
}

func (c *Config) Log() LoggingConfig {
	return LoggingConfig{
		LogLevel:    c.k.String(LOGGING_LEVEL),
		LogFormat:   c.k.String(LOGGING_FORMAT),
		WriteInFile: c.k.Bool(LOGGING_WRITE_IN_FILE),
		FilePath:    c.k.String(LOGGING_FILE_PATH),
	}
}

func (c *Config) HTTP() HTTPConfig {
	return HTTPConfig{
		Proxy:   c.k.String(HTTP_PROXY),
		NoProxy: c.k.Strings(HTTP_NO_PROXY),
	}
}

func (c *Config) Global() GlobalConfig {
	return GlobalConfig{
		InterfaceLanguage: c.k.String(GLOBAL_LANGUAGE),
	}
}

// GetDatabaseDSN returns database.dsn with the default SQLite pragmas merged
// in. Parameters already present in the DSN are left untouched.
func (c *Config) GetDatabaseDSN() string {
	dsn := c.k.String(DATABASE_DSN)
	path, rawQuery, _ := strings.Cut(dsn, "?")

	params := make(map[string]string)
	if rawQuery != "" {
		for param := range strings.SplitSeq(rawQuery, "&") {
			if key, value, ok := strings.Cut(param, "="); ok {
				params[key] = value
			}
		}
	}
	for key, value := range defaultSQLiteParams {
		if _, exists := params[key]; !exists {
			params[key] = value
		}
	}

	query := make([]string, 0, len(params))
	for key, value := range params {
		query = append(query, key+"="+value)
	}
	sort.Strings(query)

	return path + "?" + strings.Join(query, "&")
}

func getConfigPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, _ := os.UserHomeDir()
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		"pablos.toml",
		"config.toml",
		filepath.Join(xdgConfig, "pablos", "config.toml"),
		"/etc/pablos/config.toml",
	}
}
