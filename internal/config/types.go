package config

import (
	"os"
	"slices"
	"strings"
	"time"
)

type GlobalConfig struct {
	InterfaceLanguage string `koanf:"interface_language"`
}

type HTTPConfig struct {
	Proxy   string   `koanf:"proxy"`
	NoProxy []string `koanf:"no_proxy"`
}

// GetProxy prefers http.proxy and falls back to the usual proxy variables.
func (c HTTPConfig) GetProxy() string {
	if c.Proxy != "" {
		return c.Proxy
	}
	for _, name := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (c HTTPConfig) GetNoProxy() []string {
	if len(c.NoProxy) > 0 {
		return c.NoProxy
	}
	for _, name := range []string{"NO_PROXY", "no_proxy"} {
		if v := os.Getenv(name); v != "" {
			var hosts []string
			for host := range strings.SplitSeq(v, ",") {
				if host = strings.TrimSpace(host); host != "" {
					hosts = append(hosts, host)
				}
			}
			return hosts
		}
	}
	return nil
}

type LoggingConfig struct {
	LogLevel    string `koanf:"level"`
	LogFormat   string `koanf:"format"`
	WriteInFile bool   `koanf:"write_in_file"`
	FilePath    string `koanf:"file_path"`
}

func (c LoggingConfig) Level() string {
	return strings.ToLower(c.LogLevel)
}

func (c LoggingConfig) Format() string {
	return strings.ToLower(c.LogFormat)
}

func (c LoggingConfig) IsDebug() bool {
	return c.Level() == "debug" || c.Level() == "trace"
}

type TelegramConfig struct {
	Token        string  `koanf:"token"`
	AllowedUsers []int64 `koanf:"allowed_users"`
}

// IsUserAllowed reports whether userID may talk to the bot. An empty
// allow-list lets everyone in.
func (c TelegramConfig) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

type EndpointConfig struct {
	Name      string `koanf:"name"`
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	EnvAPIKey string `koanf:"env_api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
	Priority  int    `koanf:"priority"`
}

func (c EndpointConfig) GetAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.EnvAPIKey != "" {
		return os.Getenv(c.EnvAPIKey)
	}
	return ""
}

type AIConfig struct {
	UseMock          bool             `koanf:"use_mock"`
	MaxTokens        int              `koanf:"max_tokens"`
	Temperature      float32          `koanf:"temperature"`
	AttemptTimeout   time.Duration    `koanf:"attempt_timeout"`
	FailureThreshold int              `koanf:"failure_threshold"`
	Cooldown         time.Duration    `koanf:"cooldown"`
	SystemPrompt     string           `koanf:"system_prompt"`
	EmpathyPrompt    string           `koanf:"empathy_prompt"`
	Endpoints        []EndpointConfig `koanf:"endpoints"`
}

type RedisConfig struct {
	URL       string `koanf:"url"`
	Addr      string `koanf:"addr"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type MemoryConfig struct {
	Backend      string        `koanf:"backend"`
	MaxPairs     int           `koanf:"max_pairs"`
	ContextTurns int           `koanf:"context_turns"`
	TTL          time.Duration `koanf:"ttl"`
	Redis        RedisConfig   `koanf:"redis"`
}

type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

type ChatConfig struct {
	Cooldown       time.Duration `koanf:"cooldown"`
	MaxInputLength int           `koanf:"max_input_length"`
}
