package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ProviderConfig describes the configuration for a single OAuth 2.0 provider.
type ProviderConfig struct {
	Name         string            `json:"name"`
	DisplayName  string            `json:"displayName"`
	AuthorizeURL string            `json:"authorizeURL"`
	TokenURL     string            `json:"tokenURL"`
	UserInfoURL  string            `json:"userInfoURL"`
	ClientID     string            `json:"clientID"`
	ClientSecret string            `json:"clientSecret"`
	RedirectURL  string            `json:"redirectURL"`
	Scopes       []string          `json:"scopes"`
	AuthParams   map[string]string `json:"authParams"`
	Profile      ProfileMapping    `json:"profile"`
}

// ProfileMapping defines how to map fields from the provider's userinfo
// response. ResponsePath unwraps providers that nest the profile, and
// EmailTokenField reads the email from the token response for providers
// that never include it in userinfo.
type ProfileMapping struct {
	IDField         string `json:"idField"`
	EmailField      string `json:"emailField"`
	NameField       string `json:"nameField"`
	ResponsePath    string `json:"responsePath,omitempty"`
	EmailTokenField string `json:"emailTokenField,omitempty"`
}

// builtinProviders holds ready-made configurations for the identity
// providers the app supports out of the box. Credentials still come
// from flags or environment overrides.
var builtinProviders = map[string]ProviderConfig{
	"google": {
		Name:         "google",
		DisplayName:  "Google",
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:       []string{"openid", "email", "profile"},
		Profile: ProfileMapping{
			IDField:    "sub",
			EmailField: "email",
			NameField:  "name",
		},
	},
	"yandex": {
		Name:         "yandex",
		DisplayName:  "Яндекс",
		AuthorizeURL: "https://oauth.yandex.ru/authorize",
		TokenURL:     "https://oauth.yandex.ru/token",
		UserInfoURL:  "https://login.yandex.ru/info?format=json",
		Scopes:       []string{"login:email", "login:info"},
		Profile: ProfileMapping{
			IDField:    "id",
			EmailField: "default_email",
			NameField:  "real_name",
		},
	},
	"vk": {
		Name:         "vk",
		DisplayName:  "VK",
		AuthorizeURL: "https://oauth.vk.com/authorize",
		TokenURL:     "https://oauth.vk.com/access_token",
		UserInfoURL:  "https://api.vk.com/method/users.get?v=5.131&fields=first_name,last_name",
		Scopes:       []string{"email"},
		AuthParams:   map[string]string{"display": "page"},
		Profile: ProfileMapping{
			IDField:         "id",
			NameField:       "first_name",
			ResponsePath:    "response",
			EmailTokenField: "email",
		},
	},
}

// BuiltinProvider returns the template configuration for a known
// provider name.
func BuiltinProvider(name string) (ProviderConfig, bool) {
	cfg, ok := builtinProviders[strings.ToLower(strings.TrimSpace(name))]
	return cfg, ok
}

// ParseProviders decodes the JSON payload into provider configurations. The payload
// may either be a JSON array or an object containing a "providers" array.
func ParseProviders(data []byte) ([]ProviderConfig, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Providers []ProviderConfig `json:"providers"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
			return nil, fmt.Errorf("decode oauth providers: %w", err)
		}
		return sanitizeProviders(wrapper.Providers), nil
	}
	var providers []ProviderConfig
	if err := json.Unmarshal([]byte(trimmed), &providers); err != nil {
		return nil, fmt.Errorf("decode oauth providers: %w", err)
	}
	return sanitizeProviders(providers), nil
}

// LoadProviders loads provider configuration from inline JSON, a file
// path, or a comma-separated list of built-in provider names.
func LoadProviders(source string) ([]ProviderConfig, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ParseProviders([]byte(trimmed))
	}
	if providers, ok := builtinProviderList(trimmed); ok {
		return providers, nil
	}
	content, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read oauth provider config %s: %w", trimmed, err)
	}
	return ParseProviders(content)
}

// builtinProviderList interprets the source as "google,yandex,vk" style
// shorthand. It only applies when every token names a known provider.
func builtinProviderList(source string) ([]ProviderConfig, bool) {
	parts := strings.Split(source, ",")
	providers := make([]ProviderConfig, 0, len(parts))
	for _, part := range parts {
		cfg, ok := BuiltinProvider(part)
		if !ok {
			return nil, false
		}
		providers = append(providers, cfg)
	}
	if len(providers) == 0 {
		return nil, false
	}
	return providers, true
}

func sanitizeProviders(items []ProviderConfig) []ProviderConfig {
	sanitized := make([]ProviderConfig, 0, len(items))
	for _, item := range items {
		item.Name = strings.TrimSpace(strings.ToLower(item.Name))
		// A JSON entry naming a builtin provider inherits the template
		// and only overrides what it sets.
		if base, ok := BuiltinProvider(item.Name); ok {
			item = mergeWithBuiltin(base, item)
		}
		item.DisplayName = strings.TrimSpace(item.DisplayName)
		item.AuthorizeURL = strings.TrimSpace(item.AuthorizeURL)
		item.TokenURL = strings.TrimSpace(item.TokenURL)
		item.UserInfoURL = strings.TrimSpace(item.UserInfoURL)
		item.ClientID = strings.TrimSpace(item.ClientID)
		item.ClientSecret = strings.TrimSpace(item.ClientSecret)
		item.RedirectURL = strings.TrimSpace(item.RedirectURL)
		if item.AuthParams == nil {
			item.AuthParams = map[string]string{}
		}
		item.Profile.IDField = strings.TrimSpace(item.Profile.IDField)
		item.Profile.EmailField = strings.TrimSpace(item.Profile.EmailField)
		item.Profile.NameField = strings.TrimSpace(item.Profile.NameField)
		item.Profile.ResponsePath = strings.TrimSpace(item.Profile.ResponsePath)
		item.Profile.EmailTokenField = strings.TrimSpace(item.Profile.EmailTokenField)
		scopes := make([]string, 0, len(item.Scopes))
		for _, scope := range item.Scopes {
			trimmed := strings.TrimSpace(scope)
			if trimmed == "" {
				continue
			}
			scopes = append(scopes, trimmed)
		}
		item.Scopes = scopes
		if item.Name != "" {
			sanitized = append(sanitized, item)
		}
	}
	return sanitized
}

func mergeWithBuiltin(base, override ProviderConfig) ProviderConfig {
	merged := base
	if override.DisplayName != "" {
		merged.DisplayName = override.DisplayName
	}
	if override.AuthorizeURL != "" {
		merged.AuthorizeURL = override.AuthorizeURL
	}
	if override.TokenURL != "" {
		merged.TokenURL = override.TokenURL
	}
	if override.UserInfoURL != "" {
		merged.UserInfoURL = override.UserInfoURL
	}
	if override.ClientID != "" {
		merged.ClientID = override.ClientID
	}
	if override.ClientSecret != "" {
		merged.ClientSecret = override.ClientSecret
	}
	if override.RedirectURL != "" {
		merged.RedirectURL = override.RedirectURL
	}
	if len(override.Scopes) > 0 {
		merged.Scopes = override.Scopes
	}
	if len(override.AuthParams) > 0 {
		merged.AuthParams = override.AuthParams
	}
	if override.Profile.IDField != "" {
		merged.Profile = override.Profile
	}
	return merged
}

// OverrideCredentials applies runtime overrides for client identifiers, secrets,
// and redirect URLs. Keys are matched case-insensitively.
func OverrideCredentials(configs []ProviderConfig, clientIDs, secrets, redirects map[string]string) []ProviderConfig {
	if len(configs) == 0 {
		return configs
	}
	for i := range configs {
		key := configs[i].Name
		if id, ok := lookupOverride(clientIDs, key); ok {
			configs[i].ClientID = id
		}
		if secret, ok := lookupOverride(secrets, key); ok {
			configs[i].ClientSecret = secret
		}
		if redirect, ok := lookupOverride(redirects, key); ok {
			configs[i].RedirectURL = redirect
		}
	}
	return configs
}

func lookupOverride(values map[string]string, key string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return "", false
	}
	if value, ok := values[normalized]; ok {
		return value, true
	}
	return "", false
}

// Validate ensures the provider configuration contains the required fields.
func (cfg ProviderConfig) Validate() error {
	if cfg.Name == "" {
		return errors.New("provider name is required")
	}
	if cfg.DisplayName == "" {
		return fmt.Errorf("displayName required for provider %s", cfg.Name)
	}
	if cfg.AuthorizeURL == "" {
		return fmt.Errorf("authorizeURL required for provider %s", cfg.Name)
	}
	if cfg.TokenURL == "" {
		return fmt.Errorf("tokenURL required for provider %s", cfg.Name)
	}
	if cfg.UserInfoURL == "" {
		return fmt.Errorf("userInfoURL required for provider %s", cfg.Name)
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("clientID required for provider %s", cfg.Name)
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("clientSecret required for provider %s", cfg.Name)
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirectURL required for provider %s", cfg.Name)
	}
	if cfg.Profile.IDField == "" {
		return fmt.Errorf("profile.idField required for provider %s", cfg.Name)
	}
	return nil
}

// ResolveConfigSources combines multiple configuration sources, preferring later
// entries when duplicates exist.
func ResolveConfigSources(sources ...string) ([]ProviderConfig, error) {
	var providers []ProviderConfig
	for _, source := range sources {
		trimmed := strings.TrimSpace(source)
		if trimmed == "" {
			continue
		}
		loaded, err := LoadProviders(trimmed)
		if err != nil {
			return nil, err
		}
		providers = append(providers, loaded...)
	}
	return providers, nil
}
