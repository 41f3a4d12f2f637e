package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// HistorySource names an external watch-history service.
type HistorySource string

const (
	HistorySourceTautulli HistorySource = "tautulli"
	HistorySourceJellyfin HistorySource = "jellyfin"
)

// Config holds the configuration for the episweep server and its dependencies.
type Config struct {
	// Listen is the address the episweep server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// APIKey protects the HTTP API and the webhook endpoints. Empty disables the check.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// DryRun queues keep rule deletions for approval instead of deleting them right away.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
	// DefaultRule is assigned to series that are managed without an explicit rule.
	DefaultRule string `yaml:"default_rule" mapstructure:"default_rule"`
	// RulesConfig is a map of rule names to their raw configuration. Use Rules for the normalized form.
	RulesConfig map[string]*RuleConfig `yaml:"rules" mapstructure:"rules"`
	// HistorySources is the order in which external watch history is consulted.
	HistorySources []HistorySource `yaml:"history_sources" mapstructure:"history_sources"`
	// HistoryTimeout bounds every single call to a watch-history source.
	HistoryTimeout time.Duration `yaml:"history_timeout" mapstructure:"history_timeout"`
	// HistoryRetentionDays is how long history events are kept.
	HistoryRetentionDays int `yaml:"history_retention_days" mapstructure:"history_retention_days"`
	// Grace holds the grace sweep configuration.
	Grace *GraceConfig `yaml:"grace" mapstructure:"grace"`
	// TagSync holds the configuration for rule assignment via Sonarr tags.
	TagSync *TagSyncConfig `yaml:"tag_sync" mapstructure:"tag_sync"`
	// StorageGate holds the optional free space gate of the grace sweep.
	StorageGate *StorageGateConfig `yaml:"storage_gate" mapstructure:"storage_gate"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Email holds the email notification configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
	// Ntfy holds the ntfy notification configuration.
	Ntfy *NtfyConfig `yaml:"ntfy" mapstructure:"ntfy"`

	// Sonarr holds the configuration for the Sonarr server.
	Sonarr *SonarrConfig `yaml:"sonarr" mapstructure:"sonarr"`
	// Tautulli holds the configuration for the Tautulli server.
	Tautulli *TautulliConfig `yaml:"tautulli" mapstructure:"tautulli"`
	// Jellyfin holds the configuration for the Jellyfin server.
	Jellyfin *JellyfinConfig `yaml:"jellyfin" mapstructure:"jellyfin"`
}

// RuleConfig is the raw configuration of a rule as it appears in the config file.
type RuleConfig struct {
	// GetType is one of "episodes", "seasons" or "all".
	GetType string `yaml:"get_type" mapstructure:"get_type"`
	// GetCount is the number of episodes or seasons to fetch ahead.
	GetCount int `yaml:"get_count" mapstructure:"get_count"`
	// KeepType is one of "episodes", "seasons" or "all".
	KeepType string `yaml:"keep_type" mapstructure:"keep_type"`
	// KeepCount is the number of episodes or seasons to retain, ending at the watched episode.
	KeepCount int `yaml:"keep_count" mapstructure:"keep_count"`
	// ActionOption is "monitor" or "search".
	ActionOption string `yaml:"action_option" mapstructure:"action_option"`
	// MonitorWatched keeps the watched episode monitored.
	MonitorWatched bool `yaml:"monitor_watched" mapstructure:"monitor_watched"`
	// GraceDays is the inactivity threshold in days for the grace sweep. 0 disables it.
	GraceDays int `yaml:"grace_days" mapstructure:"grace_days"`
	// DormantDays queues every downloaded episode of a series inactive for this long. 0 disables it.
	DormantDays int `yaml:"dormant_days" mapstructure:"dormant_days"`
	// GraceScope is "series" or "season".
	GraceScope string `yaml:"grace_scope" mapstructure:"grace_scope"`
	// GraceBookmarks keeps the last watched and the first unwatched episode of a stale scope.
	GraceBookmarks bool `yaml:"grace_bookmarks" mapstructure:"grace_bookmarks"`
	// DryRun queues keep rule deletions of this rule for approval.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
	// Series is a static list of Sonarr series IDs assigned to this rule.
	Series []int32 `yaml:"series" mapstructure:"series"`

	// GetOption is the legacy form of get_type/get_count.
	// Deprecated: use get_type and get_count instead.
	GetOption string `yaml:"get_option" mapstructure:"get_option"`
	// KeepWatched is the legacy form of keep_type/keep_count.
	// Deprecated: use keep_type and keep_count instead.
	KeepWatched string `yaml:"keep_watched" mapstructure:"keep_watched"`
}

// GraceConfig holds the grace sweep configuration.
type GraceConfig struct {
	// Schedule is the cron schedule of the grace sweep (e.g., "0 */6 * * *" for every 6 hours).
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	// RunOnStart runs a sweep right after the scheduler starts.
	RunOnStart bool `yaml:"run_on_start" mapstructure:"run_on_start"`
}

// TagSyncConfig holds the configuration for rule assignment via Sonarr tags.
type TagSyncConfig struct {
	// Enabled indicates whether tags are synced.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Prefix is prepended to a rule name to form the tag label, e.g. "episweep_default".
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// Schedule is the cron schedule of the tag sync.
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// StorageGateConfig holds the free space gate of the grace sweep.
type StorageGateConfig struct {
	// MinFreeGB opens the gate when any path has less free space. 0 disables the gate.
	MinFreeGB float64 `yaml:"min_free_gb" mapstructure:"min_free_gb"`
	// Paths are the filesystem paths checked for free space.
	Paths []string `yaml:"paths" mapstructure:"paths"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is the lifetime of cached catalog data.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether email notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which notifications are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which notifications are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// To is the list of recipients of the digests.
	To []string `yaml:"to" mapstructure:"to"`
	// UseTLS indicates whether to use TLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use SSL for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// NtfyConfig holds the ntfy notification configuration.
type NtfyConfig struct {
	// Enabled indicates whether ntfy notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServerURL is the URL of the ntfy server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// Topic is the ntfy topic to publish notifications to.
	Topic string `yaml:"topic" mapstructure:"topic"`
	// Username is the ntfy username for authentication.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the ntfy password for authentication.
	Password string `yaml:"password" mapstructure:"password"`
	// Token is the ntfy token for authentication.
	Token string `yaml:"token" mapstructure:"token"`
}

// SonarrConfig holds the configuration for the Sonarr server.
type SonarrConfig struct {
	// URL is the base URL of the Sonarr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Sonarr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Timeout bounds every request to Sonarr.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TautulliConfig holds the configuration for the Tautulli server.
type TautulliConfig struct {
	// URL is the base URL of the Tautulli server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Tautulli server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// JellyfinConfig holds the configuration for the Jellyfin server.
type JellyfinConfig struct {
	// URL is the base URL of the Jellyfin server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Jellyfin server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// UserID is the user whose watch history is consulted. Empty picks the first administrator.
	UserID string `yaml:"user_id" mapstructure:"user_id"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	// Set default values
	setDefaults(v)

	// Configure Viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EPISWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		// Use specific config file
		v.SetConfigFile(path)
	} else {
		// Search for config in common locations
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.episweep")
		v.AddConfigPath("/etc/episweep")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Some environment variables can be set with the EPISWEEP_ prefix to override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	warnDeprecatedConfig(&c)
	warnDormantConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:5002")
	v.SetDefault("api_key", "")
	v.SetDefault("dry_run", true)
	v.SetDefault("default_rule", "default")
	v.SetDefault("history_sources", []string{string(HistorySourceTautulli), string(HistorySourceJellyfin)})
	v.SetDefault("history_timeout", 10*time.Second)
	v.SetDefault("history_retention_days", 90)

	// Grace sweep defaults
	v.SetDefault("grace.schedule", "0 */6 * * *") // Every 6 hours
	v.SetDefault("grace.run_on_start", false)

	// Tag sync defaults
	v.SetDefault("tag_sync.enabled", true)
	v.SetDefault("tag_sync.prefix", "episweep_")
	v.SetDefault("tag_sync.schedule", "*/30 * * * *")

	// Storage gate defaults
	v.SetDefault("storage_gate.min_free_gb", 0)
	v.SetDefault("storage_gate.paths", []string{})

	// Database defaults
	v.SetDefault("database.path", "./data/episweep.db")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 15*time.Minute)

	// Sonarr defaults
	v.SetDefault("sonarr.timeout", 30*time.Second)

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_name", "episweep")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)

	// Ntfy defaults
	v.SetDefault("ntfy.enabled", false)
	v.SetDefault("ntfy.server_url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic", "episweep")
	v.SetDefault("ntfy.username", "")
	v.SetDefault("ntfy.password", "")
	v.SetDefault("ntfy.token", "")
}

// the auto env function from viper only works for nested structs, if the struct to which a value binds isn't nil.
// If we explicitly don't want a default value (e.g. because a struct value should be nil on purpose)
// we have to bind the env var manually.
func bindNestedEnv(v *viper.Viper) {
	// Sonarr
	v.MustBindEnv("sonarr.url", "EPISWEEP_SONARR_URL")
	v.MustBindEnv("sonarr.api_key", "EPISWEEP_SONARR_API_KEY")

	// Tautulli
	v.MustBindEnv("tautulli.url", "EPISWEEP_TAUTULLI_URL")
	v.MustBindEnv("tautulli.api_key", "EPISWEEP_TAUTULLI_API_KEY")

	// Jellyfin
	v.MustBindEnv("jellyfin.url", "EPISWEEP_JELLYFIN_URL")
	v.MustBindEnv("jellyfin.api_key", "EPISWEEP_JELLYFIN_API_KEY")
	v.MustBindEnv("jellyfin.user_id", "EPISWEEP_JELLYFIN_USER_ID")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing episweep config")
	}

	if c.Grace == nil || c.Grace.Schedule == "" {
		return fmt.Errorf("grace schedule is required")
	}
	if err := validateCron("grace schedule", c.Grace.Schedule); err != nil {
		return err
	}

	if c.TagSync != nil && c.TagSync.Enabled {
		if c.TagSync.Prefix == "" {
			return fmt.Errorf("tag sync prefix is required when tag sync is enabled")
		}
		if err := validateCron("tag sync schedule", c.TagSync.Schedule); err != nil {
			return err
		}
	}

	if len(c.RulesConfig) == 0 {
		return fmt.Errorf("at least one rule must be configured")
	}
	if c.DefaultRule != "" && c.GetRuleConfig(c.DefaultRule) == nil {
		return fmt.Errorf("default rule %q is not configured", c.DefaultRule)
	}

	seen := make(map[int32]string)
	for name, rule := range c.RulesConfig {
		if rule == nil {
			return fmt.Errorf("rule %q is empty", name)
		}
		if rule.GetCount < 0 || rule.KeepCount < 0 {
			return fmt.Errorf("rule %q: counts must not be negative", name)
		}
		if rule.GraceDays < 0 {
			return fmt.Errorf("rule %q: grace_days must not be negative", name)
		}
		if rule.DormantDays < 0 {
			return fmt.Errorf("rule %q: dormant_days must not be negative", name)
		}
		for _, id := range rule.Series {
			if other, ok := seen[id]; ok {
				return fmt.Errorf("series %d is assigned to both rule %q and rule %q", id, other, name)
			}
			seen[id] = name
		}
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory, // Default to in-memory cache if not enabled
		}
	}

	// The sonarr section always exists because of its defaults.
	if c.Sonarr == nil || c.Sonarr.URL == "" {
		return fmt.Errorf("sonarr URL is required")
	}
	if c.Sonarr.APIKey == "" {
		return fmt.Errorf("sonarr API key is required")
	}

	if c.Tautulli != nil {
		if c.Tautulli.URL == "" {
			return fmt.Errorf("tautulli URL is required when tautulli is configured")
		}
		if c.Tautulli.APIKey == "" {
			return fmt.Errorf("tautulli API key is required when tautulli is configured")
		}
	}

	if c.Jellyfin != nil {
		if c.Jellyfin.URL == "" {
			return fmt.Errorf("jellyfin URL is required when jellyfin is configured")
		}
		if c.Jellyfin.APIKey == "" {
			return fmt.Errorf("jellyfin API key is required when jellyfin is configured")
		}
	}

	for _, source := range c.HistorySources {
		if !slices.Contains([]HistorySource{HistorySourceTautulli, HistorySourceJellyfin}, source) {
			return fmt.Errorf("unknown history source %q", source)
		}
	}

	if c.StorageGate != nil && c.StorageGate.MinFreeGB > 0 && len(c.StorageGate.Paths) == 0 {
		return fmt.Errorf("storage gate needs at least one path when min_free_gb is set")
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled") //nolint:staticcheck
		}
		if c.Email.FromEmail == "" || len(c.Email.To) == 0 {
			return fmt.Errorf("email sender and recipients are required when email is enabled")
		}
	}

	return nil
}

func validateCron(name, expr string) error {
	// Basic validation for cron format (5 fields)
	if len(strings.Fields(expr)) != 5 {
		return fmt.Errorf("%s must be a valid cron expression with 5 fields (minute hour day month weekday)", name)
	}
	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.Sonarr != nil {
		c.Sonarr.URL = urlSanitize(c.Sonarr.URL)
	}

	if c.Tautulli != nil {
		c.Tautulli.URL = urlSanitize(c.Tautulli.URL)
	}

	if c.Jellyfin != nil {
		c.Jellyfin.URL = urlSanitize(c.Jellyfin.URL)
	}

	if c.Ntfy != nil {
		c.Ntfy.ServerURL = urlSanitize(c.Ntfy.ServerURL)
	}

	for i, source := range c.HistorySources {
		c.HistorySources[i] = HistorySource(strings.ToLower(strings.TrimSpace(string(source))))
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// warnDeprecatedConfig logs warnings for any deprecated configuration options that are in use.
func warnDeprecatedConfig(c *Config) {
	if c == nil || c.RulesConfig == nil {
		return
	}

	for ruleName, ruleConfig := range c.RulesConfig {
		if ruleConfig == nil {
			continue
		}

		if ruleConfig.GetOption != "" {
			log.Warnf("Rule '%s': 'get_option' is deprecated. Please use 'get_type' and 'get_count' instead.", ruleName)
		}

		if ruleConfig.KeepWatched != "" {
			log.Warnf("Rule '%s': 'keep_watched' is deprecated. Please use 'keep_type' and 'keep_count' instead.", ruleName)
		}
	}
}

// warnDormantConfig logs warnings for dormant thresholds that will not behave as expected.
func warnDormantConfig(c *Config) {
	if c == nil || c.RulesConfig == nil {
		return
	}

	gated := c.StorageGate != nil && c.StorageGate.MinFreeGB > 0
	for ruleName, ruleConfig := range c.RulesConfig {
		if ruleConfig == nil || ruleConfig.DormantDays <= 0 {
			continue
		}
		if ruleConfig.GraceDays > 0 && ruleConfig.GraceDays >= ruleConfig.DormantDays {
			log.Warnf("Rule '%s': 'grace_days' (%d) is not below 'dormant_days' (%d), the grace sweep will never see a stale scope.",
				ruleName, ruleConfig.GraceDays, ruleConfig.DormantDays)
		}
		if !gated {
			log.Warnf("Rule '%s': 'dormant_days' is set without a storage gate, dormant series are queued on every sweep.", ruleName)
		}
	}
}

// GetRuleConfig returns the configuration of a specific rule.
// Viper normalizes map keys to lowercase, so the lookup is case-insensitive.
func (c *Config) GetRuleConfig(ruleName string) *RuleConfig {
	if c.RulesConfig == nil {
		return nil
	}

	ruleNameLower := strings.ToLower(ruleName)
	for key, config := range c.RulesConfig {
		if strings.ToLower(key) == ruleNameLower {
			return config
		}
	}

	return nil
}

// GetHistoryTimeout returns the history timeout with proper defaults.
func (c *Config) GetHistoryTimeout() time.Duration {
	if c == nil || c.HistoryTimeout <= 0 {
		return 10 * time.Second
	}
	return c.HistoryTimeout
}

// GetHistoryRetention returns how long history events are kept.
func (c *Config) GetHistoryRetention() time.Duration {
	days := 90
	if c != nil && c.HistoryRetentionDays > 0 {
		days = c.HistoryRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetCacheTTL returns the cache ttl with proper defaults.
func (c *Config) GetCacheTTL() time.Duration {
	if c == nil || c.Cache == nil || c.Cache.TTL <= 0 {
		return 15 * time.Minute
	}
	return c.Cache.TTL
}

// GetSonarrTimeout returns the Sonarr request timeout with proper defaults.
func (c *SonarrConfig) GetSonarrTimeout() time.Duration {
	if c == nil || c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

// TagLabel returns the Sonarr tag label that assigns a series to the given rule.
func (c *Config) TagLabel(ruleName string) string {
	prefix := "episweep_"
	if c.TagSync != nil && c.TagSync.Prefix != "" {
		prefix = c.TagSync.Prefix
	}
	return strings.ToLower(prefix + ruleName)
}

// Rules returns the configured rules in their normalized form, keyed by lowercase name.
// Legacy get_option and keep_watched values are translated here, typed fields win when both are set.
func (c *Config) Rules() map[string]rules.Rule {
	out := make(map[string]rules.Rule, len(c.RulesConfig))
	for name, rc := range c.RulesConfig {
		if rc == nil {
			continue
		}
		out[strings.ToLower(name)] = rc.toRule(strings.ToLower(name), c.DryRun)
	}
	return out
}

// GetRule returns the normalized rule with the given name.
func (c *Config) GetRule(name string) (rules.Rule, bool) {
	rc := c.GetRuleConfig(name)
	if rc == nil {
		return rules.Rule{}, false
	}
	return rc.toRule(strings.ToLower(name), c.DryRun), true
}

// StaticAssignments returns the series ids listed under each rule.
func (c *Config) StaticAssignments() map[int32]string {
	out := make(map[int32]string)
	for name, rc := range c.RulesConfig {
		if rc == nil {
			continue
		}
		for _, id := range rc.Series {
			out[id] = strings.ToLower(name)
		}
	}
	return out
}

func (rc *RuleConfig) toRule(name string, globalDryRun bool) rules.Rule {
	r := rules.Rule{
		Name:           name,
		GetType:        rules.Type(rc.GetType),
		GetCount:       rc.GetCount,
		KeepType:       rules.Type(rc.KeepType),
		KeepCount:      rc.KeepCount,
		Action:         rules.Action(strings.ToLower(rc.ActionOption)),
		MonitorWatched: rc.MonitorWatched,
		GraceDays:      rc.GraceDays,
		DormantDays:    rc.DormantDays,
		GraceScope:     rules.GraceScope(strings.ToLower(rc.GraceScope)),
		GraceBookmarks: rc.GraceBookmarks,
		DryRun:         rc.DryRun || globalDryRun,
	}

	if rc.GetType == "" {
		if rc.GetOption != "" {
			r.GetType, r.GetCount = rules.ParseLegacy(rc.GetOption)
		} else {
			r.GetType = rules.TypeEpisodes
		}
	}
	if rc.KeepType == "" {
		if rc.KeepWatched != "" {
			r.KeepType, r.KeepCount = rules.ParseLegacy(rc.KeepWatched)
		} else {
			r.KeepType = rules.TypeAll
		}
	}

	return r.Normalize()
}
