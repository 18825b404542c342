package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

//EnvPrefix is prepended to every environment variable, e.g. BETTY_DISCORD_TOKEN.
const EnvPrefix = "BETTY"

//Store backends.
const (
	StoreMemory   = "memory"
	StoreRethink  = "rethink"
	StorePostgres = "postgres"
)

//Queue backends.
const (
	QueueMemory = "memory"
	QueueValkey = "valkey"
)

type LogConfig struct {
	Level  string
	Format string
}

type DiscordConfig struct {
	Token         string
	CommandPrefix string
}

type TwitchConfig struct {
	ClientID           string
	ClientSecret       string
	APIBaseURL         string
	CallbackURL        string
	WebhookSecret      string
	PruneSubscriptions bool
}

type StoreConfig struct {
	Backend         string
	RethinkAddress  string
	RethinkDatabase string
	PostgresDSN     string
}

type QueueConfig struct {
	Backend        string
	ValkeyAddress  string
	ValkeyPassword string
	ValkeyDB       int
	KeyPrefix      string
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
}

type MediaConfig struct {
	ImgbbAPIKey     string
	GIFWidth        int
	FrameDelay      int
	FinalFrameDelay int
}

//EngineConfig holds the tunables of the synchronization engine.
type EngineConfig struct {
	DebounceThreshold    time.Duration
	SnapshotInterval     time.Duration
	MaxSnapshots         int
	SweepInterval        time.Duration
	SweepConcurrency     int
	SubscriptionInterval time.Duration
	VODMaxAge            time.Duration
	FallbackGameID       string
}

type HTTPConfig struct {
	Listen string
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

//Config is the full application configuration.
type Config struct {
	Log       LogConfig
	Discord   DiscordConfig
	Twitch    TwitchConfig
	Store     StoreConfig
	Queue     QueueConfig
	Media     MediaConfig
	Engine    EngineConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("discord.token", "")
	v.SetDefault("discord.command_prefix", "!twitch")

	v.SetDefault("twitch.client_id", "")
	v.SetDefault("twitch.client_secret", "")
	v.SetDefault("twitch.api_base_url", "https://api.twitch.tv/helix")
	v.SetDefault("twitch.callback_url", "")
	v.SetDefault("twitch.webhook_secret", "")
	v.SetDefault("twitch.prune_subscriptions", false)

	v.SetDefault("store.backend", StoreRethink)
	v.SetDefault("store.rethink_address", "localhost:28015")
	v.SetDefault("store.rethink_database", "betty")
	v.SetDefault("store.postgres_dsn", "")

	v.SetDefault("queue.backend", QueueValkey)
	v.SetDefault("queue.valkey_address", "localhost:6379")
	v.SetDefault("queue.valkey_password", "")
	v.SetDefault("queue.valkey_db", 0)
	v.SetDefault("queue.key_prefix", "betty")
	v.SetDefault("queue.batch_size", 32)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.poll_interval", 10*time.Second)

	v.SetDefault("media.imgbb_api_key", "")
	v.SetDefault("media.gif_width", 400)
	v.SetDefault("media.frame_delay", 50)
	v.SetDefault("media.final_frame_delay", 200)

	v.SetDefault("engine.debounce_threshold", 240*time.Second)
	v.SetDefault("engine.snapshot_interval", 5*time.Minute)
	v.SetDefault("engine.max_snapshots", 50)
	v.SetDefault("engine.sweep_interval", time.Minute)
	v.SetDefault("engine.sweep_concurrency", 4)
	v.SetDefault("engine.subscription_interval", time.Hour)
	v.SetDefault("engine.vod_max_age", 48*time.Hour)
	v.SetDefault("engine.fallback_game_id", "509658")

	v.SetDefault("http.listen", ":8080")

	v.SetDefault("telemetry.otlp_endpoint", "")
}

//Load reads configuration from defaults, an optional config file and BETTY_* environment variables,
//in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %v: %w", configFile, err)
		}
	}

	c := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Discord: DiscordConfig{
			Token:         v.GetString("discord.token"),
			CommandPrefix: v.GetString("discord.command_prefix"),
		},
		Twitch: TwitchConfig{
			ClientID:           v.GetString("twitch.client_id"),
			ClientSecret:       v.GetString("twitch.client_secret"),
			APIBaseURL:         v.GetString("twitch.api_base_url"),
			CallbackURL:        v.GetString("twitch.callback_url"),
			WebhookSecret:      v.GetString("twitch.webhook_secret"),
			PruneSubscriptions: v.GetBool("twitch.prune_subscriptions"),
		},
		Store: StoreConfig{
			Backend:         v.GetString("store.backend"),
			RethinkAddress:  v.GetString("store.rethink_address"),
			RethinkDatabase: v.GetString("store.rethink_database"),
			PostgresDSN:     v.GetString("store.postgres_dsn"),
		},
		Queue: QueueConfig{
			Backend:        v.GetString("queue.backend"),
			ValkeyAddress:  v.GetString("queue.valkey_address"),
			ValkeyPassword: v.GetString("queue.valkey_password"),
			ValkeyDB:       v.GetInt("queue.valkey_db"),
			KeyPrefix:      v.GetString("queue.key_prefix"),
			BatchSize:      v.GetInt("queue.batch_size"),
			MaxAttempts:    v.GetInt("queue.max_attempts"),
			PollInterval:   v.GetDuration("queue.poll_interval"),
		},
		Media: MediaConfig{
			ImgbbAPIKey:     v.GetString("media.imgbb_api_key"),
			GIFWidth:        v.GetInt("media.gif_width"),
			FrameDelay:      v.GetInt("media.frame_delay"),
			FinalFrameDelay: v.GetInt("media.final_frame_delay"),
		},
		Engine: EngineConfig{
			DebounceThreshold:    v.GetDuration("engine.debounce_threshold"),
			SnapshotInterval:     v.GetDuration("engine.snapshot_interval"),
			MaxSnapshots:         v.GetInt("engine.max_snapshots"),
			SweepInterval:        v.GetDuration("engine.sweep_interval"),
			SweepConcurrency:     v.GetInt("engine.sweep_concurrency"),
			SubscriptionInterval: v.GetDuration("engine.subscription_interval"),
			VODMaxAge:            v.GetDuration("engine.vod_max_age"),
			FallbackGameID:       v.GetString("engine.fallback_game_id"),
		},
		HTTP: HTTPConfig{
			Listen: v.GetString("http.listen"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		},
	}
	return c, nil
}

//ValidateCore checks the settings every command needs: storage, queue and engine tunables.
func (c *Config) ValidateCore() error {
	errs := validation.Errors{}
	errs["store"] = validation.ValidateStruct(&c.Store,
		validation.Field(&c.Store.Backend, validation.Required, validation.In(StoreMemory, StoreRethink, StorePostgres)),
		validation.Field(&c.Store.RethinkAddress, validation.When(c.Store.Backend == StoreRethink, validation.Required)),
		validation.Field(&c.Store.RethinkDatabase, validation.When(c.Store.Backend == StoreRethink, validation.Required)),
		validation.Field(&c.Store.PostgresDSN, validation.When(c.Store.Backend == StorePostgres, validation.Required)),
	)
	errs["queue"] = validation.ValidateStruct(&c.Queue,
		validation.Field(&c.Queue.Backend, validation.Required, validation.In(QueueMemory, QueueValkey)),
		validation.Field(&c.Queue.ValkeyAddress, validation.When(c.Queue.Backend == QueueValkey, validation.Required)),
		validation.Field(&c.Queue.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Queue.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.Queue.PollInterval, validation.Required),
	)
	errs["engine"] = validation.ValidateStruct(&c.Engine,
		validation.Field(&c.Engine.DebounceThreshold, validation.Required),
		validation.Field(&c.Engine.SnapshotInterval, validation.Required),
		validation.Field(&c.Engine.MaxSnapshots, validation.Required, validation.Min(1)),
		validation.Field(&c.Engine.SweepInterval, validation.Required),
		validation.Field(&c.Engine.SweepConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.Engine.SubscriptionInterval, validation.Required),
		validation.Field(&c.Engine.VODMaxAge, validation.Required),
		validation.Field(&c.Engine.FallbackGameID, validation.Required),
	)
	errs["log"] = validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Format, validation.In("text", "json")),
	)
	return errs.Filter()
}

//ValidateTwitch checks the platform API credentials and callback.
func (c *Config) ValidateTwitch() error {
	return validation.Errors{
		"twitch": validation.ValidateStruct(&c.Twitch,
			validation.Field(&c.Twitch.ClientID, validation.Required),
			validation.Field(&c.Twitch.ClientSecret, validation.Required),
			validation.Field(&c.Twitch.APIBaseURL, validation.Required, is.URL),
			validation.Field(&c.Twitch.CallbackURL, validation.Required, is.URL),
			validation.Field(&c.Twitch.WebhookSecret, validation.Length(10, 100)),
		),
	}.Filter()
}

//ValidateRun checks everything needed by the long-running service.
func (c *Config) ValidateRun() error {
	errs := validation.Errors{
		"core":   c.ValidateCore(),
		"twitch": c.ValidateTwitch(),
		"discord": validation.ValidateStruct(&c.Discord,
			validation.Field(&c.Discord.Token, validation.Required),
			validation.Field(&c.Discord.CommandPrefix, validation.Required),
		),
		"media": validation.ValidateStruct(&c.Media,
			validation.Field(&c.Media.ImgbbAPIKey, validation.Required),
			validation.Field(&c.Media.GIFWidth, validation.Required, validation.Min(1)),
			validation.Field(&c.Media.FrameDelay, validation.Required, validation.Min(1)),
			validation.Field(&c.Media.FinalFrameDelay, validation.Required, validation.Min(1)),
		),
		"http": validation.ValidateStruct(&c.HTTP,
			validation.Field(&c.HTTP.Listen, validation.Required),
		),
	}
	return errs.Filter()
}
