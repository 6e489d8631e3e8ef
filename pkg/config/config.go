package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort     string
	Environment    string
	InstanceID     string
	AllowedOrigins []string

	// Conversation and subscription store: memory, firestore, postgres, mongo
	StoreDriver           string
	FirebaseProject       string
	FirebaseCredentials   string
	FirebaseCredentialsJS string
	DatabaseURL           string
	MongoURI              string
	MongoDatabase         string

	// Presence registry: memory, redis
	PresenceDriver string
	RedisURL       string

	// Auto-reply scheduler: timer, asynq
	SchedulerDriver string

	// Push provider: webpush, fcm, all, none
	PushProvider    string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDEmail      string

	AutoReply AutoReplyConfig
	RateLimit RateLimitConfig

	WSPingInterval    time.Duration
	WSPongTimeout     time.Duration
	WSEventsPerSecond float64
	WSEventBurst      int
}

// AutoReplyConfig controls the synthetic support message sent to customers
// who write before any agent has answered.
type AutoReplyConfig struct {
	Enabled      bool
	Delay        time.Duration
	StartHour    int
	EndHour      int
	Location     *time.Location
	InHoursText  string
	OffHoursText string
}

// RateLimitConfig holds per-minute request budgets. REST budgets are per
// client IP; the send budget is additionally scoped to one conversation, and
// the typing budget applies per websocket connection.
type RateLimitConfig struct {
	APIPerMinute    int
	SendPerMinute   int
	TypingPerMinute int
}

const (
	defaultInHoursText  = "Thanks for reaching out! A support agent will join this chat shortly."
	defaultOffHoursText = "Thanks for your message. Our support team is offline right now and will reply as soon as working hours resume."
)

func Load() (*Config, error) {
	godotenv.Load()

	loc, err := time.LoadLocation(getEnv("WORKING_HOURS_TZ", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKING_HOURS_TZ: %w", err)
	}

	hostname, _ := os.Hostname()

	config := &Config{
		ServerPort:            getEnv("SERVER_PORT", "4000"),
		Environment:           getEnv("ENVIRONMENT", "development"),
		InstanceID:            getEnv("INSTANCE_ID", hostname),
		AllowedOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS"),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		FirebaseProject:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials:   getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		FirebaseCredentialsJS: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		MongoURI:              getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:         getEnv("MONGO_DATABASE", "helpdesk"),
		PresenceDriver:        strings.ToLower(getEnv("PRESENCE_DRIVER", "memory")),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SchedulerDriver:       strings.ToLower(getEnv("SCHEDULER_DRIVER", "timer")),
		PushProvider:          strings.ToLower(getEnv("PUSH_PROVIDER", "webpush")),
		VAPIDPublicKey:        getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:       getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDEmail:            getEnv("VAPID_EMAIL", "mailto:admin@example.com"),
		AutoReply: AutoReplyConfig{
			Enabled:      getEnvAsBool("AUTO_REPLY_ENABLED", true),
			Delay:        time.Duration(getEnvAsInt64("AUTO_REPLY_DELAY_MS", 2000)) * time.Millisecond,
			StartHour:    int(getEnvAsInt64("WORKING_HOURS_START", 9)),
			EndHour:      int(getEnvAsInt64("WORKING_HOURS_END", 18)),
			Location:     loc,
			InHoursText:  getEnv("AUTO_REPLY_IN_HOURS_TEXT", defaultInHoursText),
			OffHoursText: getEnv("AUTO_REPLY_OFF_HOURS_TEXT", defaultOffHoursText),
		},
		RateLimit: RateLimitConfig{
			APIPerMinute:    int(getEnvAsInt64("RATE_LIMIT_API_PER_MINUTE", 300)),
			SendPerMinute:   int(getEnvAsInt64("RATE_LIMIT_SEND_PER_MINUTE", 60)),
			TypingPerMinute: int(getEnvAsInt64("RATE_LIMIT_TYPING_PER_MINUTE", 60)),
		},
		WSPingInterval:    time.Duration(getEnvAsInt64("WS_PING_INTERVAL_MS", 5000)) * time.Millisecond,
		WSPongTimeout:     time.Duration(getEnvAsInt64("WS_PONG_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSEventsPerSecond: getEnvAsFloat("WS_EVENTS_PER_SECOND", 20),
		WSEventBurst:      int(getEnvAsInt64("WS_EVENT_BURST", 40)),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "firestore", "postgres", "mongo":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == "firestore" && c.FirebaseProject == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store")
	}
	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	switch c.PresenceDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported PRESENCE_DRIVER %q", c.PresenceDriver)
	}
	switch c.SchedulerDriver {
	case "timer", "asynq":
	default:
		return fmt.Errorf("unsupported SCHEDULER_DRIVER %q", c.SchedulerDriver)
	}
	switch c.PushProvider {
	case "webpush", "fcm", "all", "none":
	default:
		return fmt.Errorf("unsupported PUSH_PROVIDER %q", c.PushProvider)
	}
	if c.RateLimit.APIPerMinute <= 0 || c.RateLimit.SendPerMinute <= 0 || c.RateLimit.TypingPerMinute <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.AutoReply.StartHour < 0 || c.AutoReply.StartHour > 23 || c.AutoReply.EndHour < 0 || c.AutoReply.EndHour > 24 {
		return fmt.Errorf("working hours must be within 0-24")
	}
	return nil
}

// InWorkingHours reports whether t falls inside [StartHour, EndHour) in the
// configured location. A window whose end precedes its start wraps midnight.
func (a AutoReplyConfig) InWorkingHours(t time.Time) bool {
	loc := a.Location
	if loc == nil {
		loc = time.Local
	}
	h := t.In(loc).Hour()
	if a.StartHour <= a.EndHour {
		return h >= a.StartHour && h < a.EndHour
	}
	return h >= a.StartHour || h < a.EndHour
}

// Text returns the auto-reply body for the given wall-clock time.
func (a AutoReplyConfig) Text(t time.Time) string {
	if a.InWorkingHours(t) {
		return a.InHoursText
	}
	return a.OffHoursText
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}
