package utils

import (
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Webhook  WebhookConfig
	Payment  PaymentConfig
	Urgency  UrgencyConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	CRM      CRMConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type WebhookConfig struct {
	GHLSecret        string
	StripeSecret     string
	ToleranceSeconds int
	MaxBodyBytes     int64
}

type PaymentConfig struct {
	ExpirationHours int
}

type UrgencyConfig struct {
	RescoreMinutes int
	BatchSize      int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

type CRMConfig struct {
	APIBase string
	APIKey  string
}

type AdminConfig struct {
	// Bcrypt hash of the operator API key, never the key itself.
	APIKeyHash string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("WEBHOOK_TOLERANCE_SECONDS", 300)
	viper.SetDefault("WEBHOOK_MAX_BODY_BYTES", 1<<20)
	viper.SetDefault("PAYMENT_EXPIRATION_HOURS", 72)
	viper.SetDefault("URGENCY_RESCORE_MINUTES", 15)
	viper.SetDefault("URGENCY_BATCH_SIZE", 100)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("AMQP_EXCHANGE", "crm.sync")
	viper.SetDefault("AMQP_QUEUE", "crm.sync.jobs")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Webhook: WebhookConfig{
			GHLSecret:        viper.GetString("GHL_WEBHOOK_SECRET"),
			StripeSecret:     viper.GetString("STRIPE_WEBHOOK_SECRET"),
			ToleranceSeconds: viper.GetInt("WEBHOOK_TOLERANCE_SECONDS"),
			MaxBodyBytes:     viper.GetInt64("WEBHOOK_MAX_BODY_BYTES"),
		},
		Payment: PaymentConfig{
			ExpirationHours: viper.GetInt("PAYMENT_EXPIRATION_HOURS"),
		},
		Urgency: UrgencyConfig{
			RescoreMinutes: viper.GetInt("URGENCY_RESCORE_MINUTES"),
			BatchSize:      viper.GetInt("URGENCY_BATCH_SIZE"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASS"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		AMQP: AMQPConfig{
			URL:      viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
			Queue:    viper.GetString("AMQP_QUEUE"),
		},
		CRM: CRMConfig{
			APIBase: viper.GetString("GHL_API_BASE"),
			APIKey:  viper.GetString("GHL_API_KEY"),
		},
		Admin: AdminConfig{
			APIKeyHash: viper.GetString("ADMIN_API_KEY_HASH"),
		},
	}

	return config, nil
}
