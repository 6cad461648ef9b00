package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
	Sessions SessionStoreConfig
	Delivery DeliveryConfig
	Logs     LogConfig
	Sweeper  SweeperConfig
	HTTP     HTTPConfig
	Policy   SecurityPolicy
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path               string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	PingTimeout        time.Duration
	CreateDemoAccounts bool
}

// LedgerConfig selects where completed transactions are appended
type LedgerConfig struct {
	Backend  string // "sqlite" or "formance"
	Formance FormanceConfig
}

// FormanceConfig holds Formance Stack credentials
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// SessionStoreConfig selects the session backend
type SessionStoreConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// DeliveryConfig holds challenge delivery settings
type DeliveryConfig struct {
	Backend       string // "console" or "amqp"
	AMQPURL       string
	Exchange      string
	RoutingKey    string
	RatePerMinute int
	Burst         int
}

// LogConfig holds audit and security log destinations
type LogConfig struct {
	AuditPath    string
	SecurityPath string
}

// SweeperConfig holds the expiry sweep schedule
type SweeperConfig struct {
	Schedule string
}

// HTTPConfig holds HTTP listener settings
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}
