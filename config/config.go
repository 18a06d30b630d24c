package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Shared    SharedConfig    `yaml:"shared"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Database  DatabaseConfig  `yaml:"database"`
	Messaging MessagingConfig `yaml:"messaging"`
	Web       WebConfig       `yaml:"web"`
}

// ServerConfig is the client-facing TCP listener.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	MaxFrameSize int    `yaml:"max_frame_size"`
}

type WarehouseConfig struct {
	Robots     int           `yaml:"robots"`
	LowStock   int           `yaml:"low_stock"`
	WorkerIdle time.Duration `yaml:"worker_idle"`
	Inventory  []ItemConfig  `yaml:"inventory"`
}

// ItemConfig seeds one ledger entry at startup.
type ItemConfig struct {
	ID         int      `yaml:"id"`
	Name       string   `yaml:"name"`
	Quantity   int      `yaml:"quantity"`
	UnitCost   string   `yaml:"unit_cost"`
	UnitWeight float64  `yaml:"unit_weight"`
	Shelves    []string `yaml:"shelves"`
}

type SharedConfig struct {
	Backend      string        `yaml:"backend"` // "memory" or "redis"
	Docks        int           `yaml:"docks"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Redis        RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type FleetConfig struct {
	Backend    string        `yaml:"backend"` // "sim" or "http"
	PickTime   time.Duration `yaml:"pick_time"`
	TravelTime time.Duration `yaml:"travel_time"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "none", "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         52134,
			MaxFrameSize: 1 << 20,
		},
		Warehouse: WarehouseConfig{
			Robots:     4,
			LowStock:   5,
			WorkerIdle: 50 * time.Millisecond,
		},
		Shared: SharedConfig{
			Backend:      "redis",
			Docks:        3,
			PollInterval: 500 * time.Millisecond,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "warehouse",
			},
		},
		Fleet: FleetConfig{
			Backend:    "sim",
			PickTime:   200 * time.Millisecond,
			TravelTime: 100 * time.Millisecond,
			BaseURL:    "http://localhost:8090",
			Timeout:    10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: ":memory:"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "warehouse",
				User:     "warehouse",
				SSLMode:  "disable",
			},
		},
		Messaging: MessagingConfig{
			Backend: "none",
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "warehoused",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
			EventsTopic:         "warehouse.events",
			OutboxDrainInterval: 5 * time.Second,
			StationID:           "controller",
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8084,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
