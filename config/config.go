package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Queue struct {
	// Rooms the queue covers; at least one.
	Rooms []string `yaml:"rooms"`
	// When true, claim additionally requires a checked-in session.
	CheckInRequired bool `yaml:"checkInRequired"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // queue-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

// Course is the external identity + submission API.
type Course struct {
	APIRoot  string `yaml:"apiRoot"`
	APIToken string `yaml:"apiToken"`
}

type Auth struct {
	TokenSecret string        `yaml:"tokenSecret"`
	TokenTTL    time.Duration `yaml:"tokenTTL"`
}

type Timeouts struct {
	// Upper bound on any outbound identity/submission/group-lookup call.
	Collaborator time.Duration `yaml:"collaborator"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Queue    Queue    `yaml:"queue"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Course   Course   `yaml:"course"`
	Auth     Auth     `yaml:"auth"`
	Timeouts Timeouts `yaml:"timeouts"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Course.APIRoot == "" {
		return errors.New("course.apiRoot is required")
	}
	if c.Course.APIToken == "" {
		return errors.New("course.apiToken is required")
	}
	if c.Auth.TokenSecret == "" {
		return errors.New("auth.tokenSecret is required")
	}
	if len(c.Queue.Rooms) == 0 {
		c.Queue.Rooms = []string{"default"}
	}
	for _, room := range c.Queue.Rooms {
		if err := validateRoomName(room); err != nil {
			return err
		}
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Timeouts.Collaborator <= 0 {
		c.Timeouts.Collaborator = 10 * time.Second
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "queue-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

// Room names become URL fragments and map keys on the client side.
func validateRoomName(room string) error {
	if room == "" {
		return errors.New("queue.rooms: empty room name")
	}
	if strings.HasPrefix(room, ".") || strings.HasPrefix(room, "_") || strings.Contains(room, "/") {
		return fmt.Errorf("queue.rooms: invalid room name %q", room)
	}
	return nil
}
