package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		HTTP:     HTTP{Addr: ":8080"},
		Postgres: Postgres{DSN: "postgres://localhost/queue"},
		Course:   Course{APIRoot: "https://course.example", APIToken: "tok"},
		Auth:     Auth{TokenSecret: "secret"},
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(cfg.Queue.Rooms) != 1 || cfg.Queue.Rooms[0] != "default" {
		t.Fatalf("expected default room, got %v", cfg.Queue.Rooms)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Fatalf("expected 12h token ttl, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Timeouts.Collaborator != 10*time.Second {
		t.Fatalf("expected 10s collaborator timeout, got %v", cfg.Timeouts.Collaborator)
	}
	if cfg.Logging.Service != "queue-service" || cfg.Logging.Backend != "std" {
		t.Fatalf("logging defaults missing: %+v", cfg.Logging)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"missing dsn", func(c *Config) { c.Postgres.DSN = "" }},
		{"missing api root", func(c *Config) { c.Course.APIRoot = "" }},
		{"missing api token", func(c *Config) { c.Course.APIToken = "" }},
		{"missing token secret", func(c *Config) { c.Auth.TokenSecret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_RoomNames(t *testing.T) {
	bad := []string{"", ".hidden", "_internal", "a/b"}
	for _, room := range bad {
		cfg := validConfig()
		cfg.Queue.Rooms = []string{room}
		if err := cfg.Validate(); err == nil {
			t.Errorf("room %q should be rejected", room)
		}
	}

	cfg := validConfig()
	cfg.Queue.Rooms = []string{"lab1", "office-hours", "B wing"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid rooms rejected: %v", err)
	}
}
