package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/cardroom/holdem-rooms/internal/game"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains the defaults applied to new sessions. Session
// creators may override blinds and seat count per session.
type GameSettings struct {
	SmallBlind          int `hcl:"small_blind,optional"`
	BigBlind            int `hcl:"big_blind,optional"`
	MaxSeats            int `hcl:"max_seats,optional"`
	StartingStack       int `hcl:"starting_stack,optional"`
	RestartDelaySeconds int `hcl:"restart_delay_seconds,optional"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			SmallBlind:          5,
			BigBlind:            10,
			MaxSeats:            6,
			StartingStack:       1000,
			RestartDelaySeconds: 5,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.SmallBlind == 0 {
		config.Game.SmallBlind = defaults.Game.SmallBlind
	}
	if config.Game.BigBlind == 0 {
		config.Game.BigBlind = defaults.Game.BigBlind
	}
	if config.Game.MaxSeats == 0 {
		config.Game.MaxSeats = defaults.Game.MaxSeats
	}
	if config.Game.StartingStack == 0 {
		config.Game.StartingStack = defaults.Game.StartingStack
	}
	if config.Game.RestartDelaySeconds == 0 {
		config.Game.RestartDelaySeconds = defaults.Game.RestartDelaySeconds
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.SmallBlind <= 0 {
		return fmt.Errorf("small blind must be positive")
	}
	if c.Game.BigBlind <= c.Game.SmallBlind {
		return fmt.Errorf("big blind must be greater than small blind")
	}
	if c.Game.MaxSeats < 2 || c.Game.MaxSeats > 10 {
		return fmt.Errorf("max seats must be between 2 and 10")
	}
	if c.Game.StartingStack < c.Game.BigBlind*10 {
		return fmt.Errorf("starting stack must be at least 10 big blinds")
	}
	if c.Game.RestartDelaySeconds < 1 {
		return fmt.Errorf("restart delay must be at least 1 second")
	}
	return nil
}

// Addr returns the full listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameDefaults returns the session defaults as an engine config.
func (c *Config) GameDefaults() game.Config {
	return game.Config{
		SmallBlind:    c.Game.SmallBlind,
		BigBlind:      c.Game.BigBlind,
		MaxSeats:      c.Game.MaxSeats,
		StartingStack: c.Game.StartingStack,
	}
}

// RestartDelay returns the showdown auto-restart delay.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Game.RestartDelaySeconds) * time.Second
}
