// Package config loads the engine configuration from a yaml file. Secrets
// may be left out of the file and provided through the environment instead.
package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

type Exchange struct {
	Key        string `yaml:"key" json:"-"`
	Secret     string `yaml:"secret" json:"-"`
	Passphrase string `yaml:"passphrase" json:"-"`

	// Simulated routes every request to the venue's demo trading environment.
	Simulated bool `yaml:"simulated" json:"simulated"`
}

type Telegram struct {
	Token string `yaml:"token" json:"-"`

	// ChatID is the monitored chat or channel. Zero disables the listener.
	ChatID int64 `yaml:"chatId" json:"chatId"`
}

type Slack struct {
	Token   string `yaml:"token" json:"-"`
	Channel string `yaml:"channel" json:"channel"`
}

type Server struct {
	Bind string `yaml:"bind" json:"bind"`
}

type Reconcile struct {
	// Schedule is a cron spec, e.g. "@every 1m".
	Schedule string `yaml:"schedule" json:"schedule"`
}

type Config struct {
	Database  Database  `yaml:"database" json:"database"`
	Exchange  Exchange  `yaml:"exchange" json:"exchange"`
	Telegram  Telegram  `yaml:"telegram" json:"telegram"`
	Slack     Slack     `yaml:"slack" json:"slack"`
	Server    Server    `yaml:"server" json:"server"`
	Reconcile Reconcile `yaml:"reconcile" json:"reconcile"`
}

func (c *Config) Defaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Server.Bind == "" {
		c.Server.Bind = ":8080"
	}
	if c.Reconcile.Schedule == "" {
		c.Reconcile.Schedule = "@every 1m"
	}
}

func (c *Config) Validate() error {
	if c.Database.Driver != "mysql" {
		return errors.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	return nil
}

func Load(path string) (*Config, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can not read config file %s", path)
	}

	var c Config
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, errors.Wrapf(err, "can not parse config file %s", path)
	}

	c.Defaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}
