package config

import (
	"errors"
	"time"
)

type ChecksConfig struct {
	Cozytouch CozytouchConfig `yaml:"cozytouch"`
	Netatmo   NetatmoConfig   `yaml:"netatmo"`
	SBFspot   SBFspotConfig   `yaml:"sbfspot"`
}

type CozytouchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Prefix   string        `yaml:"prefix" env-default:"cozytouch"`
	Interval time.Duration `yaml:"interval"`
	BaseURL  string        `yaml:"base_url" env-default:"https://ha110-1.overkiz.com/enduser-mobile-web/enduserAPI"`
	Username string        `yaml:"username" env:"COZYTOUCH_USERNAME"`
	Password string        `yaml:"password" env:"COZYTOUCH_PASSWORD"`
}

type NetatmoConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Prefix       string        `yaml:"prefix" env-default:"netatmo"`
	Interval     time.Duration `yaml:"interval"`
	BaseURL      string        `yaml:"base_url" env-default:"https://api.netatmo.com"`
	ClientID     string        `yaml:"client_id" env:"NETATMO_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"NETATMO_CLIENT_SECRET"`
	Username     string        `yaml:"username" env:"NETATMO_USERNAME"`
	Password     string        `yaml:"password" env:"NETATMO_PASSWORD"`
	RefreshToken string        `yaml:"refresh_token" env:"NETATMO_REFRESH_TOKEN"`
	DeviceID     string        `yaml:"device_id" env:"NETATMO_DEVICE"`
}

type SBFspotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Prefix   string        `yaml:"prefix" env-default:"sbfspot"`
	Interval time.Duration `yaml:"interval"`
	Path     string        `yaml:"path" env-default:"/var/lib/smadata/SBFspot.db"`
}

// IntervalFor returns the per-check interval, falling back to the global one.
func (c *Config) IntervalFor(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return c.Polling.Interval
}

func (c ChecksConfig) validate() []error {
	var errs []error

	if c.Cozytouch.Enabled {
		if c.Cozytouch.Username == "" || c.Cozytouch.Password == "" {
			errs = append(errs, errors.New("checks.cozytouch.username and password are required"))
		}
	}

	if c.Netatmo.Enabled {
		if c.Netatmo.ClientID == "" || c.Netatmo.ClientSecret == "" {
			errs = append(errs, errors.New("checks.netatmo.client_id and client_secret are required"))
		}
		if c.Netatmo.RefreshToken == "" && (c.Netatmo.Username == "" || c.Netatmo.Password == "") {
			errs = append(errs, errors.New("checks.netatmo needs a refresh_token or username and password"))
		}
	}

	if c.SBFspot.Enabled && c.SBFspot.Path == "" {
		errs = append(errs, errors.New("checks.sbfspot.path is required"))
	}

	return errs
}
