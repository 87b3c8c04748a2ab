// Package config loads the network server's TOML configuration file using
// viper, the way chirpstack-network-server's own cmd/config.go does (its
// sibling project, by the same author as the frame codec this server's
// C1-C3 layers are grounded on). Mapstructure tags mirror section names
// one-for-one so a config.toml reads naturally top to bottom.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// C is the root configuration structure, populated by LoadConfig.
type C struct {
	General struct {
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"general"`

	NetworkServer struct {
		NetID        string `mapstructure:"net_id"`
		JoinEUI      string `mapstructure:"join_eui"`
		Band         string `mapstructure:"band"`
		DeduplicationDelay time.Duration `mapstructure:"deduplication_delay"`
		DeviceSessionTTL   time.Duration `mapstructure:"device_session_ttl"`
		SchedulerDeviceInterval    time.Duration `mapstructure:"scheduler_device_interval"`
		SchedulerMulticastInterval time.Duration `mapstructure:"scheduler_multicast_interval"`
	} `mapstructure:"network_server"`

	PostgreSQL struct {
		DSN                string `mapstructure:"dsn"`
		MaxOpenConnections int    `mapstructure:"max_open_connections"`
		MaxIdleConnections int    `mapstructure:"max_idle_connections"`
	} `mapstructure:"postgresql"`

	Redis struct {
		Servers  []string `mapstructure:"servers"`
		Cluster  bool     `mapstructure:"cluster"`
		Password string   `mapstructure:"password"`
		Database int      `mapstructure:"database"`
	} `mapstructure:"redis"`

	JoinServer struct {
		Server  string `mapstructure:"server"`
		CACert  string `mapstructure:"ca_cert"`
		TLSCert string `mapstructure:"tls_cert"`
		TLSKey  string `mapstructure:"tls_key"`
	} `mapstructure:"join_server"`

	GatewayBridge struct {
		EventTopicTemplate   string `mapstructure:"event_topic_template"`
		CommandTopicTemplate string `mapstructure:"command_topic_template"`
		MQTT                 struct {
			Server   string `mapstructure:"server"`
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
			CACert   string `mapstructure:"ca_cert"`
			TLSCert  string `mapstructure:"tls_cert"`
			TLSKey   string `mapstructure:"tls_key"`
		} `mapstructure:"mqtt"`
	} `mapstructure:"gateway_bridge"`

	Metrics struct {
		Prometheus struct {
			Bind string `mapstructure:"bind"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"metrics"`
}

// cfg is the package-level configuration loaded by LoadConfig, mirroring
// the teacher package's preference for a single resolved value over a
// context-threaded config everywhere.
var cfg C

// Get returns the most recently loaded configuration.
func Get() C {
	return cfg
}

// LoadConfig reads and validates the TOML config file at path, populating
// the package-level configuration returned by Get.
func LoadConfig(path string) (C, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return C{}, errors.Wrap(err, "read config file error")
	}

	var c C
	if err := v.Unmarshal(&c); err != nil {
		return C{}, errors.Wrap(err, "unmarshal config error")
	}

	if err := validate(c); err != nil {
		return C{}, err
	}

	cfg = c
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("network_server.deduplication_delay", 200*time.Millisecond)
	v.SetDefault("network_server.device_session_ttl", 744*time.Hour)
	v.SetDefault("network_server.scheduler_device_interval", time.Second)
	v.SetDefault("network_server.scheduler_multicast_interval", time.Second)
	v.SetDefault("postgresql.max_open_connections", 10)
	v.SetDefault("postgresql.max_idle_connections", 2)
	v.SetDefault("redis.database", 0)
	v.SetDefault("metrics.prometheus.bind", "0.0.0.0:8080")
}

func validate(c C) error {
	if c.NetworkServer.NetID == "" {
		return errors.New("config: network_server.net_id must be set")
	}
	if c.NetworkServer.Band == "" {
		return errors.New("config: network_server.band must be set")
	}
	if c.PostgreSQL.DSN == "" {
		return errors.New("config: postgresql.dsn must be set")
	}
	if len(c.Redis.Servers) == 0 {
		return errors.New("config: redis.servers must list at least one address")
	}
	return nil
}
