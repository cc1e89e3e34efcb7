// Package config loads and validates the bridge's YAML configuration file,
// grounded on original_source/EHSConfig.py: the same four top-level
// sections (mqtt, general, serial-or-tcp, polling) plus an optional
// logging section, the same defaulting rules, and the same "10s/10m/10h"
// schedule string format.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
)

// MQTT holds the mqtt: section.
type MQTT struct {
	BrokerURL                     string `yaml:"broker-url"`
	BrokerPort                    int    `yaml:"broker-port"`
	ClientID                      string `yaml:"client-id"`
	User                          string `yaml:"user"`
	Password                      string `yaml:"password"`
	TopicPrefix                   string `yaml:"topicPrefix"`
	HomeAssistantAutoDiscoverTopic string `yaml:"homeAssistantAutoDiscoverTopic"`
	UseCamelCaseTopicNames        bool   `yaml:"useCamelCaseTopicNames"`
}

// General holds the general: section.
type General struct {
	NasaRepositoryFile string `yaml:"nasaRepositoryFile"`
	ProtocolFile       string `yaml:"protocolFile,omitempty"`
	AllowControl       bool   `yaml:"allowControl"`
}

// Serial holds the serial: section. Exactly one of Serial/TCP must be set.
type Serial struct {
	Device   string `yaml:"device"`
	Baudrate int    `yaml:"baudrate"`
}

// TCP holds the tcp: section. Exactly one of Serial/TCP must be set.
type TCP struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// FetchInterval is one entry of polling.fetch_interval: a named group, an
// enable flag, and a schedule string ("10s"/"10m"/"10h") resolved to
// Interval when Parse validates the config.
type FetchInterval struct {
	Name     string `yaml:"name"`
	Enable   bool   `yaml:"enable"`
	Schedule string `yaml:"schedule"`

	Interval time.Duration `yaml:"-"`
}

// Polling holds the optional polling: section.
type Polling struct {
	FetchInterval []FetchInterval     `yaml:"fetch_interval"`
	Groups        map[string][]string `yaml:"groups"`
}

// Logging holds the optional logging: section; every field defaults to
// false except DeviceAdded, which defaults to true (matching
// EHSConfig.py) - but only when the key is absent from the YAML, so an
// explicit `deviceAdded: false` is honored rather than overwritten.
// DeviceAdded is a *bool so applyDefaults can tell "absent" from "false".
type Logging struct {
	MessageNotFound            bool  `yaml:"messageNotFound"`
	InvalidPacket              bool  `yaml:"invalidPacket"`
	DeviceAdded                *bool `yaml:"deviceAdded"`
	PacketNotFromIndoorOutdoor bool  `yaml:"packetNotFromIndoorOutdoor"`
	ProccessedMessage          bool  `yaml:"proccessedMessage"`
	PollerMessage              bool  `yaml:"pollerMessage"`
	ControlMessage             bool  `yaml:"controlMessage"`
}

// DeviceAddedEnabled reports whether "new device added" events should be
// logged, honoring an explicit false and defaulting true when unset.
func (l Logging) DeviceAddedEnabled() bool {
	return l.DeviceAdded == nil || *l.DeviceAdded
}

// Config is the parsed and validated bridge configuration file.
type Config struct {
	MQTT    MQTT     `yaml:"mqtt"`
	General General  `yaml:"general"`
	Serial  *Serial  `yaml:"serial,omitempty"`
	TCP     *TCP     `yaml:"tcp,omitempty"`
	Polling *Polling `yaml:"polling,omitempty"`
	Logging Logging  `yaml:"logging,omitempty"`
}

// Load reads, parses, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "nasaEhsBridge"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "nasaEhsBridge"
	}
	if c.Logging.DeviceAdded == nil {
		enabled := true
		c.Logging.DeviceAdded = &enabled
	}
}

func (c *Config) validate() error {
	if c.General.NasaRepositoryFile == "" {
		return fmt.Errorf("config: general.nasaRepositoryFile is required")
	}
	if info, err := os.Stat(c.General.NasaRepositoryFile); err != nil || info.IsDir() {
		return fmt.Errorf("config: nasa repository file %q is missing", c.General.NasaRepositoryFile)
	}

	if c.Serial == nil && c.TCP == nil {
		return fmt.Errorf("config: define exactly one of serial or tcp")
	}
	if c.Serial != nil && c.TCP != nil {
		return fmt.Errorf("config: cannot define both serial and tcp, define only one")
	}
	if c.Serial != nil {
		if c.Serial.Device == "" {
			return fmt.Errorf("config: serial.device is required")
		}
		if c.Serial.Baudrate == 0 {
			return fmt.Errorf("config: serial.baudrate is required")
		}
	}
	if c.TCP != nil {
		if c.TCP.IP == "" {
			return fmt.Errorf("config: tcp.ip is required")
		}
		if c.TCP.Port == 0 {
			return fmt.Errorf("config: tcp.port is required")
		}
	}

	if c.Polling != nil {
		if len(c.Polling.FetchInterval) == 0 {
			return fmt.Errorf("config: polling.fetch_interval is required when polling is configured")
		}
		if len(c.Polling.Groups) == 0 {
			return fmt.Errorf("config: polling.groups is required when polling is configured")
		}
		for i := range c.Polling.FetchInterval {
			fi := &c.Polling.FetchInterval[i]
			if _, ok := c.Polling.Groups[fi.Name]; !ok {
				return fmt.Errorf("config: fetch_interval group name %q is not defined in polling.groups", fi.Name)
			}
			if fi.Schedule == "" {
				if fi.Enable {
					return fmt.Errorf("config: fetch_interval %q is enabled but has no schedule", fi.Name)
				}
				continue
			}
			d, err := ParseTimeString(fi.Schedule)
			if err != nil {
				return fmt.Errorf("config: fetch_interval %q: %w", fi.Name, err)
			}
			if fi.Enable && d <= 0 {
				return fmt.Errorf("config: fetch_interval %q has a zero schedule", fi.Name)
			}
			fi.Interval = d
		}
	}

	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("config: mqtt.broker-url is required")
	}
	if c.MQTT.BrokerPort == 0 {
		return fmt.Errorf("config: mqtt.broker-port is required")
	}
	if (c.MQTT.User == "") != (c.MQTT.Password == "") {
		return fmt.Errorf("config: mqtt user and password must both be set or both be empty")
	}

	return nil
}

// ValidateAgainstRepository checks that every point named in a polling
// group is actually defined in repo, the cross-check EHSConfig.py performs
// once NASA_REPO is loaded. Config and Repository are loaded independently
// in this implementation, so the CLI entrypoint calls this once both are
// ready, before building the supervisor.
func (c *Config) ValidateAgainstRepository(repo *repository.Repository) error {
	if c.Polling == nil {
		return nil
	}
	for group, points := range c.Polling.Groups {
		for _, name := range points {
			if _, ok := repo.ByName(name); !ok {
				return fmt.Errorf("config: group %q references point %q not present in the repository", group, name)
			}
		}
	}
	return nil
}

var timeStringPattern = regexp.MustCompile(`(?i)^(\d+)([smh])$`)

// ParseTimeString parses a duration string like "10s", "10m", or "10h" into
// a time.Duration, matching EHSConfig.py's parse_time_string.
func ParseTimeString(s string) (time.Duration, error) {
	m := timeStringPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid time format %q, use '10s', '10m', or '10h'", s)
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time format %q: %w", s, err)
	}
	switch strings.ToLower(m[2]) {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid time unit in %q", s)
	}
}
