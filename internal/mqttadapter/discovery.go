package mqttadapter

import (
	"strings"

	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
)

// deviceID identifies the single virtual device every discovered entity
// belongs to, matching original_source/MQTTClient.py's DEVICE_ID constant.
const deviceID = "nasa_ehs_bridge"

// deviceInfo and originInfo are marshaled into the HA discovery payload
// verbatim; HA discovery payloads are JSON regardless of the bridge's own
// YAML-based config (spec.md §4.7, grounded on MQTTClient.py's
// auto_discover_hass device/origin blocks).
type deviceInfo struct {
	Identifiers  string `json:"identifiers"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SWVersion    string `json:"sw_version"`
}

type originInfo struct {
	Name       string `json:"name"`
	SupportURL string `json:"support_url"`
}

// discoveryConfig is a single HA MQTT discovery entity config, published to
// {discoveryRoot}/{platform}/{DEVICE_ID}_{point}/config.
type discoveryConfig struct {
	Name          string      `json:"name"`
	ObjectID      string      `json:"object_id"`
	UniqueID      string      `json:"unique_id"`
	StateTopic    string      `json:"state_topic"`
	CommandTopic  string      `json:"command_topic,omitempty"`
	ValueTemplate string      `json:"value_template"`
	UnitOfMeasure string      `json:"unit_of_measurement,omitempty"`
	DeviceClass   string      `json:"device_class,omitempty"`
	StateClass    string      `json:"state_class,omitempty"`
	Options       []string    `json:"options,omitempty"`
	Min           *float64    `json:"min,omitempty"`
	Max           *float64    `json:"max,omitempty"`
	Step          *float64    `json:"step,omitempty"`
	PayloadOn     string      `json:"payload_on,omitempty"`
	PayloadOff    string      `json:"payload_off,omitempty"`
	Device        deviceInfo  `json:"device"`
	Origin        originInfo  `json:"origin"`
	QoS           int         `json:"qos"`
}

func newDeviceInfo() deviceInfo {
	return deviceInfo{
		Identifiers:  deviceID,
		Name:         "Samsung EHS",
		Manufacturer: "Samsung",
		Model:        "Mono HQ Quiet",
		SWVersion:    "1.0.0",
	}
}

func newOriginInfo() originInfo {
	return originInfo{Name: "nasa-ehs-bridge"}
}

// platformFor decides the HA entity platform for pt, preferring an explicit
// hass_opts.default_platform and otherwise inferring one: an ENUM whose
// values are all on/off-like becomes a binary_sensor (MQTTClient.py's
// auto_discover_hass does the same classification); a writable point
// becomes select (ENUM) or number (everything else) when control is
// allowed; anything else is a plain sensor.
func platformFor(pt *repository.Point, allowControl bool) string {
	if pt.HassOpts.DefaultPlatform != "" {
		return pt.HassOpts.DefaultPlatform
	}
	if pt.Type == repository.TypeENUM {
		if allOnOff(pt.Enum) {
			if pt.HassOpts.Writable && allowControl {
				return "switch"
			}
			return "binary_sensor"
		}
		if pt.HassOpts.Writable && allowControl {
			return "select"
		}
		return "sensor"
	}
	if pt.HassOpts.Writable && allowControl {
		return "number"
	}
	return "sensor"
}

func allOnOff(enum map[int64]string) bool {
	if len(enum) == 0 {
		return false
	}
	for _, label := range enum {
		l := strings.ToLower(label)
		if l != "on" && l != "off" {
			return false
		}
	}
	return true
}

// buildDiscoveryConfig constructs the per-entity discovery payload for pt.
// stateTopic and commandTopic are supplied by the caller since topic
// construction also depends on adapter-wide config (discovery root, topic
// normalization mode).
func buildDiscoveryConfig(pt *repository.Point, platform, stateTopic, commandTopic string, allowControl bool) discoveryConfig {
	cfg := discoveryConfig{
		Name:          pt.Name,
		ObjectID:      deviceID + "_" + strings.ToLower(pt.Name),
		UniqueID:      deviceID + "_" + strings.ToLower(pt.Name),
		StateTopic:    stateTopic,
		ValueTemplate: "{{ value }}",
		UnitOfMeasure: pt.HassOpts.Unit,
		DeviceClass:   pt.HassOpts.DeviceClass,
		StateClass:    pt.HassOpts.StateClass,
		Device:        newDeviceInfo(),
		Origin:        newOriginInfo(),
		QoS:           2,
	}

	if pt.HassOpts.Writable && allowControl && commandTopic != "" {
		cfg.CommandTopic = commandTopic
	}

	switch platform {
	case "select":
		cfg.Options = pt.HassOpts.Platform.Options
		if len(cfg.Options) == 0 {
			for _, label := range pt.Enum {
				cfg.Options = append(cfg.Options, label)
			}
		}
	case "number":
		cfg.Min = pt.HassOpts.Platform.Min
		cfg.Max = pt.HassOpts.Platform.Max
		cfg.Step = pt.HassOpts.Platform.Step
	case "switch":
		cfg.PayloadOn = firstNonEmpty(pt.HassOpts.Platform.PayloadOn, "ON")
		cfg.PayloadOff = firstNonEmpty(pt.HassOpts.Platform.PayloadOff, "OFF")
	}

	return cfg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeName applies the configured topic-naming convention: passthrough,
// or camelCase with a fixed set of prefixes stripped, grounded verbatim on
// MQTTClient.py's _normalize_name.
func normalizeName(name string, camelCase bool) string {
	if !camelCase {
		return name
	}
	for _, prefix := range []string{"ENUM_", "LVAR_", "NASA_", "VAR_"} {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	parts := strings.Split(name, "_")
	if len(parts) == 0 {
		return name
	}
	out := strings.ToLower(parts[0])
	for _, p := range parts[1:] {
		out += capitalize(strings.ToLower(p))
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
