// Package mqttadapter publishes decoded point values to MQTT and, when
// Home Assistant discovery is enabled, announces per-entity discovery
// configs the first time a point is seen. It also handles inbound write
// commands and the Home Assistant controller's birth/LWT convention.
//
// Grounded on original_source/MQTTClient.py, adapted from its singleton/
// global-state shape (spec.md §9 flags this as a source-language accident)
// into a constructor-injected Adapter, and built on
// github.com/eclipse/paho.mqtt.golang instead of paho-mqtt-python.
package mqttadapter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
)

// CommandHandler is invoked for an inbound `{prefix}/entity/{point}/set`
// message; normally wired to producer.Producer.Write with followUpRead=true.
type CommandHandler func(point, payload string)

// Config configures an Adapter.
type Config struct {
	Logger *zap.Logger

	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	TopicPrefix   string
	DiscoveryRoot string // homeAssistantAutoDiscoverTopic; empty disables discovery
	UseCamelCase  bool
	AllowControl  bool

	OnCommand CommandHandler
}

// Adapter is a processor.Sink backed by an MQTT broker connection.
type Adapter struct {
	logger *zap.Logger
	client mqtt.Client

	topicPrefix   string
	discoveryRoot string
	useCamelCase  bool
	allowControl  bool
	onCommand     CommandHandler

	known *knownDevices
}

// New builds an Adapter and its underlying paho client, but does not
// connect - call Connect to open the broker connection.
func New(conf Config) *Adapter {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	topicPrefix := strings.Trim(conf.TopicPrefix, "/")
	discoveryRoot := strings.Trim(conf.DiscoveryRoot, "/")

	a := &Adapter{
		logger:        logger,
		topicPrefix:   topicPrefix,
		discoveryRoot: discoveryRoot,
		useCamelCase:  conf.UseCamelCase,
		allowControl:  conf.AllowControl,
		onCommand:     conf.OnCommand,
		known:         newKnownDevices(),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(conf.BrokerURL).
		SetClientID(conf.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(a.onConnect).
		SetConnectionLostHandler(a.onConnectionLost)
	if conf.Username != "" && conf.Password != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}

	a.client = mqtt.NewClient(opts)
	return a
}

// Connect opens the broker connection and blocks until it succeeds or
// fails once (auto-reconnect then takes over for later drops).
func (a *Adapter) Connect() error {
	token := a.client.Connect()
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker, waiting up to 250ms to flush.
func (a *Adapter) Close() {
	a.client.Disconnect(250)
}

// CleanKnownDevices clears the local and retained known-devices state,
// implementing the --clean-known-devices CLI flag (spec.md §6).
func (a *Adapter) CleanKnownDevices() {
	a.known.clear()
	a.publishKnownDevices()
}

func (a *Adapter) onConnect(mqtt.Client) {
	a.logger.Info("connected to mqtt broker")
	if a.discoveryRoot == "" {
		return
	}
	a.subscribe(a.topic(a.topicPrefix, "known/devices"), a.handleKnownDevicesRetained)
	a.subscribe(a.discoveryRoot+"/status", a.handleControllerStatus)
	if a.allowControl {
		a.subscribe(a.topic(a.topicPrefix, "entity/+/set"), a.handleCommand)
	}
}

func (a *Adapter) onConnectionLost(_ mqtt.Client, err error) {
	a.logger.Warn("mqtt connection lost, reconnecting", zap.Error(err))
}

func (a *Adapter) subscribe(topic string, handler mqtt.MessageHandler) {
	token := a.client.Subscribe(topic, 1, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		a.logger.Error("mqtt subscribe failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (a *Adapter) handleKnownDevicesRetained(_ mqtt.Client, msg mqtt.Message) {
	a.known.loadRetained(string(msg.Payload()))
}

// handleControllerStatus implements the Home Assistant birth-message
// convention: "online" clears known-devices so every entity is
// re-announced as the bridge resumes seeing bus traffic.
func (a *Adapter) handleControllerStatus(_ mqtt.Client, msg mqtt.Message) {
	if string(msg.Payload()) != "online" {
		return
	}
	a.logger.Info("home assistant controller came online, resetting known devices")
	a.CleanKnownDevices()
}

func (a *Adapter) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	point := strings.TrimPrefix(msg.Topic(), a.topicPrefix+"/entity/")
	point = strings.TrimSuffix(point, "/set")
	if a.onCommand == nil {
		return
	}
	a.onCommand(point, string(msg.Payload()))
}

// Publish implements processor.Sink. It normalizes the point name, picks
// the state topic (discovery-aware or flat), publishes a discovery config
// on first sight of the point when discovery is enabled, then publishes
// the (possibly rounded) value with QoS 2, retain=false.
func (a *Adapter) Publish(pt *repository.Point, value any) error {
	normalized := normalizeName(pt.Name, a.useCamelCase)

	var stateTopic string
	if a.discoveryRoot != "" {
		platform := platformFor(pt, a.allowControl)
		stateTopic = fmt.Sprintf("%s/%s/%s_%s/state", a.discoveryRoot, platform, deviceID, strings.ToLower(normalized))
		if !a.known.contains(pt.Name) {
			a.publishDiscoveryConfig(pt, platform, stateTopic)
		}
	} else {
		stateTopic = a.topic(a.topicPrefix, normalized)
	}

	value = roundIfFloat(value)
	return a.publish(stateTopic, stringifyValue(value), 2, false)
}

// stringifyValue renders value the way paho-mqtt-python's client implicitly
// does when handed a number: client.Publish only accepts string/[]byte/
// bytes.Buffer payloads, so numeric values must be turned into text
// ourselves rather than relying on an automatic conversion paho.golang
// doesn't perform.
func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (a *Adapter) publishDiscoveryConfig(pt *repository.Point, platform, stateTopic string) {
	commandTopic := ""
	if pt.HassOpts.Writable && a.allowControl {
		commandTopic = a.topic(a.topicPrefix, "entity/"+pt.Name+"/set")
	}
	cfg := buildDiscoveryConfig(pt, platform, stateTopic, commandTopic, a.allowControl)

	payload, err := json.Marshal(cfg)
	if err != nil {
		a.logger.Error("failed to marshal discovery config", zap.String("point", pt.Name), zap.Error(err))
		return
	}
	configTopic := fmt.Sprintf("%s/%s/%s_%s/config", a.discoveryRoot, platform, deviceID, pt.Name)
	if err := a.publish(configTopic, payload, 2, true); err != nil {
		a.logger.Error("failed to publish discovery config", zap.String("point", pt.Name), zap.Error(err))
		return
	}

	a.known.add(pt.Name)
	a.publishKnownDevices()
}

func (a *Adapter) publishKnownDevices() {
	topic := a.topic(a.topicPrefix, "known/devices")
	if err := a.publish(topic, a.known.joined(), 1, true); err != nil {
		a.logger.Error("failed to publish known devices", zap.Error(err))
	}
}

func (a *Adapter) publish(topic string, payload any, qos byte, retain bool) error {
	token := a.client.Publish(topic, qos, retain, payload)
	token.Wait()
	return token.Error()
}

func (a *Adapter) topic(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// roundIfFloat rounds a float value with a fractional part to 2 decimals,
// matching publish_message's "round(value, 2) if ... '.' in f'{value}'".
// Integral floats and non-float values pass through unchanged.
func roundIfFloat(value any) any {
	f, ok := value.(float64)
	if !ok {
		return value
	}
	if f == math.Trunc(f) {
		return f
	}
	return math.Round(f*100) / 100
}
