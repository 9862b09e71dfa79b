// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/store"
)

// commandQueueCap bounds the inbound command channel (spec §9
// "Message-passing for MQTT command intake": dropping on overflow is
// acceptable since commands are idempotent state sets).
const commandQueueCap = 256

// connectTimeout bounds how long Tick waits for a (re)connect attempt.
const connectTimeout = 5 * time.Second

// DeviceCounter reports the device worker fleet's size for the
// devices_connected/devices_total discovery sensors.
type DeviceCounter interface {
	Running() int
}

type command struct {
	name    string
	payload string
}

// Bridge owns the MQTT broker connection: command intake, Home Assistant
// discovery, and a debounced state snapshot (spec §2.9, §4.8c, §6).
// Satisfies internal/runtime's MQTTTicker interface.
type Bridge struct {
	store        *store.Store
	bus          bus.Bus
	devices      DeviceCounter
	buildVersion string
	instanceID   string

	mu                  sync.Mutex
	cfg                 Config
	configSignature     string
	discoverySignature  string
	client              paho.Client
	connected           bool
	lastError           string
	snapshotLimiter     *rate.Limiter
	snapshotIntervalSec int

	commandCh chan command
}

// New constructs a Bridge. It starts disconnected; the first Tick call
// applies whatever mqtt_* settings are currently persisted.
func New(st *store.Store, b bus.Bus, devices DeviceCounter, buildVersion string) *Bridge {
	return &Bridge{
		store:        st,
		bus:          b,
		devices:      devices,
		buildVersion: buildVersion,
		instanceID:   uuid.NewString()[:8],
		commandCh:    make(chan command, commandQueueCap),
	}
}

// Tick applies the currently persisted mqtt_* settings, drains any
// queued inbound commands, and publishes discovery/snapshot documents
// (spec §4.8c "ticks MQTT: apply config, drain command intake, publish
// debounced snapshot").
func (b *Bridge) Tick(ctx context.Context) {
	logger := log.WithComponent("mqtt")

	settings, err := b.store.AllSettings(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("mqtt: read settings failed")
		return
	}
	cfg := buildConfig(settings)
	b.applySettings(ctx, cfg)
	b.drainCommands(ctx)

	b.mu.Lock()
	enabled := b.cfg.Enabled
	b.mu.Unlock()
	if !enabled {
		return
	}

	b.publishDiscovery(ctx, false)
	if b.snapshotLimiter != nil && b.snapshotLimiter.Allow() {
		b.publishSnapshot(ctx)
	}
}

// applySettings reconnects only when the configuration actually changed
// (spec §6, grounded on mqtt_bridge.py's apply_settings/_config_signature
// comparison — avoids needless reconnect churn on every 5s tick).
func (b *Bridge) applySettings(ctx context.Context, cfg Config) {
	logger := log.WithComponent("mqtt")
	sig := signature(cfg)

	b.mu.Lock()
	prevSig := b.configSignature
	prevInterval := b.snapshotIntervalSec
	b.cfg = cfg
	b.mu.Unlock()

	if cfg.PublishIntervalSeconds != prevInterval {
		b.mu.Lock()
		b.snapshotIntervalSec = cfg.PublishIntervalSeconds
		b.snapshotLimiter = rate.NewLimiter(rate.Every(time.Duration(cfg.PublishIntervalSeconds)*time.Second), 1)
		b.mu.Unlock()
	}

	if !cfg.Enabled {
		b.disconnect()
		b.mu.Lock()
		b.configSignature = sig
		b.discoverySignature = ""
		b.lastError = ""
		b.mu.Unlock()
		return
	}

	if cfg.Host == "" {
		b.disconnect()
		b.mu.Lock()
		b.configSignature = sig
		b.discoverySignature = ""
		b.lastError = "MQTT is enabled but broker host is empty."
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	clientConnected := b.client != nil && b.client.IsConnected()
	b.mu.Unlock()
	if !needsReconnect(sig, prevSig, clientConnected) {
		return
	}

	b.disconnect()
	b.mu.Lock()
	b.configSignature = sig
	b.discoverySignature = ""
	b.mu.Unlock()

	if err := b.connect(ctx, cfg); err != nil {
		logger.Warn().Err(err).Str("host", cfg.Host).Msg("mqtt connect failed")
		b.mu.Lock()
		b.lastError = fmt.Sprintf("MQTT connect failed: %v", err)
		b.mu.Unlock()
		_ = b.bus.Publish(ctx, bus.Topic, bus.Message{
			Type: bus.EventMQTTStateChange,
			At:   time.Now().UTC(),
			Fields: map[string]any{
				"connected": false,
				"error":     b.lastError,
			},
		})
	}
}

// needsReconnect is applySettings's pure signature-comparison gate,
// extracted so the reconnect-on-change logic is directly testable
// without a real broker connection (spec §6, grounded on
// mqtt_bridge.py's apply_settings/_config_signature comparison):
// reconnect only when the config actually changed or the client isn't
// currently connected.
func needsReconnect(sig, prevSig string, clientConnected bool) bool {
	return sig != prevSig || !clientConnected
}

func (b *Bridge) connect(ctx context.Context, cfg Config) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, b.instanceID))
	opts.SetCleanSession(true)
	opts.SetKeepAlive(45 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetOnConnectHandler(b.onConnect(cfg))
	opts.SetConnectionLostHandler(b.onConnectionLost)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to %s:%d", cfg.Host, cfg.Port)
	}
	if err := token.Error(); err != nil {
		return err
	}

	b.mu.Lock()
	b.client = client
	b.connected = true
	b.lastError = ""
	b.mu.Unlock()
	return nil
}

func (b *Bridge) onConnect(cfg Config) paho.OnConnectHandler {
	return func(client paho.Client) {
		logger := log.WithComponent("mqtt")
		b.mu.Lock()
		b.connected = true
		b.lastError = ""
		b.mu.Unlock()
		for name, topic := range commandTopics(cfg) {
			if token := client.Subscribe(topic, 1, b.onMessage(name)); token.Wait() && token.Error() != nil {
				logger.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt subscribe failed")
			}
		}
	}
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	b.mu.Lock()
	b.connected = false
	if err != nil {
		b.lastError = err.Error()
	}
	b.mu.Unlock()
}

// onMessage enqueues the command for the next Tick's drainCommands call.
// Retained messages are ignored so a reconnect never replays a stale
// ON/OFF action (spec §6).
func (b *Bridge) onMessage(name string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		if msg.Retained() {
			return
		}
		payload := strings.TrimSpace(string(msg.Payload()))
		if payload == "" {
			return
		}
		select {
		case b.commandCh <- command{name: name, payload: payload}:
		default:
			log.WithComponent("mqtt").Warn().Str("command", name).Msg("command queue full, dropping")
		}
	}
}

func (b *Bridge) disconnect() {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.connected = false
	b.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

// drainCommands applies every command queued since the last Tick (spec
// §4.8c).
func (b *Bridge) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-b.commandCh:
			b.applyCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (b *Bridge) applyCommand(ctx context.Context, cmd command) {
	switch cmd.name {
	case "active":
		b.applySwitch(ctx, "active", cmd.payload)
	case "sponsorblock_active":
		b.applySwitch(ctx, "sponsorblock_active", cmd.payload)
	case "remote_release_minutes":
		b.applyReleaseMinutes(ctx, cmd.payload)
	}
}

func (b *Bridge) applySwitch(ctx context.Context, key, payload string) {
	logger := log.WithComponent("mqtt")
	on := boolFromSetting(payload, false) || strings.EqualFold(payload, "ON")
	value := "false"
	if on {
		value = "true"
	}
	if err := b.store.SetSetting(ctx, key, value); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("mqtt: apply switch command failed")
		return
	}
	_ = b.bus.Publish(ctx, bus.Topic, bus.Message{
		Type: bus.EventMQTTStateChange,
		At:   time.Now().UTC(),
		Fields: map[string]any{
			"key":   key,
			"value": on,
		},
	})
}

// applyReleaseMinutes opens (or clears) the shared remote-release
// suppression window by writing sponsorblock_release_until (spec §9
// Open Question: one setting gates both sponsor skip and block
// intervention).
func (b *Bridge) applyReleaseMinutes(ctx context.Context, payload string) {
	logger := log.WithComponent("mqtt")
	minutes, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return
	}
	if minutes < 0 {
		minutes = 0
	}
	if minutes > 240 {
		minutes = 240
	}

	until := ""
	if minutes > 0 {
		until = time.Now().UTC().Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)
	}
	if err := b.store.SetSetting(ctx, "sponsorblock_release_until", until); err != nil {
		logger.Error().Err(err).Msg("mqtt: apply remote release minutes failed")
		return
	}
	_ = b.bus.Publish(ctx, bus.Topic, bus.Message{
		Type: bus.EventRemoteReleaseChange,
		At:   time.Now().UTC(),
		Fields: map[string]any{
			"minutes": minutes,
		},
	})
}

// Close disconnects from the broker, if connected. Intended as a
// Lifecycle shutdown hook.
func (b *Bridge) Close(_ context.Context) error {
	b.disconnect()
	return nil
}

func (b *Bridge) publish(topic, payload string, retain bool) bool {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return false
	}
	token := client.Publish(topic, 1, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		b.mu.Lock()
		b.lastError = fmt.Sprintf("MQTT publish failed for topic %s: %v", topic, err)
		b.mu.Unlock()
		return false
	}
	return true
}
