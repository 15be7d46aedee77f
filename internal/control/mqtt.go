package control

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/logger"
)

// MQTTBridgeConfig configures the MQTT control bridge.
type MQTTBridgeConfig struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	TopicPrefix   string // subscribed as TopicPrefix + "/#"
	QoS           byte
	CleanSession  bool
	AutoReconnect bool
	KeepAlive     time.Duration
	ConnectTimeout time.Duration
}

// MQTTBridge mirrors the same address table the UDP Dispatcher serves, but
// over MQTT: every message under TopicPrefix carries a datagram-framed
// message body, decoded with the same Decode used for UDP. The handler is
// chosen by the address inside that body; the topic is not consulted.
type MQTTBridge struct {
	cfg    MQTTBridgeConfig
	client mqtt.Client
	disp   *Dispatcher
	log    *zap.Logger

	mu        sync.Mutex
	connected bool
}

// NewMQTTBridge constructs a bridge that dispatches decoded messages through
// disp's registered handlers, same as the UDP listener would.
func NewMQTTBridge(cfg MQTTBridgeConfig, disp *Dispatcher) *MQTTBridge {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("ledengine_%d", time.Now().Unix())
	}
	if cfg.QoS > 2 {
		cfg.QoS = 2
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return &MQTTBridge{
		cfg:  cfg,
		disp: disp,
		log:  logger.Get().Named("mqtt"),
	}
}

// Connect dials the broker and subscribes to cfg.TopicPrefix + "/#".
func (b *MQTTBridge) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetCleanSession(b.cfg.CleanSession)
	opts.SetAutoReconnect(b.cfg.AutoReconnect)
	opts.SetKeepAlive(b.cfg.KeepAlive)
	opts.SetConnectTimeout(b.cfg.ConnectTimeout)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.mu.Lock()
		b.connected = true
		b.mu.Unlock()
		topic := b.cfg.TopicPrefix + "/#"
		token := c.Subscribe(topic, b.cfg.QoS, b.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			b.log.Warn("mqtt subscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
		b.log.Warn("mqtt connection lost", zap.Error(err))
	})

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", b.cfg.Broker, err)
	}
	return nil
}

// onMessage hands the raw payload to the same dispatch entrypoint the UDP
// listener feeds from its socket reads, so address handling semantics
// (literal-before-wildcard, soft handler timeout) stay identical across both
// transports. The payload is expected to already be datagram-framed, same as
// a UDP packet would be.
func (b *MQTTBridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	b.disp.dispatch(msg.Payload())
}

// IsConnected reports the last-known MQTT connection state.
func (b *MQTTBridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Close disconnects from the broker.
func (b *MQTTBridge) Close() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}
