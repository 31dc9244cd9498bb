package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/rebalance/core/monitoring"
	coremqtt "github.com/kilianp07/rebalance/core/mqtt"
	"github.com/kilianp07/rebalance/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthMethod string `json:"auth_method"`

	// CommandTopic is a template where %s is replaced by the unit ID.
	CommandTopic string `json:"command_topic"`
	AckTopic     string `json:"ack_topic"`
	// RequestTopic receives allocation requests when running as a service.
	RequestTopic string `json:"request_topic"`
	// ResultTopic receives the relocation plans computed for requests.
	ResultTopic string `json:"result_topic"`

	UseTLS     bool        `json:"use_tls"`
	ClientCert string      `json:"client_cert"`
	ClientKey  string      `json:"client_key"`
	CABundle   string      `json:"ca_bundle"`
	TLSConfig  *tls.Config `json:"-"`

	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
}

// SetDefaults fills topics and retry settings left empty.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "rebalance"
	}
	if c.CommandTopic == "" {
		c.CommandTopic = "unit/%s/relocate"
	}
	if c.AckTopic == "" {
		c.AckTopic = "unit/+/ack"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = "rebalance/request"
	}
	if c.ResultTopic == "" {
		c.ResultTopic = "rebalance/result"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields. An empty broker disables MQTT.
func (c Config) Validate() error {
	if c.Broker == "" {
		return nil
	}
	if strings.Count(c.CommandTopic, "%s") != 1 {
		return fmt.Errorf("command_topic must contain exactly one %%s: %q", c.CommandTopic)
	}
	switch c.AuthMethod {
	case "", "username_password", "mtls", "both":
	default:
		return fmt.Errorf("unknown auth_method %q", c.AuthMethod)
	}
	return nil
}

// pahoClient is the subset of paho.Client used by PahoClient.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements coremqtt.Publisher using Eclipse Paho.
type PahoClient struct {
	cli pahoClient
	cfg Config

	mu       sync.Mutex
	ackChans map[string]chan struct{}
	logger   logger.Logger
	backoff  time.Duration
}

var _ coremqtt.Publisher = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the ACK topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		cfg:      cfg,
		ackChans: make(map[string]chan struct{}),
		logger:   log,
		backoff:  time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(pc.cfg.AckTopic, pc.qos("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS || cfg.AuthMethod == "mtls" || cfg.AuthMethod == "both" {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificate found in %s", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qos(kind string) byte {
	if q, ok := p.cfg.QoS[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.ackChans[m.CommandID]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Debugf("received ack %s", m.CommandID)
	}
}

// publish retries with exponential backoff until the broker accepts the
// message, the retries are exhausted or ctx is done.
func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	var err error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			return nil
		}
		p.logger.Errorf("publish to %s attempt %d failed: %v", topic, attempt+1, err)
		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return err
}

// SendRelocation publishes the order on the unit command topic and returns
// the command identifier used for acknowledgment tracking.
func (p *PahoClient) SendRelocation(ctx context.Context, order coremqtt.RelocationOrder) (string, error) {
	cmdID := uuid.NewString()
	msg := struct {
		CommandID string `json:"command_id"`
		coremqtt.RelocationOrder
		Timestamp int64 `json:"timestamp"`
	}{
		CommandID:       cmdID,
		RelocationOrder: order,
		Timestamp:       time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	// register before publishing so that a fast ack is not lost
	p.mu.Lock()
	p.ackChans[cmdID] = make(chan struct{}, 1)
	p.mu.Unlock()

	topic := fmt.Sprintf(p.cfg.CommandTopic, order.UnitID)
	if err := p.publish(ctx, topic, p.qos("command"), payload); err != nil {
		p.mu.Lock()
		delete(p.ackChans, cmdID)
		p.mu.Unlock()
		coremon.CaptureException(err, map[string]string{"unit_id": order.UnitID, "run_id": order.RunID, "module": "mqtt"})
		return "", fmt.Errorf("relocate %s: %w", order.UnitID, err)
	}
	p.logger.Debugf("sent order %s to %s", cmdID, topic)
	return cmdID, nil
}

// WaitForAck blocks until an ACK for the given command ID is received or timeout.
func (p *PahoClient) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[commandID]
	p.mu.Unlock()
	if ch == nil {
		return false, coremqtt.ErrUnknownCommand
	}
	defer func() {
		p.mu.Lock()
		delete(p.ackChans, commandID)
		p.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, coremqtt.ErrAckTimeout
	}
}

// Forget drops the acknowledgment tracking of a command.
func (p *PahoClient) Forget(commandID string) {
	p.mu.Lock()
	delete(p.ackChans, commandID)
	p.mu.Unlock()
}

// HandleRequests subscribes to the request topic and calls h with every
// payload received. h runs on the paho callback goroutine.
func (p *PahoClient) HandleRequests(h func(payload []byte)) error {
	token := p.cli.Subscribe(p.cfg.RequestTopic, p.qos("request"), func(_ paho.Client, msg paho.Message) {
		h(msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// PublishResult publishes a computed plan on the result topic.
func (p *PahoClient) PublishResult(ctx context.Context, payload []byte) error {
	return p.publish(ctx, p.cfg.ResultTopic, p.qos("result"), payload)
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
