package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremon "github.com/kilianp07/energyledger/core/monitoring"
	"github.com/kilianp07/energyledger/core/model"
	"github.com/kilianp07/energyledger/infra/logger"
)

// ErrBadPayload is returned for telemetry messages that cannot be decoded.
var ErrBadPayload = errors.New("mqtt: bad telemetry payload")

// Appender stores decoded samples.
type Appender interface {
	Append(ctx context.Context, meter string, samples []model.Sample) error
}

// Stats counts handled messages.
type Stats struct {
	Stored  int64
	Dropped int64
}

// Subscriber receives meter telemetry and appends it to a store.
type Subscriber struct {
	cli     pahoClient
	topic   string
	qos     byte
	sink    Appender
	logger  logger.Logger
	timeout time.Duration

	stored  atomic.Int64
	dropped atomic.Int64
}

// NewSubscriber connects to the broker and subscribes to cfg.Topic on every
// (re)connect.
func NewSubscriber(cfg Config, sink Appender) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_ingest")
	s := &Subscriber{topic: cfg.Topic, qos: cfg.QoS, sink: sink, logger: log, timeout: 5 * time.Second}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected, subscribing to %s", s.topic)
		if token := c.Subscribe(s.topic, s.qos, s.handle); token.Wait() && token.Error() != nil {
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
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	s.cli = c
	return s, nil
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	meter, ok := MeterFromTopic(s.topic, msg.Topic())
	smp, err := DecodePayload(msg.Payload())
	if err == nil && !ok {
		meter, err = payloadMeter(msg.Payload())
	}
	if err != nil {
		s.dropped.Add(1)
		s.logger.Warnf("dropping message on %s: %v", msg.Topic(), err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sink.Append(ctx, meter, []model.Sample{smp}); err != nil {
		s.dropped.Add(1)
		s.logger.Errorf("append sample for %s: %v", meter, err)
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "meter": meter})
		return
	}
	s.stored.Add(1)
	s.logger.Debugw("stored sample", map[string]any{"meter": meter, "timestamp": smp.Timestamp})
}

// Stats returns the handled message counters.
func (s *Subscriber) Stats() Stats {
	return Stats{Stored: s.stored.Load(), Dropped: s.dropped.Load()}
}

// Disconnect gracefully closes the MQTT connection.
func (s *Subscriber) Disconnect() {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
}

// MeterFromTopic extracts the segment matched by the single "+" wildcard of
// pattern. It reports false when pattern has no wildcard or topic does not
// match it.
func MeterFromTopic(pattern, topic string) (string, bool) {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(topic, "/")
	if len(ps) != len(ts) {
		return "", false
	}
	meter := ""
	for i, p := range ps {
		switch p {
		case "+":
			if meter != "" || ts[i] == "" {
				return "", false
			}
			meter = ts[i]
		case ts[i]:
		default:
			return "", false
		}
	}
	return meter, meter != ""
}

// DecodePayload reads a JSON object with a "timestamp" (RFC3339 or unix
// milliseconds) and numeric-ish fields. Unreadable field values become
// missing; a bad timestamp rejects the message.
func DecodePayload(data []byte) (model.Sample, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return model.Sample{}, fmt.Errorf("%w: not a JSON object", ErrBadPayload)
	}
	ts, err := model.ParseTimestamp(raw["timestamp"])
	if err != nil {
		return model.Sample{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	delete(raw, "timestamp")
	delete(raw, "meter")
	return model.NewSample(ts, raw), nil
}

func payloadMeter(data []byte) (string, error) {
	var m struct {
		Meter string `json:"meter"`
	}
	if err := json.Unmarshal(data, &m); err != nil || m.Meter == "" {
		return "", fmt.Errorf("%w: no meter in topic or payload", ErrBadPayload)
	}
	return m.Meter, nil
}
