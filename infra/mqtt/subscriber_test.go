package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/energyledger/core/monitoring"
	"github.com/kilianp07/energyledger/core/model"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", AuthMethod: "certificate", Username: "u"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

func TestMeterFromTopic(t *testing.T) {
	cases := []struct {
		pattern, topic, want string
		ok                   bool
	}{
		{DefaultTopic, "meters/house-1/telemetry", "house-1", true},
		{DefaultTopic, "meters/house-1/status", "", false},
		{DefaultTopic, "meters//telemetry", "", false},
		{DefaultTopic, "meters/a/b/telemetry", "", false},
		{"site/meter-7", "site/meter-7", "", false},
	}
	for _, c := range cases {
		got, ok := MeterFromTopic(c.pattern, c.topic)
		assert.Equal(t, c.ok, ok, c.topic)
		assert.Equal(t, c.want, got, c.topic)
	}
}

func TestDecodePayload(t *testing.T) {
	s, err := DecodePayload([]byte(`{"timestamp":"2024-01-01T00:00:00Z","meter":"x","consumption_W":"1500","production_kW":0.5,"grid_input_kW":"n/a"}`))
	require.NoError(t, err)
	assert.True(t, s.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, model.Some(1500), s.Get("consumption_W"))
	assert.Equal(t, model.Some(0.5), s.Production())
	assert.False(t, s.GridInput().Valid)
	_, ok := s.Fields["meter"]
	assert.False(t, ok)

	s, err = DecodePayload([]byte(`{"timestamp":1704067200000,"consumption_kW":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200), s.Timestamp.Unix())

	for _, bad := range []string{`[1,2]`, `not json`, `{"consumption_kW":1}`, `{"timestamp":"soon"}`, `null`} {
		_, err := DecodePayload([]byte(bad))
		assert.ErrorIs(t, err, ErrBadPayload, bad)
	}
}

type memAppender struct {
	mu      sync.Mutex
	samples map[string][]model.Sample
	err     error
}

func (m *memAppender) Append(_ context.Context, meter string, s []model.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.samples == nil {
		m.samples = map[string][]model.Sample{}
	}
	m.samples[meter] = append(m.samples[meter], s...)
	return nil
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestSubscriberStoresTelemetry(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	store := &memAppender{}
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", ClientID: "id", Topic: DefaultTopic, QoS: 1}, store)
	require.NoError(t, err)
	defer sub.Disconnect()

	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, DefaultTopic, mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)

	sub.handle(nil, mockMessage{topic: "meters/m1/telemetry", p: []byte(`{"timestamp":"2024-01-01T00:00:00Z","consumption_kW":2}`)})
	sub.handle(nil, mockMessage{topic: "meters/m1/telemetry", p: []byte(`garbage`)})
	require.Len(t, store.samples["m1"], 1)
	assert.Equal(t, model.Some(2), store.samples["m1"][0].Consumption())
	assert.Equal(t, Stats{Stored: 1, Dropped: 1}, sub.Stats())
}

func TestSubscriberMeterFromPayload(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	store := &memAppender{}
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: "site/telemetry"}, store)
	require.NoError(t, err)

	sub.handle(nil, mockMessage{topic: "site/telemetry", p: []byte(`{"timestamp":"2024-01-01T00:00:00Z","meter":"m9","production_kW":1}`)})
	sub.handle(nil, mockMessage{topic: "site/telemetry", p: []byte(`{"timestamp":"2024-01-01T00:00:00Z","production_kW":1}`)})
	assert.Len(t, store.samples["m9"], 1)
	assert.Equal(t, Stats{Stored: 1, Dropped: 1}, sub.Stats())
}

// mockMonitor records monitoring calls.
type mockMonitor struct {
	mock.Mock
}

func (m *mockMonitor) CaptureException(err error, tags map[string]string) { m.Called(err, tags) }
func (m *mockMonitor) CapturePanic(v any)                                  { m.Called(v) }
func (m *mockMonitor) Flush(d time.Duration)                               { m.Called(d) }

func TestAppendErrorCaptured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	mon := &mockMonitor{}
	mon.On("CaptureException",
		mock.MatchedBy(func(err error) bool { return err != nil && err.Error() == "disk full" }),
		map[string]string{"module": "mqtt", "meter": "m1"},
	).Once()
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: DefaultTopic}, &memAppender{err: errors.New("disk full")})
	require.NoError(t, err)
	sub.handle(nil, mockMessage{topic: "meters/m1/telemetry", p: []byte(`{"timestamp":"2024-01-01T00:00:00Z"}`)})
	mon.AssertExpectations(t)
	assert.Equal(t, int64(1), sub.Stats().Dropped)
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	withMock(t, mc)
	_, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: DefaultTopic}, &memAppender{})
	assert.Error(t, err)

	_, err = NewSubscriber(Config{Topic: DefaultTopic}, &memAppender{})
	assert.Error(t, err)
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	connectErr error
	subscribed []struct {
		topic string
		qos   byte
	}
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(string, byte, bool, interface{}) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
