package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/obstacle-rover/internal/control"
)

// ClientIDPrefix is combined with a short session suffix so two rovers (or a
// restarted one) never collide on the broker.
const ClientIDPrefix = "obstacle-rover-"

// BufferCapacity bounds the messages held while disconnected. At one cycle
// every 50 ms this is a little under a minute of telemetry.
const BufferCapacity = 1000

// RealPublisher publishes to an actual MQTT broker. Telemetry is never
// allowed to block the control loop: while the client is disconnected,
// messages are buffered and replayed on reconnect.
type RealPublisher struct {
	client  paho.Client
	session string

	onChange func(connected bool)

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. The connection is
// established in the background and retried until Close. onChange, if not
// nil, is called from paho's goroutines when the connection goes up or down.
func NewRealPublisher(broker, session string, onChange func(connected bool)) *RealPublisher {
	if session == "" {
		session = uuid.NewString()
	}
	p := newPublisherWithClient(nil, session, onChange)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID(session)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, willPayload(session), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// newPublisherWithClient allows tests to inject a client.
func newPublisherWithClient(client paho.Client, session string, onChange func(bool)) *RealPublisher {
	return &RealPublisher{
		client:   client,
		session:  session,
		onChange: onChange,
		buf:      newRingBuffer(BufferCapacity),
	}
}

// willPayload is published by the broker if the rover drops off without a
// clean disconnect.
func willPayload(session string) []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{
		Event:   "OFFLINE",
		Session: session,
	}})
	return data
}

// ClientID derives the broker client ID from the session ID.
func ClientID(session string) string {
	if len(session) > 8 {
		session = session[:8]
	}
	return ClientIDPrefix + session
}

// Session returns the session ID carried in telemetry.
func (p *RealPublisher) Session() string {
	return p.session
}

// IsConnected implements ConnectionStatus.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// PublishCycle sends a cycle report. QoS 0, fire and forget.
func (p *RealPublisher) PublishCycle(r control.Report) error {
	payload, err := FormatPayload(p.session, r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.send(bufferedMsg{topic: Topic, payload: payload, qos: 0})
	return nil
}

// PublishSystem sends a system lifecycle event. QoS 1; waits for the broker
// when connected, buffers otherwise.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	msg := bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	token := p.send(msg)
	if token == nil {
		return nil
	}
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// send publishes msg when connected and buffers it otherwise. It returns the
// publish token, or nil if the message was buffered.
func (p *RealPublisher) send(msg bufferedMsg) paho.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.client.IsConnected() || p.buf.len() > 0 {
		// Queue behind anything still waiting to be replayed.
		p.buf.push(msg)
		return nil
	}
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
}

func (p *RealPublisher) onConnect() {
	log.Printf("mqtt: connected")
	p.drain()
	if p.onChange != nil {
		p.onChange(true)
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	log.Printf("mqtt: connection lost: %v", err)
	if p.onChange != nil {
		p.onChange(false)
	}
}

// drain replays buffered messages in order.
func (p *RealPublisher) drain() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.mu.Unlock()
	if len(msgs) > 0 {
		log.Printf("mqtt: replayed %d buffered messages", len(msgs))
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
