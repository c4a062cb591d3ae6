package indicator

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/session"
)

// StateEvent is published on every signal.
type StateEvent struct {
	Time   time.Time `json:"time"`
	Signal string    `json:"signal"`
	Colour string    `json:"colour"`
	Text   string    `json:"text"`
}

// CorrelationEvent is published after every attempt.
type CorrelationEvent struct {
	Time         time.Time                 `json:"time"`
	Verdict      string                    `json:"verdict"`
	Correlations gesture.CorrelationVector `json:"correlations"`
}

// SeriesEvent carries a captured or loaded series.
type SeriesEvent struct {
	Time   time.Time   `json:"time"`
	Label  string      `json:"label"`
	Series [][]float32 `json:"series"`
}

// Topics used by the publisher.
type Topics struct {
	State       string
	Correlation string
	Series      string
}

// Publisher is the subset of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher sends signals and diagnostics to a broker. Publishing is
// fire and forget; failures are logged.
type MQTTPublisher struct {
	client Publisher
	topics Topics
	now    func() time.Time
}

// NewMQTTPublisher connects to broker.
func NewMQTTPublisher(broker, clientID string, topics Topics) (*MQTTPublisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	log.Infof("mqtt: connected to broker at %s", broker)
	return newMQTTPublisher(client, topics), client, nil
}

func newMQTTPublisher(client Publisher, topics Topics) *MQTTPublisher {
	return &MQTTPublisher{client: client, topics: topics, now: time.Now}
}

func (p *MQTTPublisher) SetState(sig session.Signal) {
	fb := FeedbackFor(sig)
	p.publish(p.topics.State, true, StateEvent{
		Time:   p.now(),
		Signal: sig.String(),
		Colour: fb.Colour.String(),
		Text:   fb.Text,
	})
}

func (p *MQTTPublisher) Series(label string, s gesture.Series) {
	p.publish(p.topics.Series, false, SeriesEvent{Time: p.now(), Label: label, Series: s})
}

func (p *MQTTPublisher) Correlation(c gesture.CorrelationVector, v gesture.Verdict) {
	p.publish(p.topics.Correlation, true, CorrelationEvent{Time: p.now(), Verdict: v.String(), Correlations: c})
}

func (p *MQTTPublisher) publish(topic string, retained bool, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warnf("mqtt: marshal %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Warnf("mqtt: publish %s: %v", topic, err)
		}
	}()
}
