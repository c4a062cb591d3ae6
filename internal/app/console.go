package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/indicator"
)

// RunConsole prints lock events published on MQTT until ctx is cancelled.
func RunConsole(ctx context.Context, cfg *config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := map[string]func(io.Writer, []byte) error{
		cfg.TopicState:       printState,
		cfg.TopicCorrelation: printCorrelation,
		cfg.TopicSeries:      printSeries,
	}
	for topic, show := range subs {
		if topic == "" {
			continue
		}
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := show(os.Stdout, msg.Payload()); err != nil {
				log.Warnf("console: %s: %v", msg.Topic(), err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Infof("console: subscribed to %s", topic)
	}

	<-ctx.Done()
	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printState(w io.Writer, payload []byte) error {
	var ev indicator.StateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[STATE] %s  %-17s %-6s %s\n",
		ev.Time.Format("15:04:05.000"), ev.Signal, ev.Colour, ev.Text)
	return err
}

func printCorrelation(w io.Writer, payload []byte) error {
	var ev indicator.CorrelationEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[CORR ] %s  %s  %s\n",
		ev.Time.Format("15:04:05.000"), strings.ToUpper(ev.Verdict), gesture.FormatCorrelations(ev.Correlations))
	return err
}

func printSeries(w io.Writer, payload []byte) error {
	var ev indicator.SeriesEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "[DATA ] %s  %s\n", ev.Time.Format("15:04:05.000"), ev.Label); err != nil {
		return err
	}
	return gesture.WriteTable(w, ev.Series)
}
