// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSResponse is pushed to web socket clients for every lock event.
type WSResponse struct {
	Type string          `json:"type"` // state, correlation
	Data json.RawMessage `json:"data"`
}

// TemplateResponse is served at /api/template.
type TemplateResponse struct {
	Layout gesture.Layout `json:"layout"`
	Series [][]float32    `json:"series"`
}

type webServer struct {
	layout   gesture.Layout
	template func() (gesture.Series, error)
	command  func(Command) error

	mu          sync.RWMutex
	state       json.RawMessage
	correlation json.RawMessage
	clients     map[chan WSResponse]struct{}

	events *prometheus.CounterVec
}

func newWebServer(layout gesture.Layout, template func() (gesture.Series, error), command func(Command) error, reg prometheus.Registerer) (*webServer, error) {
	s := &webServer{
		layout:   layout,
		template: template,
		command:  command,
		clients:  map[chan WSResponse]struct{}{},
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gesture_web_events_total",
			Help: "Lock events received from MQTT by type.",
		}, []string{"type"}),
	}
	if err := reg.Register(s.events); err != nil {
		return nil, err
	}
	return s, nil
}

// publish records an event and forwards it to every web socket client.
// Slow clients miss events instead of blocking MQTT delivery.
func (s *webServer) publish(kind string, payload []byte) {
	if !json.Valid(payload) {
		log.Warnf("web: invalid %s payload", kind)
		return
	}
	data := json.RawMessage(append([]byte(nil), payload...))
	s.events.WithLabelValues(kind).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "state":
		s.state = data
	case "correlation":
		s.correlation = data
	}
	for ch := range s.clients {
		select {
		case ch <- WSResponse{Type: kind, Data: data}:
		default:
		}
	}
}

func (s *webServer) routes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/template", s.handleTemplate)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (s *webServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	resp := struct {
		State       json.RawMessage `json:"state"`
		Correlation json.RawMessage `json:"correlation,omitempty"`
	}{s.state, s.correlation}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

func (s *webServer) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if s.template == nil {
		http.Error(w, "template not available: store is private to the lock process", http.StatusServiceUnavailable)
		return
	}
	series, err := s.template()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(TemplateResponse{Layout: s.layout, Series: series}); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

// handleWS streams events to the client and accepts Command messages, so
// a browser can hold the record or attempt trigger.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := make(chan WSResponse, 16)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				log.Debugf("web: websocket read: %v", err)
				return
			}
			if err := s.command(cmd); err != nil {
				log.Warnf("web: command: %v", err)
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case resp := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(resp); err != nil {
				log.Debugf("web: websocket write: %v", err)
				return
			}
		}
	}
}

// RunWeb serves the lock state received over MQTT until ctx is cancelled.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Infof("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	var template func() (gesture.Series, error)
	if cfg.Store == "memory" {
		log.Warn("web: STORE=memory is not shared with the lock process, /api/template disabled")
	} else {
		var cl closers
		defer cl.Close()
		gs, err := buildStore(cfg, &cl)
		if err != nil {
			return err
		}
		template = gs.Load
	}

	command := func(c Command) error {
		if err := c.validate(); err != nil {
			return err
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		client.Publish(cfg.TopicCommand, 0, false, payload)
		return nil
	}

	reg := prometheus.NewRegistry()
	srv, err := newWebServer(cfg.Layout(), template, command, reg)
	if err != nil {
		return err
	}

	for kind, topic := range map[string]string{"state": cfg.TopicState, "correlation": cfg.TopicCorrelation} {
		if topic == "" {
			continue
		}
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			srv.publish(kind, msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Infof("web: subscribed to MQTT topic %s", topic)
	}

	httpSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.WebServerPort),
		Handler: srv.routes(reg),
	}
	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()

	log.Infof("web: server listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
