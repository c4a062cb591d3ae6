package indicator

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/session"
)

func TestFeedbackFor(t *testing.T) {
	tests := []struct {
		sig    session.Signal
		colour Colour
		toneHz int
		held   bool
	}{
		{session.RecordingActive, Orange, 0, false},
		{session.AttemptingActive, White, 0, false},
		{session.RecordingDone, Off, 0, false},
		{session.Matched, Green, 1000, true},
		{session.NotMatched, Red, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.sig.String(), func(t *testing.T) {
			fb := FeedbackFor(tt.sig)
			assert.Equal(t, tt.colour, fb.Colour)
			assert.Equal(t, tt.toneHz, fb.ToneHz)
			assert.Equal(t, tt.held, fb.Held)
			assert.NotEmpty(t, fb.Text)
		})
	}
}

type signalRecorder struct {
	mu      sync.Mutex
	signals []session.Signal
}

func (r *signalRecorder) SetState(s session.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &signalRecorder{}, &signalRecorder{}
	m := Multi{a, LogSink{}, b}
	m.SetState(session.Matched)
	m.SetState(session.NotMatched)

	want := []session.Signal{session.Matched, session.NotMatched}
	assert.Equal(t, want, a.signals)
	assert.Equal(t, want, b.signals)
}

type ledRig struct {
	pins   map[Colour]*gpiotest.Pin
	buzzer *gpiotest.Pin
	leds   *GPIOLeds
}

func newLedRig(t *testing.T, hold time.Duration) *ledRig {
	t.Helper()
	r := &ledRig{
		pins: map[Colour]*gpiotest.Pin{
			Orange: {N: "ORANGE", Num: 17},
			White:  {N: "WHITE", Num: 27},
			Green:  {N: "GREEN", Num: 22},
			Red:    {N: "RED", Num: 23},
		},
		buzzer: &gpiotest.Pin{N: "BUZZER", Num: 18},
	}
	outs := map[Colour]gpio.PinOut{}
	for c, p := range r.pins {
		outs[c] = p
	}
	var err error
	r.leds, err = newGPIOLeds(outs, r.buzzer, hold)
	require.NoError(t, err)
	t.Cleanup(func() { r.leds.Close() })
	return r
}

func (r *ledRig) lit() []Colour {
	var on []Colour
	for _, c := range []Colour{Orange, White, Green, Red} {
		if r.pins[c].Read() == gpio.High {
			on = append(on, c)
		}
	}
	return on
}

func (r *ledRig) tone() physic.Frequency {
	r.buzzer.Lock()
	defer r.buzzer.Unlock()
	return r.buzzer.F
}

func TestGPIOLedsShowOneColour(t *testing.T) {
	r := newLedRig(t, time.Hour)
	assert.Empty(t, r.lit())

	r.leds.SetState(session.RecordingActive)
	assert.Equal(t, []Colour{Orange}, r.lit())

	r.leds.SetState(session.RecordingDone)
	assert.Empty(t, r.lit())

	r.leds.SetState(session.AttemptingActive)
	assert.Equal(t, []Colour{White}, r.lit())

	r.leds.SetState(session.NotMatched)
	assert.Equal(t, []Colour{Red}, r.lit())
	assert.Equal(t, 200*physic.Hertz, r.tone())
}

func TestGPIOLedsClearAfterHold(t *testing.T) {
	r := newLedRig(t, 50*time.Millisecond)

	r.leds.SetState(session.Matched)
	assert.Equal(t, []Colour{Green}, r.lit())
	assert.Equal(t, 1000*physic.Hertz, r.tone())

	assert.Eventually(t, func() bool { return len(r.lit()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.buzzer.Read() == gpio.Low }, time.Second, 5*time.Millisecond)
}

func TestGPIOLedsNewStateCancelsClear(t *testing.T) {
	r := newLedRig(t, 30*time.Millisecond)

	r.leds.SetState(session.NotMatched)
	r.leds.SetState(session.RecordingActive)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []Colour{Orange}, r.lit())
}

func litPixels(img *image1bit.VerticalLSB) int {
	lit := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				lit++
			}
		}
	}
	return lit
}

func TestRenderScreenDrawsText(t *testing.T) {
	img := renderScreen("Gesture Lock", "Unlocked")
	assert.Equal(t, image.Rect(0, 0, 128, 64), img.Bounds())
	assert.Greater(t, litPixels(img), 50)
	assert.Zero(t, litPixels(renderScreen("", "")))
}

type fakePanel struct {
	mu     sync.Mutex
	frames []image.Image
	halted bool
}

func (f *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (f *fakePanel) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, src)
	return nil
}

func (f *fakePanel) Halt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.halted = true
	return nil
}

func (f *fakePanel) drawn() []image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Image(nil), f.frames...)
}

func TestDisplayShowsVerdictThenReady(t *testing.T) {
	p := &fakePanel{}
	d, err := newDisplay(p, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, p.drawn(), 1)
	assert.Equal(t, renderScreen("Gesture Lock", "Ready"), p.drawn()[0])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.SetState(session.Matched)
	// one frame for the verdict and one when the hold expires
	assert.Eventually(t, func() bool { return len(p.drawn()) == 3 }, time.Second, 5*time.Millisecond)
	frames := p.drawn()
	assert.Equal(t, renderScreen("Gesture Lock", "Unlocked"), frames[1])
	assert.Equal(t, renderScreen("Gesture Lock", "Ready"), frames[2])

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, d.Close())
	assert.True(t, p.halted)
}

func TestDisplayOnSSD1306(t *testing.T) {
	rec := &i2ctest.Record{}
	dev, err := ssd1306.NewI2C(rec, &ssd1306.DefaultOpts)
	require.NoError(t, err)
	afterInit := len(rec.Ops)

	d, err := newDisplay(dev, 0)
	require.NoError(t, err)
	require.Greater(t, len(rec.Ops), afterInit)
	for _, op := range rec.Ops {
		assert.Equal(t, uint16(0x3C), op.Addr)
	}

	drawn := len(rec.Ops)
	require.NoError(t, d.Close())
	assert.Greater(t, len(rec.Ops), drawn)
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &mqtt.DummyToken{}
}

func TestMQTTPublisher(t *testing.T) {
	fp := &fakePublisher{}
	p := newMQTTPublisher(fp, Topics{State: "gesture/state", Correlation: "gesture/correlation"})
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	p.SetState(session.Matched)
	p.Correlation(gesture.CorrelationVector{{R: 0.9, Defined: true}, {R: 0.5, Defined: true}, {}}, gesture.NotMatched)
	// no series topic configured
	p.Series("attempt", gesture.NewSeries(gesture.DefaultLayout))

	require.Len(t, fp.msgs, 2)

	assert.Equal(t, "gesture/state", fp.msgs[0].topic)
	assert.True(t, fp.msgs[0].retained)
	var st StateEvent
	require.NoError(t, json.Unmarshal(fp.msgs[0].payload, &st))
	assert.Equal(t, "matched", st.Signal)
	assert.Equal(t, "green", st.Colour)
	assert.Equal(t, "Unlocked", st.Text)

	assert.Equal(t, "gesture/correlation", fp.msgs[1].topic)
	var ce CorrelationEvent
	require.NoError(t, json.Unmarshal(fp.msgs[1].payload, &ce))
	assert.Equal(t, "not_matched", ce.Verdict)
	require.Len(t, ce.Correlations, 3)
	assert.False(t, ce.Correlations[2].Defined)
}

func TestMQTTPublisherSeries(t *testing.T) {
	fp := &fakePublisher{}
	p := newMQTTPublisher(fp, Topics{Series: "gesture/series"})

	s := gesture.NewSeries(gesture.DefaultLayout)
	s[gesture.Y][3] = 1.5
	p.Series("template", s)

	require.Len(t, fp.msgs, 1)
	assert.False(t, fp.msgs[0].retained)
	var ev SeriesEvent
	require.NoError(t, json.Unmarshal(fp.msgs[0].payload, &ev))
	assert.Equal(t, "template", ev.Label)
	assert.Equal(t, float32(1.5), ev.Series[gesture.Y][3])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.SetState(session.RecordingActive)
	m.SetState(session.Matched)
	m.SetState(session.Matched)
	m.Correlation(gesture.CorrelationVector{{R: 0.8, Defined: true}, {R: 0.4, Defined: true}, {}}, gesture.NotMatched)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.signals.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signals.WithLabelValues("recording_active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("not_matched")))
	assert.Equal(t, 0.8, testutil.ToFloat64(m.correlation.WithLabelValues("X")))
	assert.True(t, math.IsNaN(testutil.ToFloat64(m.correlation.WithLabelValues("Z"))))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "second registration must fail")
}
