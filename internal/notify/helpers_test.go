package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alert-delivery/internal/models"
)

var nopLogger = zerolog.Nop()

type fakeRenderer struct {
	mu     sync.Mutex
	toasts []Toast
	err    error
}

func (r *fakeRenderer) Render(_ context.Context, t Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.toasts = append(r.toasts, t)
	return nil
}

func (r *fakeRenderer) rendered() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

type playCall struct {
	tone   string
	volume float64
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []playCall
	err   error
	panic bool
}

func (p *fakePlayer) Play(_ context.Context, tone string, volume float64) error {
	if p.panic {
		panic("audio engine exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{tone, volume})
	return p.err
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// recordingDoer captures requests and answers with a fixed status.
type recordingDoer struct {
	mu       sync.Mutex
	status   int
	err      error
	requests []*http.Request
	bodies   [][]byte
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, body)
	d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (d *recordingDoer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// panicDeliverer panics on every attempt.
type panicDeliverer struct{ ch models.Channel }

func (p panicDeliverer) Channel() models.Channel { return p.ch }

func (p panicDeliverer) Deliver(context.Context, models.FiredAlert, models.NotificationPreferences) models.DeliveryOutcome {
	panic("boom")
}

// staticDeliverer returns a fixed status after an optional delay.
type staticDeliverer struct {
	ch    models.Channel
	fail  bool
	delay time.Duration
}

func (s staticDeliverer) Channel() models.Channel { return s.ch }

func (s staticDeliverer) Deliver(ctx context.Context, _ models.FiredAlert, _ models.NotificationPreferences) models.DeliveryOutcome {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail {
		return models.Failed(s.ch, time.Now(), "forced failure")
	}
	return models.Delivered(s.ch, time.Now())
}

// mutableSource serves preferences that tests can change at any time.
type mutableSource struct {
	mu    sync.Mutex
	prefs models.NotificationPreferences
	reads int
}

func (s *mutableSource) Preferences() models.NotificationPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.prefs
}

func (s *mutableSource) set(p models.NotificationPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// hookDeliverer runs during inside its attempt, then reports the preferences it was given.
type hookDeliverer struct {
	ch     models.Channel
	during func()
	delay  time.Duration
	seen   chan<- models.NotificationPreferences
}

func (h hookDeliverer) Channel() models.Channel { return h.ch }

func (h hookDeliverer) Deliver(_ context.Context, _ models.FiredAlert, p models.NotificationPreferences) models.DeliveryOutcome {
	h.during()
	time.Sleep(h.delay)
	h.seen <- p
	return models.Delivered(h.ch, time.Now())
}

type recordingSink struct {
	mu      sync.Mutex
	results []models.DeliveryResult
	err     error
}

func (s *recordingSink) RecordDelivery(_ context.Context, _ models.FiredAlert, r models.DeliveryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}

var errTransport = errors.New("connection refused")

func esAlert() models.FiredAlert {
	return models.FiredAlert{
		AlertID:        42,
		RuleID:         7,
		InstrumentID:   1,
		Symbol:         "ES",
		TriggerValue:   4250.50,
		ThresholdValue: 4250.00,
		Condition:      models.ConditionAbove,
		Timestamp:      time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
	}
}

func allChannels(renderer Renderer, player SoundPlayer, doer HTTPDoer) []Deliverer {
	return []Deliverer{
		NewInAppDeliverer(renderer, player, nopLogger),
		NewSoundDeliverer(player, nopLogger),
		NewWebhookDeliverer(doer, "test", nopLogger),
	}
}
