package prefs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/guregu/null/v5"
	"github.com/rs/zerolog"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

type failingKV struct {
	getErr error
	putErr error
}

func (f failingKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.getErr }
func (f failingKV) Put(context.Context, string, []byte) error        { return f.putErr }

func TestNew_UsesDefaultsWhenEmpty(t *testing.T) {
	s := New(context.Background(), NewMemoryKV(), models.DefaultPreferences(), zerolog.Nop())
	if got := s.Preferences(); got != models.DefaultPreferences() {
		t.Errorf("Preferences() = %+v, want defaults", got)
	}
}

func TestNew_CorruptDataFallsBackToDefaults(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Put(context.Background(), Key, []byte("{not json"))

	s := New(context.Background(), kv, models.DefaultPreferences(), zerolog.Nop())
	if got := s.Preferences(); got != models.DefaultPreferences() {
		t.Errorf("Preferences() = %+v, want defaults", got)
	}
}

func TestNew_ReadErrorFallsBackToDefaults(t *testing.T) {
	s := New(context.Background(), failingKV{getErr: errors.New("disk gone")}, models.DefaultPreferences(), zerolog.Nop())
	if got := s.Preferences(); got != models.DefaultPreferences() {
		t.Errorf("Preferences() = %+v, want defaults", got)
	}
}

func TestNew_ClampsLoadedVolume(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Put(context.Background(), Key, []byte(`{"inApp":{"enabled":true,"position":"top-right","autoCloseMs":5000,"sound":true},"sound":{"enabled":true,"tone":"chime","volume":3.5},"webhook":{"enabled":false,"url":"","channel":null,"username":null}}`))

	s := New(context.Background(), kv, models.DefaultPreferences(), zerolog.Nop())
	got := s.Preferences()
	if got.Sound.Volume != 1 {
		t.Errorf("Sound.Volume = %v, want 1", got.Sound.Volume)
	}
	if got.Sound.Tone != "chime" {
		t.Errorf("Sound.Tone = %q, want chime", got.Sound.Tone)
	}
}

func TestUpdate_MergesPerChannelAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := New(ctx, kv, models.DefaultPreferences(), zerolog.Nop())

	got, err := s.Update(ctx, models.PreferencesUpdate{
		Webhook: &models.WebhookUpdate{
			Enabled: null.BoolFrom(true),
			URL:     null.StringFrom(" https://hooks.example.com/a "),
		},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !got.Webhook.Enabled || got.Webhook.URL != "https://hooks.example.com/a" {
		t.Errorf("webhook not merged: %+v", got.Webhook)
	}
	if got.InApp != models.DefaultPreferences().InApp || got.Sound != models.DefaultPreferences().Sound {
		t.Errorf("untouched channels changed: %+v", got)
	}
	if s.Preferences() != got {
		t.Errorf("snapshot not published")
	}

	// A fresh store over the same KV sees the persisted value.
	reloaded := New(ctx, kv, models.DefaultPreferences(), zerolog.Nop())
	if reloaded.Preferences() != got {
		t.Errorf("reloaded = %+v, want %+v", reloaded.Preferences(), got)
	}
}

func TestUpdate_RejectsInvalidAndKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), models.DefaultPreferences(), zerolog.Nop())

	tests := []struct {
		name string
		upd  models.PreferencesUpdate
	}{
		{"volume above one", models.PreferencesUpdate{Sound: &models.SoundUpdate{Volume: null.FloatFrom(1.2)}}},
		{"negative volume", models.PreferencesUpdate{Sound: &models.SoundUpdate{Volume: null.FloatFrom(-0.1)}}},
		{"empty tone", models.PreferencesUpdate{Sound: &models.SoundUpdate{Tone: null.StringFrom("  ")}}},
		{"bad position", models.PreferencesUpdate{InApp: &models.InAppUpdate{Position: null.StringFrom("center")}}},
		{"negative auto close", models.PreferencesUpdate{InApp: &models.InAppUpdate{AutoCloseMS: null.IntFrom(-1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(ctx, tt.upd)
			if !errors.Is(err, apperrors.ErrInputValidation) {
				t.Fatalf("Update() error = %v, want validation error", err)
			}
			if s.Preferences() != models.DefaultPreferences() {
				t.Errorf("preferences changed after rejected update")
			}
		})
	}
}

func TestUpdate_PersistFailureKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, failingKV{putErr: errors.New("read-only")}, models.DefaultPreferences(), zerolog.Nop())

	_, err := s.Update(ctx, models.PreferencesUpdate{Sound: &models.SoundUpdate{Enabled: null.BoolFrom(false)}})
	if err == nil {
		t.Fatal("expected persist error")
	}
	if !s.Preferences().Sound.Enabled {
		t.Error("preferences changed after failed persist")
	}
}

func TestUpdate_ClearsOptionalWebhookFields(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), models.DefaultPreferences(), zerolog.Nop())

	if _, err := s.Update(ctx, models.PreferencesUpdate{Webhook: &models.WebhookUpdate{Channel: null.StringFrom("#ops")}}); err != nil {
		t.Fatal(err)
	}
	if s.Preferences().Webhook.Channel.String != "#ops" {
		t.Fatalf("channel not set")
	}

	if _, err := s.Update(ctx, models.PreferencesUpdate{Webhook: &models.WebhookUpdate{Channel: null.StringFrom("")}}); err != nil {
		t.Fatal(err)
	}
	if s.Preferences().Webhook.Channel.Valid {
		t.Errorf("channel should be cleared, got %q", s.Preferences().Webhook.Channel.String)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := New(ctx, kv, models.DefaultPreferences(), zerolog.Nop())

	if _, err := s.Update(ctx, models.PreferencesUpdate{InApp: &models.InAppUpdate{Enabled: null.BoolFrom(false)}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if s.Preferences() != models.DefaultPreferences() {
		t.Errorf("Preferences() after reset = %+v", s.Preferences())
	}
	if New(ctx, kv, models.DefaultPreferences(), zerolog.Nop()).Preferences() != models.DefaultPreferences() {
		t.Error("reset was not persisted")
	}
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), models.DefaultPreferences(), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				// Enabled and volume always change together.
				on := (i+j)%2 == 0
				vol := 0.2
				if on {
					vol = 0.9
				}
				_, _ = s.Update(ctx, models.PreferencesUpdate{Sound: &models.SoundUpdate{
					Enabled: null.BoolFrom(on),
					Volume:  null.FloatFrom(vol),
				}})
			}
		}(i)
	}

	stop := make(chan struct{})
	torn := make(chan models.NotificationPreferences, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			p := s.Preferences()
			if p.Sound.Enabled && p.Sound.Volume == 0.2 || !p.Sound.Enabled && p.Sound.Volume == 0.9 {
				select {
				case torn <- p:
				default:
				}
			}
		}
	}()

	wg.Wait()
	close(stop)

	select {
	case p := <-torn:
		t.Errorf("observed torn snapshot: %+v", p.Sound)
	default:
	}
}
