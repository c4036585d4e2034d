package models

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "alert-delivery/internal/errors"
)

func TestFiredAlert_Validate(t *testing.T) {
	tests := []struct {
		name    string
		alert   FiredAlert
		wantErr bool
	}{
		{"valid", FiredAlert{Symbol: "ES", Condition: ConditionAbove}, false},
		{"error condition", FiredAlert{Symbol: "ES", Condition: ConditionError}, false},
		{"blank symbol", FiredAlert{Symbol: "  ", Condition: ConditionAbove}, true},
		{"unknown condition", FiredAlert{Symbol: "ES", Condition: "sideways"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.alert.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	for in, want := range map[string]Channel{
		"in_app":  ChannelInApp,
		"In-App":  ChannelInApp,
		" sound ": ChannelSound,
		"WEBHOOK": ChannelWebhook,
		"inapp":   ChannelInApp,
	} {
		got, err := ParseChannel(in)
		if err != nil || got != want {
			t.Errorf("ParseChannel(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseChannel("email"); err == nil {
		t.Error("ParseChannel(email) should fail")
	}
}

func TestNewDeliveryResult(t *testing.T) {
	start := time.UnixMilli(1700000000123)
	r := NewDeliveryResult(9, start, 3, []DeliveryOutcome{
		Delivered(ChannelInApp, start),
		Failed(ChannelWebhook, start, ""),
		Delivered(ChannelSound, start),
	})

	if r.ID != "9-1700000000123" {
		t.Errorf("ID = %q", r.ID)
	}
	if r.SuccessfulChannels != 2 || r.TotalChannels != 3 || r.AllDelivered() {
		t.Errorf("counts = %d/%d", r.SuccessfulChannels, r.TotalChannels)
	}
	failed := r.Failures()
	if len(failed) != 1 || failed[0].Error != "unknown error" {
		t.Errorf("Failures() = %+v", failed)
	}
	if _, ok := r.Outcome(ChannelSound); !ok {
		t.Error("sound outcome missing")
	}

	empty := NewDeliveryResult(1, start, 0, nil)
	if empty.Outcomes == nil || !empty.AllDelivered() {
		t.Errorf("empty result = %+v", empty)
	}
}

func TestNormalize(t *testing.T) {
	p := NotificationPreferences{
		InApp:   InAppPreferences{Position: "middle", AutoCloseMS: -5},
		Sound:   SoundPreferences{Volume: 3},
		Webhook: WebhookPreferences{URL: "  https://hooks.example.com/x "},
	}.Normalize()

	if p.InApp.Position != DefaultPosition || p.InApp.AutoCloseMS != 0 {
		t.Errorf("in-app = %+v", p.InApp)
	}
	if p.Sound.Volume != 1 || p.Sound.Tone != DefaultTone {
		t.Errorf("sound = %+v", p.Sound)
	}
	if p.Webhook.URL != "https://hooks.example.com/x" {
		t.Errorf("url = %q", p.Webhook.URL)
	}
	if ClampVolume(math.NaN()) != 0 || ClampVolume(-1) != 0 {
		t.Error("ClampVolume should map NaN and negatives to 0")
	}
}

func TestPreferencesUpdate_Validate(t *testing.T) {
	tests := []struct {
		name string
		upd  PreferencesUpdate
	}{
		{"volume too high", PreferencesUpdate{Sound: &SoundUpdate{Volume: null.FloatFrom(1.01)}}},
		{"volume NaN", PreferencesUpdate{Sound: &SoundUpdate{Volume: null.FloatFrom(math.NaN())}}},
		{"blank tone", PreferencesUpdate{Sound: &SoundUpdate{Tone: null.StringFrom(" ")}}},
		{"bad position", PreferencesUpdate{InApp: &InAppUpdate{Position: null.StringFrom("center")}}},
		{"negative auto close", PreferencesUpdate{InApp: &InAppUpdate{AutoCloseMS: null.IntFrom(-1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.upd.Validate()
			if !errors.Is(err, apperrors.ErrInputValidation) {
				t.Errorf("Validate() = %v, want input validation error", err)
			}
		})
	}

	ok := PreferencesUpdate{Sound: &SoundUpdate{Volume: null.FloatFrom(0)}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v for volume 0", err)
	}
}

func TestMerge_WebhookOptionalFields(t *testing.T) {
	p := DefaultPreferences()
	p.Webhook.Channel = null.StringFrom("#ops")

	got := p.Merge(PreferencesUpdate{Webhook: &WebhookUpdate{
		Enabled:  null.BoolFrom(true),
		URL:      null.StringFrom(" https://hooks.example.com/a "),
		Channel:  null.StringFrom(""),
		Username: null.StringFrom(" bot "),
	}})

	if !got.Webhook.Enabled || got.Webhook.URL != "https://hooks.example.com/a" {
		t.Errorf("webhook = %+v", got.Webhook)
	}
	if got.Webhook.Channel.Valid {
		t.Errorf("channel should be cleared, got %+v", got.Webhook.Channel)
	}
	if got.Webhook.Username.String != "bot" {
		t.Errorf("username = %+v", got.Webhook.Username)
	}
	if !reflect.DeepEqual(got.InApp, p.InApp) || !reflect.DeepEqual(got.Sound, p.Sound) {
		t.Error("channels absent from the update changed")
	}
}

func TestProperty_MergeLeavesAbsentChannelsAlone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("only channels present in the update change", prop.ForAll(
		func(enabled bool, volume float64, tone string, which int) bool {
			base := DefaultPreferences()
			var upd PreferencesUpdate
			switch which {
			case 0:
				upd.InApp = &InAppUpdate{Enabled: null.BoolFrom(enabled)}
			case 1:
				upd.Sound = &SoundUpdate{Volume: null.FloatFrom(volume), Tone: null.StringFrom(tone)}
			default:
				upd.Webhook = &WebhookUpdate{Enabled: null.BoolFrom(enabled)}
			}
			got := base.Merge(upd)

			if which != 0 && !reflect.DeepEqual(got.InApp, base.InApp) {
				return false
			}
			if which != 1 && !reflect.DeepEqual(got.Sound, base.Sound) {
				return false
			}
			if which != 2 && !reflect.DeepEqual(got.Webhook, base.Webhook) {
				return false
			}
			return true
		},
		gen.Bool(),
		gen.Float64Range(0, 1),
		gen.AlphaString(),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
