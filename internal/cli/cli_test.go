package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	"alert-delivery/internal/audio"
	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
	"alert-delivery/internal/store"
)

// quietEnv keeps tests off the real audio device and log files.
func quietEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("ALERTD_AUDIO_ENGINE", "none")
	t.Setenv("ALERTD_LOGGING_CONSOLE", "false")
	t.Setenv("ALERTD_LOGGING_FILE", "false")
	return t.TempDir()
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := &App{}
	t.Cleanup(app.Close)
	_, out, err := runApp(app, append([]string{"--config", dir}, args...)...)
	return out, err
}

func runApp(app *App, args ...string) (*cobra.Command, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(app)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cmd, stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, quietEnv(t), "version", "--json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q", v["version"])
	}
}

func TestPrefs_SetPersistsAcrossRuns(t *testing.T) {
	dir := quietEnv(t)

	if _, err := run(t, dir, "prefs", "set", "--sound-enabled=false", "--webhook-channel", "#alerts", "--volume", "0.4"); err != nil {
		t.Fatalf("prefs set error = %v", err)
	}

	out, err := run(t, dir, "prefs", "show", "--json")
	if err != nil {
		t.Fatalf("prefs show error = %v", err)
	}
	var p models.NotificationPreferences
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if p.Sound.Enabled || p.Sound.Volume != 0.4 {
		t.Errorf("sound = %+v", p.Sound)
	}
	if p.Webhook.Channel.String != "#alerts" {
		t.Errorf("webhook channel = %+v", p.Webhook.Channel)
	}
	if !p.InApp.Enabled || p.InApp.Position != models.DefaultPosition {
		t.Errorf("unchanged fields were modified: %+v", p.InApp)
	}

	if _, err := run(t, dir, "prefs", "reset"); err != nil {
		t.Fatalf("prefs reset error = %v", err)
	}
	out, _ = run(t, dir, "prefs", "show", "--json")
	json.Unmarshal([]byte(out), &p)
	if !p.Sound.Enabled || p.Webhook.Channel.Valid {
		t.Errorf("after reset = %+v", p)
	}
}

func TestPrefs_SetRejectsInvalidInput(t *testing.T) {
	dir := quietEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no flags", []string{"prefs", "set"}},
		{"volume out of range", []string{"prefs", "set", "--volume", "1.5"}},
		{"bad position", []string{"prefs", "set", "--position", "middle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			if !errors.Is(err, apperrors.ErrInputValidation) {
				t.Errorf("error = %v, want input validation error", err)
			}
		})
	}
}

func TestDispatch_RecordsHistory(t *testing.T) {
	dir := quietEnv(t)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := run(t, dir, "prefs", "set", "--webhook-enabled", "--webhook-url", srv.URL); err != nil {
		t.Fatalf("prefs set error = %v", err)
	}

	out, err := run(t, dir, "dispatch", "--json", "--alert-id", "42", "--symbol", "es",
		"--condition", "above", "--trigger", "4250.5", "--threshold", "4250")
	if err != nil {
		t.Fatalf("dispatch error = %v", err)
	}

	var result models.DeliveryResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if result.TotalChannels != 3 || result.SuccessfulChannels != 2 {
		t.Errorf("counts = %d/%d, want 2/3", result.SuccessfulChannels, result.TotalChannels)
	}
	if wh, _ := result.Outcome(models.ChannelWebhook); wh.Error != "webhook returned status 500" {
		t.Errorf("webhook outcome = %+v", wh)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("webhook hits = %d, want 1", hits)
	}

	out, err = run(t, dir, "history", "--json", "--symbol", "ES")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	var records []store.DeliveryRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(records) != 1 || records[0].Result.ID != result.ID || records[0].Symbol != "ES" {
		t.Fatalf("history = %+v", records)
	}

	out, err = run(t, dir, "history", "stats")
	if err != nil {
		t.Fatalf("history stats error = %v", err)
	}
	if !strings.Contains(out, "webhook") || !strings.Contains(out, "0.0%") {
		t.Errorf("stats output = %q", out)
	}
}

func TestDispatch_ValidatesAlert(t *testing.T) {
	dir := quietEnv(t)

	_, err := run(t, dir, "dispatch", "--symbol", "ES", "--condition", "sideways")
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("error = %v, want input validation error", err)
	}
}

func TestTestCommand(t *testing.T) {
	dir := quietEnv(t)

	t.Run("webhook without url", func(t *testing.T) {
		out, err := run(t, dir, "test", "webhook")
		var de *apperrors.DeliveryError
		if !errors.As(err, &de) || de.Channel != "webhook" {
			t.Fatalf("error = %v, want delivery error", err)
		}
		if !strings.Contains(out, "Webhook URL not configured") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("sound while disabled", func(t *testing.T) {
		if _, err := run(t, dir, "prefs", "set", "--sound-enabled=false"); err != nil {
			t.Fatal(err)
		}
		if _, err := run(t, dir, "test", "sound"); err != nil {
			t.Errorf("test sound error = %v", err)
		}
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, err := run(t, dir, "test", "email")
		if !errors.Is(err, apperrors.ErrUnknownChannel) {
			t.Errorf("error = %v, want ErrUnknownChannel", err)
		}
	})

	t.Run("not recorded", func(t *testing.T) {
		out, err := run(t, dir, "history", "--json")
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(out) != "[]" {
			t.Errorf("history after tests = %s, want empty", out)
		}
	})
}

func TestTones_FreshInstallGeneratesTones(t *testing.T) {
	dir := quietEnv(t)
	player := filepath.Join(t.TempDir(), "player.sh")
	if err := os.WriteFile(player, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALERTD_AUDIO_ENGINE", "command")
	t.Setenv("ALERTD_AUDIO_PLAYER", player)

	out, err := run(t, dir, "tones", "--json")
	if err != nil {
		t.Fatalf("tones error = %v", err)
	}
	var got struct {
		Loaded []string `json:"loaded"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(got.Loaded) != len(audio.ToneNames) {
		t.Errorf("loaded = %v, want every tone", got.Loaded)
	}
	if _, err := os.Stat(filepath.Join(dir, "tones", "chime.wav")); err != nil {
		t.Errorf("chime.wav not written: %v", err)
	}
}

func TestHistory_EphemeralUnavailable(t *testing.T) {
	_, err := run(t, quietEnv(t), "--ephemeral", "history")
	if err == nil {
		t.Error("history should fail in ephemeral mode")
	}
}

func TestUpdateFromFlags_OnlyChangedFlags(t *testing.T) {
	cmd := newPrefsSetCmd(&App{})
	if err := cmd.ParseFlags([]string{"--tone", "chime", "--webhook-username", ""}); err != nil {
		t.Fatal(err)
	}

	upd, err := updateFromFlags(cmd.Flags())
	if err != nil {
		t.Fatalf("updateFromFlags() error = %v", err)
	}
	if upd.InApp != nil {
		t.Errorf("InApp = %+v, want nil", upd.InApp)
	}
	if upd.Sound == nil || upd.Sound.Tone.String != "chime" || upd.Sound.Volume.Valid || upd.Sound.Enabled.Valid {
		t.Errorf("Sound = %+v", upd.Sound)
	}
	if upd.Webhook == nil || !upd.Webhook.Username.Valid || upd.Webhook.Username.String != "" || upd.Webhook.URL.Valid {
		t.Errorf("Webhook = %+v", upd.Webhook)
	}
}

func TestServe_ConsumesAndPublishes(t *testing.T) {
	dir := quietEnv(t)
	ctx := context.Background()

	alerts, err := pubsub.OpenTopic(ctx, "mem://cli-alerts")
	if err != nil {
		t.Fatal(err)
	}
	defer alerts.Shutdown(ctx)
	if _, err := pubsub.OpenTopic(ctx, "mem://cli-results"); err != nil {
		t.Fatal(err)
	}
	resultSub, err := pubsub.OpenSubscription(ctx, "mem://cli-results")
	if err != nil {
		t.Fatal(err)
	}
	defer resultSub.Shutdown(ctx)

	app := &App{}
	t.Cleanup(app.Close)
	if _, _, err := runApp(app, "--config", dir, "--ephemeral", "prefs", "show"); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- serve(serveCtx, app, "mem://cli-alerts", "mem://cli-results") }()

	body, _ := json.Marshal(models.FiredAlert{AlertID: 77, Symbol: "NQ", Condition: models.ConditionBelow, TriggerValue: 1, ThresholdValue: 2})

	// The subscription is opened inside serve; resend until it is listening.
	recvCtx, recvCancel := context.WithTimeout(ctx, 10*time.Second)
	defer recvCancel()
	received := make(chan *pubsub.Message, 1)
	go func() {
		msg, err := resultSub.Receive(recvCtx)
		if err == nil {
			received <- msg
		}
	}()

	var msg *pubsub.Message
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case msg = <-received:
			break loop
		case <-ticker.C:
			alerts.Send(ctx, &pubsub.Message{Body: body})
		case <-recvCtx.Done():
			t.Fatal("no result published")
		}
	}
	msg.Ack()

	if msg.Metadata["alert_id"] != "77" || msg.Metadata["symbol"] != "NQ" {
		t.Errorf("metadata = %v", msg.Metadata)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
