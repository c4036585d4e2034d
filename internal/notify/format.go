package notify

import (
	"fmt"
	"strings"
	"time"

	"alert-delivery/internal/models"
)

// DefaultWebhookUsername is used when the webhook has no username configured.
const DefaultWebhookUsername = "Alert Delivery"

// DisplayTimeFormat is the local time layout shown to users.
const DisplayTimeFormat = "2006-01-02 15:04:05 MST"

var toneColors = map[models.Tone]string{
	models.ToneSuccess: "#2eb886",
	models.ToneWarning: "#daa038",
	models.ToneError:   "#a30200",
	models.ToneInfo:    "#439fe0",
}

// ClassifyTone maps an alert condition to a visual tone. It is total:
// conditions it does not recognise map to info.
func ClassifyTone(alert models.FiredAlert) models.Tone {
	switch alert.Condition {
	case models.ConditionAbove, models.ConditionCrossesAbove, models.ConditionPercentChangeUp:
		return models.ToneSuccess
	case models.ConditionBelow, models.ConditionCrossesBelow, models.ConditionPercentChangeDown:
		return models.ToneWarning
	case models.ConditionError:
		return models.ToneError
	default:
		return models.ToneInfo
	}
}

// ToneColor returns the hex color used for a tone in webhook attachments.
func ToneColor(t models.Tone) string {
	if c, ok := toneColors[t]; ok {
		return c
	}
	return toneColors[models.ToneInfo]
}

// ConditionText returns a human readable phrase for a condition.
func ConditionText(c models.Condition) string {
	switch c {
	case models.ConditionAbove:
		return "rises above"
	case models.ConditionBelow:
		return "falls below"
	case models.ConditionCrossesAbove:
		return "crosses above its moving average"
	case models.ConditionCrossesBelow:
		return "crosses below its moving average"
	case models.ConditionPercentChangeUp:
		return "is up by at least"
	case models.ConditionPercentChangeDown:
		return "is down by at least"
	case models.ConditionVolumeAbove:
		return "trades volume above"
	case models.ConditionError:
		return "reported an error"
	default:
		return strings.ReplaceAll(string(c), "_", " ")
	}
}

// DisplayPayload is the in-app representation of an alert.
type DisplayPayload struct {
	Title          string
	Message        string
	Symbol         string
	ConditionText  string
	TriggerValue   string
	ThresholdValue string
	Timestamp      string
	Tone           models.Tone
}

// FormatForDisplay renders an alert for the in-app channel.
func FormatForDisplay(alert models.FiredAlert) DisplayPayload {
	cond := ConditionText(alert.Condition)
	trigger := formatValue(alert.TriggerValue)
	threshold := formatValue(alert.ThresholdValue)

	message := alert.Message
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("%s %s %s (now %s)", alert.Symbol, cond, threshold, trigger)
	}

	return DisplayPayload{
		Title:          fmt.Sprintf("Alert: %s", alert.Symbol),
		Message:        message,
		Symbol:         alert.Symbol,
		ConditionText:  cond,
		TriggerValue:   trigger,
		ThresholdValue: threshold,
		Timestamp:      formatTimestamp(alert.Timestamp),
		Tone:           ClassifyTone(alert),
	}
}

// WebhookPayload is a Slack/Mattermost compatible incoming webhook body.
type WebhookPayload struct {
	Username    string       `json:"username"`
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is one colored block of a webhook message.
type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Fields []Field `json:"fields"`
	Footer string  `json:"footer"`
	TS     int64   `json:"ts"`
}

// Field is a short key/value pair within an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// FormatForWebhook renders an alert for a chat webhook.
func FormatForWebhook(alert models.FiredAlert, cfg models.WebhookPreferences) WebhookPayload {
	display := FormatForDisplay(alert)

	username := DefaultWebhookUsername
	if cfg.Username.Valid && strings.TrimSpace(cfg.Username.String) != "" {
		username = cfg.Username.String
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return WebhookPayload{
		Username: username,
		Channel:  cfg.Channel.ValueOrZero(),
		Text:     fmt.Sprintf("*%s* %s", display.Title, display.ConditionText),
		Attachments: []Attachment{{
			Color: ToneColor(display.Tone),
			Title: display.Title,
			Text:  display.Message,
			Fields: []Field{
				{Title: "Symbol", Value: alert.Symbol, Short: true},
				{Title: "Condition", Value: display.ConditionText, Short: true},
				{Title: "Threshold", Value: display.ThresholdValue, Short: true},
				{Title: "Trigger Value", Value: display.TriggerValue, Short: true},
			},
			Footer: fmt.Sprintf("Rule #%d | Alert #%d", alert.RuleID, alert.AlertID),
			TS:     ts.Unix(),
		}},
	}
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DisplayTimeFormat)
}
