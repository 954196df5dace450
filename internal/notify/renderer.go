package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bookline/notifier/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notifications from templates.
// Rendering has no side effects; relative phrasing such as "in 4 hours"
// is computed against the wall clock at render time, so it reflects
// when the message is sent, not when it was scheduled.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":         titleCase,
		"upper":         strings.ToUpper,
		"lower":         strings.ToLower,
		"formatTime":    formatTime,
		"untilText":     untilText,
		"severityEmoji": severityEmoji,
	}

	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   funcMap,
	}

	messageTypes := []MessageType{MessageTypeReminder, MessageTypeAlert}

	for _, channel := range domain.AllChannelTypes() {
		for _, msg := range messageTypes {
			name := fmt.Sprintf("%s_%s", channel, msg)
			filename := fmt.Sprintf("templates/%s.tmpl", name)

			content, err := templatesFS.ReadFile(filename)
			if err != nil {
				return nil, fmt.Errorf("read template %s: %w", filename, err)
			}

			tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", name, err)
			}

			r.templates[name] = tmpl
		}
	}

	return r, nil
}

// Render renders a notification payload for the specified channel type.
// Returns subject and body.
func (r *Renderer) Render(channelType domain.ChannelType, payload Payload) (subject, body string, err error) {
	subject = r.renderSubject(payload)

	templateName := fmt.Sprintf("%s_%s", channelType, payload.MessageType)
	tmpl, ok := r.templates[templateName]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", templateName, err)
	}

	body = strings.TrimSpace(buf.String())
	return subject, body, nil
}

// renderSubject generates the notification subject line.
func (r *Renderer) renderSubject(payload Payload) string {
	switch payload.MessageType {
	case MessageTypeReminder:
		if payload.Reminder != nil {
			return fmt.Sprintf("[Reminder] %s on %s",
				payload.Reminder.ServiceName,
				formatTime(payload.Reminder.ScheduledTime))
		}
		return "[Reminder] Upcoming appointment"
	case MessageTypeAlert:
		if payload.Alert != nil {
			return fmt.Sprintf("[%s] %s", titleCase(string(payload.Alert.Severity)), payload.Alert.Title)
		}
		return "[Alert] Notification"
	default:
		return "Notification"
	}
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

// untilText describes how far in the future t lies, rounded to hours.
func untilText(t time.Time) string {
	d := time.Until(t).Round(time.Hour)
	hours := int(d.Hours())
	if hours <= 1 {
		return "less than an hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

func severityEmoji(severity domain.Severity) string {
	switch severity {
	case domain.SeverityLow:
		return "⚪"
	case domain.SeverityMedium:
		return "🟡"
	case domain.SeverityHigh:
		return "🟠"
	case domain.SeverityCritical:
		return "🔴"
	default:
		return "📋"
	}
}
