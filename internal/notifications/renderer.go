package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders alerts from per-channel templates.
type Renderer struct {
	templates map[ChannelType]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"join":          strings.Join,
		"formatTime":    formatTime,
		"severityEmoji": severityEmoji,
		"escapeHTML":    html.EscapeString,
	}

	r := &Renderer{templates: make(map[ChannelType]*template.Template)}

	for _, channel := range []ChannelType{ChannelTypeMattermost, ChannelTypeTelegram} {
		filename := fmt.Sprintf("templates/%s_alert.tmpl", channel)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(channel)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}

		r.templates[channel] = tmpl
	}

	return r, nil
}

// Render renders alert for the channel type. Returns subject and body.
func (r *Renderer) Render(channel ChannelType, alert Alert) (subject, body string, err error) {
	tmpl, ok := r.templates[channel]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", channel)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", channel, err)
	}

	prefix := "On-call"
	if alert.Urgent {
		prefix = "Urgent"
	}
	subject = fmt.Sprintf("[%s %s] %s", prefix, alert.Severity, alert.Title)

	return subject, strings.TrimSpace(buf.String()), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func severityEmoji(severity string) string {
	switch strings.ToUpper(severity) {
	case "P1":
		return "🔴"
	case "P2":
		return "🟠"
	case "P3":
		return "🟡"
	default:
		return "⚪"
	}
}
