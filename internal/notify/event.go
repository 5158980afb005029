// Package notify delivers detection alerts to the configured channels:
// email, Web Push, MQTT and any shoutrrr service URL.
package notify

import (
	"bytes"
	"fmt"
	"math"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

// localeLayout renders times the way browsers print Date.toLocaleString in en-US.
const localeLayout = "1/2/2006, 3:04:05 PM"

// Event is one detection alert to be delivered.
type Event struct {
	ID         string
	Name       string
	AlertType  string
	Status     string
	Confidence *float64
	Image      string // data URL snapshot, may be empty
	Time       time.Time
}

// NewEvent creates an event with a fresh id.
func NewEvent(name, alertType, status string, confidence *float64, image string, at time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Name:       name,
		AlertType:  alertType,
		Status:     status,
		Confidence: confidence,
		Image:      image,
		Time:       at,
	}
}

// ConfidenceText is "n/a" without a confidence, otherwise a rounded percentage.
func (e *Event) ConfidenceText() string {
	if e.Confidence == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", int(math.Round(*e.Confidence*100)))
}

// Unknown reports whether the event is about an unrecognized person.
func (e *Event) Unknown() bool {
	return facematch.IsUnknownName(e.Name)
}

// Timestamp is the event time in RFC 3339 UTC with milliseconds.
func (e *Event) Timestamp() string {
	return e.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// templateData is what the message templates see.
type templateData struct {
	Name           string
	AlertType      string
	Status         string
	ConfidenceText string
	Time           string
	Timestamp      string
}

func (e *Event) templateData() templateData {
	return templateData{
		Name:           e.Name,
		AlertType:      e.AlertType,
		Status:         e.Status,
		ConfidenceText: e.ConfidenceText(),
		Time:           e.Time.Local().Format(localeLayout),
		Timestamp:      e.Timestamp(),
	}
}

// Templates holds the parsed message templates of one channel.
type Templates struct {
	wantedSubject  *template.Template
	unknownSubject *template.Template
	title          *template.Template
	body           *template.Template
	from           string
}

// ParseTemplates compiles the message templates. Empty templates render as "".
func ParseTemplates(name string, mt config.MessageTemplates) (*Templates, error) {
	t := &Templates{from: mt.From}
	parts := []struct {
		dst **template.Template
		src string
	}{
		{&t.wantedSubject, mt.WantedSubject},
		{&t.unknownSubject, mt.UnknownSubject},
		{&t.title, mt.Title},
		{&t.body, mt.Body},
	}
	for i, p := range parts {
		tmpl, err := template.New(fmt.Sprintf("%s-%d", name, i)).Option("missingkey=error").Parse(p.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		*p.dst = tmpl
	}
	return t, nil
}

// Subject picks the unknown or wanted subject for the event.
func (t *Templates) Subject(e *Event) (string, error) {
	if e.Unknown() {
		return render(t.unknownSubject, e)
	}
	return render(t.wantedSubject, e)
}

func (t *Templates) Title(e *Event) (string, error) {
	return render(t.title, e)
}

func (t *Templates) Body(e *Event) (string, error) {
	return render(t.body, e)
}

// From is the display name used as sender.
func (t *Templates) From() string {
	return t.from
}

func render(tmpl *template.Template, e *Event) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e.templateData()); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
