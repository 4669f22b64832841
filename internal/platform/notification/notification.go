// Package notification delivers downstream signals for pool item
// transitions: structured log entries always, email on completed work.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/labpool/labpool/internal/domain/pool"
)

// LogSink writes one structured log line per accepted transition.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) OnTransition(_ context.Context, e pool.TransitionEvent) {
	s.logger.Info().
		Str("item_id", e.ItemID.String()).
		Str("kind", string(e.Kind)).
		Str("urgency", string(e.Urgency)).
		Str("from", string(e.From)).
		Str("to", string(e.To)).
		Str("actor", e.Actor.String()).
		Time("at", e.At).
		Msg("pool transition")
}

// Fanout forwards each event to every registered sink in order.
type Fanout struct {
	sinks []pool.TransitionNotifier
}

func NewFanout(sinks ...pool.TransitionNotifier) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) OnTransition(ctx context.Context, e pool.TransitionEvent) {
	for _, s := range f.sinks {
		s.OnTransition(ctx, e)
	}
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "result-ready",
			Subject: "Results ready for {{kind}} {{item_id}}",
			Body:    "Item {{item_id}} ({{kind}}, {{urgency}}) was completed at {{at}}.",
		},
		{
			ID:      "stat-completed",
			Subject: "STAT item {{item_id}} completed",
			Body:    "STAT item {{item_id}} ({{kind}}) was completed at {{at}}. Review results immediately.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// EmailSink mails the configured recipient when an item reaches COMPLETED.
// STAT items use the stat-completed template. Send failures are logged and
// never block the transition that triggered them.
type EmailSink struct {
	sender    EmailSender
	templates *TemplateEngine
	to        string
	logger    zerolog.Logger
}

func NewEmailSink(sender EmailSender, templates *TemplateEngine, to string, logger zerolog.Logger) *EmailSink {
	return &EmailSink{sender: sender, templates: templates, to: to, logger: logger}
}

func (s *EmailSink) OnTransition(ctx context.Context, e pool.TransitionEvent) {
	if e.To != pool.StatusCompleted || s.to == "" {
		return
	}

	templateID := "result-ready"
	if e.Urgency == pool.UrgencyStat {
		templateID = "stat-completed"
	}

	data := map[string]string{
		"item_id": e.ItemID.String(),
		"kind":    string(e.Kind),
		"urgency": string(e.Urgency),
		"at":      e.At.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
	subject, body, err := s.templates.Render(templateID, data)
	if err != nil {
		s.logger.Error().Err(err).Str("template", templateID).Msg("render notification")
		return
	}

	if err := s.sender.SendEmail(ctx, s.to, subject, body); err != nil {
		s.logger.Error().Err(err).
			Str("item_id", e.ItemID.String()).
			Str("to", s.to).
			Msg("send completion email")
	}
}

// LogEmailSender writes outbound mail to the log instead of an MTA. Used
// until a real delivery backend is configured.
type LogEmailSender struct {
	logger zerolog.Logger
}

func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("outbound email")
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
