package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labpool/labpool/internal/domain/pool"
)

func completedEvent(urgency pool.Urgency) pool.TransitionEvent {
	return pool.TransitionEvent{
		ItemID:  uuid.New(),
		Kind:    pool.KindLabTest,
		Urgency: urgency,
		From:    pool.StatusInProgress,
		To:      pool.StatusCompleted,
		Actor:   uuid.New(),
		At:      time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestTemplateEngine_Render(t *testing.T) {
	engine := NewTemplateEngine()
	subject, body, err := engine.Render("result-ready", map[string]string{
		"item_id": "abc-123",
		"kind":    "LAB_TEST",
		"urgency": "ROUTINE",
		"at":      "2025-08-14 10:30:00 UTC",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(subject, "abc-123") || !strings.Contains(subject, "LAB_TEST") {
		t.Errorf("subject missing substitutions: %q", subject)
	}
	if !strings.Contains(body, "2025-08-14 10:30:00 UTC") {
		t.Errorf("body missing timestamp: %q", body)
	}
	if strings.Contains(subject+body, "{{") {
		t.Errorf("unreplaced placeholder in output: %q / %q", subject, body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	engine := NewTemplateEngine()
	if _, _, err := engine.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_MissingKeyLeftAsIs(t *testing.T) {
	engine := NewTemplateEngine()
	engine.RegisterTemplate(Template{ID: "custom", Subject: "hello {{name}}", Body: "-"})
	subject, _, err := engine.Render("custom", map[string]string{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "hello {{name}}" {
		t.Errorf("expected placeholder preserved, got %q", subject)
	}
}

func TestEmailSink_SendsOnCompleted(t *testing.T) {
	sender := &MockEmailSender{}
	sink := NewEmailSink(sender, NewTemplateEngine(), "lab-alerts@example.org", zerolog.Nop())

	sink.OnTransition(context.Background(), completedEvent(pool.UrgencyRoutine))

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "lab-alerts@example.org" {
		t.Errorf("unexpected recipient %q", calls[0].To)
	}
	if !strings.Contains(calls[0].Subject, "Results ready") {
		t.Errorf("expected result-ready template, got subject %q", calls[0].Subject)
	}
}

func TestEmailSink_StatUsesStatTemplate(t *testing.T) {
	sender := &MockEmailSender{}
	sink := NewEmailSink(sender, NewTemplateEngine(), "lab-alerts@example.org", zerolog.Nop())

	sink.OnTransition(context.Background(), completedEvent(pool.UrgencyStat))

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Subject, "STAT") {
		t.Errorf("expected stat-completed template, got subject %q", calls[0].Subject)
	}
}

func TestEmailSink_IgnoresNonCompleted(t *testing.T) {
	sender := &MockEmailSender{}
	sink := NewEmailSink(sender, NewTemplateEngine(), "lab-alerts@example.org", zerolog.Nop())

	e := completedEvent(pool.UrgencyRoutine)
	e.From = pool.StatusPending
	e.To = pool.StatusClaimed
	sink.OnTransition(context.Background(), e)

	if len(sender.Calls()) != 0 {
		t.Error("expected no email for a claim transition")
	}
}

func TestEmailSink_NoRecipientConfigured(t *testing.T) {
	sender := &MockEmailSender{}
	sink := NewEmailSink(sender, NewTemplateEngine(), "", zerolog.Nop())

	sink.OnTransition(context.Background(), completedEvent(pool.UrgencyRoutine))

	if len(sender.Calls()) != 0 {
		t.Error("expected no email without a recipient")
	}
}

func TestEmailSink_SendFailureIsSwallowed(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "smtp unreachable"}
	sink := NewEmailSink(sender, NewTemplateEngine(), "lab-alerts@example.org", zerolog.Nop())

	// Must not panic or propagate; delivery problems stay out of the
	// transition path.
	sink.OnTransition(context.Background(), completedEvent(pool.UrgencyRoutine))

	if len(sender.Calls()) != 1 {
		t.Fatal("expected the send to have been attempted")
	}
}

func TestFanout_ForwardsToAllSinks(t *testing.T) {
	first := &MockEmailSender{}
	second := &MockEmailSender{}
	fan := NewFanout(
		NewEmailSink(first, NewTemplateEngine(), "a@example.org", zerolog.Nop()),
		NewEmailSink(second, NewTemplateEngine(), "b@example.org", zerolog.Nop()),
	)

	fan.OnTransition(context.Background(), completedEvent(pool.UrgencyRoutine))

	if len(first.Calls()) != 1 || len(second.Calls()) != 1 {
		t.Errorf("expected both sinks to fire, got %d and %d", len(first.Calls()), len(second.Calls()))
	}
}
