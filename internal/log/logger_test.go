package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentBudget, Output: &buf})
	l.Info("budget created", FieldBudgetID, "b1")

	out := buf.String()
	if !strings.Contains(out, "component=budget") {
		t.Fatalf("missing component in %q", out)
	}
	if !strings.Contains(out, "budget_id=b1") {
		t.Fatalf("missing field in %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentGoal).Debug("goal read")
	if !strings.Contains(buf.String(), "component=goal") {
		t.Fatalf("expected sub-component, got %q", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard().WithComponent(ComponentNudge)
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("expected the stored logger")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
}
