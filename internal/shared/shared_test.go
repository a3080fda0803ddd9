package shared

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestKind(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"auth expired is unauthorized", ErrAuthExpired, KindUnauthorized},
		{"refresh failed", fmt.Errorf("wrap: %w", ErrRefreshFailed), KindUnauthorized},
		{"upstream 401", &UpstreamError{Service: "spotify", Status: 401}, KindUnauthorized},
		{"upstream 500", &UpstreamError{Service: "spotify", Status: 500}, KindUpstream},
		{"invalid input", fmt.Errorf("%w: empty", ErrInvalidInput), KindInvalidInput},
		{"cancelled", Cancelled(errors.New("context canceled")), KindCancelled},
		{
			"recommendation failed wins over candidate fetch",
			fmt.Errorf("%w: %w", ErrRecommendationFailed, ErrCandidateFetchFailed),
			KindRecommendationFailed,
		},
		{"candidate fetch", ErrCandidateFetchFailed, KindCandidateFetchFailed},
		{"unknown", errors.New("boom"), KindInternal},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpstreamError(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &UpstreamError{Service: "spotify", Status: 404, Body: `{"error":"not found"}`})

	ue, ok := Upstream(err)
	if !ok {
		t.Fatal("expected upstream error in chain")
	}
	if ue.Status != 404 {
		t.Errorf("expected status 404, got %d", ue.Status)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Error("expected error to match ErrUpstream")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected body in message, got %s", err.Error())
	}
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to provided writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "component", "test").Info("hello")

		if !strings.Contains(buf.String(), "component=test") {
			t.Errorf("expected key value pair in output, got %s", buf.String())
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		tc := []struct {
			in   string
			want log.Level
		}{
			{"", log.InfoLevel},
			{"debug", log.DebugLevel},
			{"WARN", log.WarnLevel},
			{"nonsense", log.InfoLevel},
		}
		for _, tt := range tc {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateState()

	if a == b {
		t.Error("expected unique state tokens")
	}
	if strings.Contains(a, "-") || len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %q", a)
	}
}

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCommand
	defer func() { getRuntime, startCommand = origRuntime, origStart }()

	var gotName string
	var gotArgs []string
	startCommand = func(name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}

	tc := []struct {
		goos    string
		command string
		wantErr bool
	}{
		{"darwin", "open", false},
		{"linux", "xdg-open", false},
		{"windows", "rundll32", false},
		{"plan9", "", true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			gotName, gotArgs = "", nil
			getRuntime = func() string { return tt.goos }

			err := OpenBrowser("http://example.com")
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if gotName != tt.command {
				t.Errorf("expected %s, got %s", tt.command, gotName)
			}
			if gotArgs[len(gotArgs)-1] != "http://example.com" {
				t.Errorf("expected url as last argument, got %v", gotArgs)
			}
		})
	}

	t.Run("start failure", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		startCommand = func(string, ...string) error { return errors.New("no xdg-open") }

		if err := OpenBrowser("http://example.com"); err == nil {
			t.Error("expected error when command fails to start")
		}
	})
}
