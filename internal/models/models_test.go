package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewSegment(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		end       float64
		source    string
		wantParam string
	}{
		{"valid", 1, 2, "a.txt", ""},
		{"zero length", 3, 3, "a.txt", ""},
		{"negative start", -1, 2, "a.txt", "start"},
		{"end before start", 5, 2, "a.txt", "end"},
		{"empty source", 0, 1, "", "source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSegment("hello there friend", tt.start, tt.end, tt.source)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", ve.Param, tt.wantParam)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"a b  c\td\ne", 5},
	}
	for _, tt := range tests {
		if got := WordCount(tt.text); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestDependencyError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDependencyError("embedder", cause)
	if !errors.Is(err, ErrDependency) {
		t.Error("expected errors.Is(err, ErrDependency)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrapped")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("dependency error must not match ErrValidation")
	}
	wrapped := fmt.Errorf("query: %w", err)
	if !IsDependency(wrapped) {
		t.Error("expected IsDependency through wrapping")
	}
	if NewDependencyError("embedder", nil) != nil {
		t.Error("nil cause should give nil error")
	}
	if again := NewDependencyError("index", err); again != err {
		t.Error("already wrapped dependency error should be returned as-is")
	}
}

func TestEnsureResult_String(t *testing.T) {
	if EnsureCreated.String() != "created" {
		t.Errorf("got %q", EnsureCreated.String())
	}
	if EnsureAlreadyExisted.String() != "already_existed" {
		t.Errorf("got %q", EnsureAlreadyExisted.String())
	}
}
