package domain

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestInvocationMode_Valid(t *testing.T) {
	for _, m := range []InvocationMode{ModeDefault, ModeClear, ModeResume} {
		if !m.Valid() {
			t.Errorf("expected %q to be valid", m)
		}
	}
	if InvocationMode("restart").Valid() {
		t.Error("expected unknown mode to be invalid")
	}
}

func TestResumeToken_RoundTrip(t *testing.T) {
	tok := ResumeToken{RunID: "7c6a:run", Offset: 42}

	got, err := ParseResumeToken(tok.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tok {
		t.Errorf("expected %+v, got %+v", tok, got)
	}
}

func TestParseResumeToken_Invalid(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := map[string]string{
		"not base64":      "%%%",
		"no separator":    enc("run42"),
		"empty run":       enc(":4"),
		"bad offset":      enc("run:x"),
		"negative offset": enc("run:-1"),
	}
	for name, raw := range tests {
		if _, err := ParseResumeToken(raw); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestContinuation_Validate(t *testing.T) {
	next := 3
	if err := (Continuation{NeedsContinuation: true, NextOffset: &next}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Continuation{}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Continuation{NeedsContinuation: true}).Validate(); !errors.Is(err, ErrContinuationContract) {
		t.Errorf("expected ErrContinuationContract, got %v", err)
	}
}
