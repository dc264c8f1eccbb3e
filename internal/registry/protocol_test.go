package registry

import (
	"testing"
	"time"
)

func TestDispatchRegisterThenQuery(t *testing.T) {
	st := NewStore()

	if got := Dispatch(st, "BE|report|60|11|5d41402abc4b2a76b9719d911017c592"); got != "OK" {
		t.Fatalf("register reply = %q, want OK", got)
	}
	if got := Dispatch(st, "KI|report"); got != "11|5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("query reply = %q", got)
	}
	if got := Dispatch(st, "KI|unknown"); got != "0|" {
		t.Errorf("unknown id reply = %q, want 0|", got)
	}
}

func TestDispatchMalformed(t *testing.T) {
	st := NewStore()
	Dispatch(st, "BE|keep|60|4|cafe")

	cases := []string{
		"",
		"XX|foo",
		"BE|only|three",
		"BE|f|sixty|4|cafe",
		"BE|f|60|four|cafe",
		"BE|f|60|4|cafe|extra",
		"KI",
		"KI|a|b",
	}
	for _, line := range cases {
		if got := Dispatch(st, line); got != "ERR" {
			t.Errorf("Dispatch(%q) = %q, want ERR", line, got)
		}
	}

	// Malformed requests must not disturb existing records.
	if got := Dispatch(st, "KI|keep"); got != "4|cafe" {
		t.Errorf("existing record damaged by malformed requests: %q", got)
	}
}

func TestDispatchQueryExpired(t *testing.T) {
	st := NewStore()
	base := time.Now()
	st.now = func() time.Time { return base }

	Dispatch(st, "BE|f|1|4|cafe")

	st.now = func() time.Time { return base.Add(2 * time.Second) }
	if got := Dispatch(st, "KI|f"); got != "0|" {
		t.Errorf("expired query reply = %q, want 0|", got)
	}
}
