package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestMarshalAppendsNewline(t *testing.T) {
	data, err := Marshal(Response{Type: "response", Seq: 1, Success: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("expected trailing newline, got %q", data)
	}
	var r Response
	if err := json.Unmarshal(bytes.TrimRight(data, "\n"), &r); err != nil {
		t.Fatalf("round-trip unmarshal: %v", err)
	}
	if r.Seq != 1 || !r.Success {
		t.Fatalf("unexpected round-trip value: %+v", r)
	}
}

func TestEscapeString(t *testing.T) {
	cases := map[string]string{
		`hello`:        `hello`,
		`a"b`:          `a\"b`,
		"a\nb":         `a\nb`,
		`a\b`:          `a\\b`,
	}
	for in, want := range cases {
		if got := EscapeString(in); got != want {
			t.Errorf("EscapeString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFramerFeedSingleLine(t *testing.T) {
	var f Framer
	lines, err := f.Feed([]byte("hello\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(lines) != 1 || string(lines[0]) != "hello" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestFramerFeedAcrossCalls(t *testing.T) {
	var f Framer
	lines, err := f.Feed([]byte("abc"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no complete lines yet, got %v", lines)
	}

	lines, err = f.Feed([]byte("def\nghi\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(lines) != 2 || string(lines[0]) != "abcdef" || string(lines[1]) != "ghi" {
		t.Fatalf("unexpected lines: %v", stringSlice(lines))
	}
}

func TestFramerOverrun(t *testing.T) {
	var f Framer
	big := bytes.Repeat([]byte("x"), MaxMessageSize+1)
	_, err := f.Feed(big)
	if err != ErrOverrun {
		t.Fatalf("expected ErrOverrun, got %v", err)
	}
}

func stringSlice(b [][]byte) []string {
	out := make([]string, len(b))
	for i, v := range b {
		out[i] = string(v)
	}
	return out
}
