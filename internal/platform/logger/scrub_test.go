package logger

import (
	"strings"
	"testing"
)

func TestScrubberFieldClasses(t *testing.T) {
	s := &scrubber{salt: "pepper", maxLen: 8}
	got := s.fields([]interface{}{
		"api_token", "abc",
		"contributor_id", "6f1c",
		"data", "title,doi\nA,10.1/x\n",
		"detail", "0123456789abc",
		"csv_id", 7,
	})
	if got[1] != "[REDACTED]" {
		t.Fatalf("token: want=[REDACTED] got=%v", got[1])
	}
	if h, _ := got[3].(string); !strings.HasPrefix(h, "hash:") || len(h) != len("hash:")+12 {
		t.Fatalf("contributor: want=hash:<12> got=%v", got[3])
	}
	if got[5] != "[19 bytes]" {
		t.Fatalf("data: want=[19 bytes] got=%v", got[5])
	}
	if got[7] != "01234567…" {
		t.Fatalf("detail: want clipped got=%v", got[7])
	}
	if got[9] != 7 {
		t.Fatalf("csv_id: want=7 got=%v", got[9])
	}
}

func TestScrubberKeepsDanglingKey(t *testing.T) {
	s := &scrubber{}
	got := s.fields([]interface{}{"a", 1, "orphan"})
	if len(got) != 3 || got[2] != "orphan" {
		t.Fatalf("fields: want=[a 1 orphan] got=%v", got)
	}
}

func TestPseudonymIsStableAndSalted(t *testing.T) {
	a := (&scrubber{salt: "x"}).pseudonym("id-1")
	b := (&scrubber{salt: "x"}).pseudonym("id-1")
	c := (&scrubber{salt: "y"}).pseudonym("id-1")
	if a != b || a == c {
		t.Fatalf("pseudonym: want stable per salt got a=%s b=%s c=%s", a, b, c)
	}
}

func TestNilScrubberPassesThrough(t *testing.T) {
	var s *scrubber
	kv := []interface{}{"token", "raw"}
	if got := s.fields(kv); got[1] != "raw" {
		t.Fatalf("nil scrubber: want=raw got=%v", got[1])
	}
}
