package catalog

import (
	"strings"
	"testing"
)

func TestNormalizeSense(t *testing.T) {
	s := Sense{POS: " Verb ", Definition: "  To  LEAVE\r\nbehind "}
	expected := "verb\nto leave behind"
	normalized := NormalizeSense(s)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestSenseID(t *testing.T) {
	t.Run("has prefix and fixed length", func(t *testing.T) {
		id := SenseID(Sense{POS: "noun", Definition: "a result"})
		if !strings.HasPrefix(id, "s-") || len(id) != 14 {
			t.Errorf("Expected an id like 's-' + 12 hex chars, but got '%s'", id)
		}
	})

	t.Run("id is deterministic", func(t *testing.T) {
		s1 := Sense{Definition: "Test"}
		s2 := Sense{Definition: "Test"}
		if SenseID(s1) != SenseID(s2) {
			t.Error("Expected ids for identical senses to be the same")
		}
	})

	t.Run("normalization produces same id", func(t *testing.T) {
		s1 := Sense{POS: "verb", Definition: "  to leave behind "}
		s2 := Sense{POS: "Verb", Definition: "To leave   behind"}
		if SenseID(s1) != SenseID(s2) {
			t.Error("Expected ids to be the same after normalization, but they were different.")
		}
	})

	t.Run("part of speech separates senses", func(t *testing.T) {
		s1 := Sense{POS: "noun", Definition: "a drink"}
		s2 := Sense{POS: "verb", Definition: "a drink"}
		if SenseID(s1) == SenseID(s2) {
			t.Error("Expected different ids for different parts of speech")
		}
	})
}
