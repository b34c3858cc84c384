package delta

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
)

func TestNewLogValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewLog(nil, "deltas", "srv-1"); err == nil {
		t.Error("Expected error for nil client")
	}
}

func TestNormalizePrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "deltas/", want: "deltas"},
		{in: "/deltas", want: "deltas"},
		{in: "  deltas/docs/  ", want: "deltas/docs"},
		{in: "///", want: ""},
	}
	for _, tt := range tests {
		if got := normalizePrefix(tt.in); got != tt.want {
			t.Errorf("normalizePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectKeyShape(t *testing.T) {
	t.Parallel()

	l := &Log{prefix: "deltas", instanceID: "srv-1"}
	key := l.objectKey()

	if !strings.HasPrefix(key, "deltas/srv-1/") {
		t.Errorf("Key %q missing prefix/instance", key)
	}
	if !strings.HasSuffix(key, ".json") {
		t.Errorf("Key %q missing .json suffix", key)
	}
	if ts, ok := parseEntryTimestamp(key); !ok || ts <= 0 {
		t.Errorf("Key %q has no parseable timestamp", key)
	}
}

func TestParseEntryTimestamp(t *testing.T) {
	t.Parallel()

	ts, ok := parseEntryTimestamp("deltas/srv-1/1737382200000000000-abc.json")
	if !ok || ts != 1737382200000000000 {
		t.Errorf("parseEntryTimestamp = (%d, %v)", ts, ok)
	}

	if _, ok := parseEntryTimestamp("deltas/srv-1/not-a-timestamp.json"); ok {
		t.Error("Expected parse failure for non-numeric basename")
	}
}

func TestEntryRoundTrip(t *testing.T) {
	t.Parallel()

	docs := []asignacion.FacultyDocument{
		{
			Cedula: "12345678",
			Period: asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"},
			Undergraduate: []asignacion.CourseActivity{
				{Codigo: "111045C", Nombre: "CÁLCULO I", Horas: "64"},
			},
		},
	}
	payload, err := json.Marshal(docs)
	if err != nil {
		t.Fatalf("Marshal payload: %v", err)
	}

	entry := Entry{Type: EntryTypeDocuments, CreatedAt: 1737382200, Payload: payload}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal entry: %v", err)
	}

	var parsed Entry
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal entry: %v", err)
	}
	if parsed.Type != EntryTypeDocuments {
		t.Errorf("Type = %q", parsed.Type)
	}

	var restored []asignacion.FacultyDocument
	if err := json.Unmarshal(parsed.Payload, &restored); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if len(restored) != 1 || restored[0].Cedula != "12345678" {
		t.Errorf("Round trip lost documents: %+v", restored)
	}
	if len(restored[0].Undergraduate) != 1 {
		t.Errorf("Round trip lost activities")
	}
}
