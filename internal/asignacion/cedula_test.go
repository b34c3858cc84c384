package asignacion

import "testing"

func TestCleanCedula(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{" 12.345.678 ", "12345678"},
		{"12-345-678", "12345678"},
		{"1 2 3 4 5 6 7", "1234567"},
		{"12345678", "12345678"},
	}

	for _, tt := range tests {
		if got := CleanCedula(tt.in); got != tt.want {
			t.Errorf("CleanCedula(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidCedula(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"1234567", true},
		{"1234567890", true},
		{"123456", false},
		{"12345678901", false},
		{"12a45678", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidCedula(tt.in); got != tt.want {
			t.Errorf("ValidCedula(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFilterCedulas(t *testing.T) {
	t.Parallel()

	t.Run("Drops the roster header row", func(t *testing.T) {
		got := FilterCedulas([]string{"CEDULA", "12345678", "87654321"})
		if len(got) != 2 || got[0] != "12345678" || got[1] != "87654321" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("Keeps a first row that is a real cedula", func(t *testing.T) {
		got := FilterCedulas([]string{"12345678", "87654321"})
		if len(got) != 2 {
			t.Errorf("got %v, a leading cedula must survive", got)
		}
	})

	t.Run("Cleans separators and validates", func(t *testing.T) {
		got := FilterCedulas([]string{"No. Documento", " 12.345.678 ", "corto", "123", "9876543-21"})
		want := []string{"12345678", "987654321"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("cedula[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("Deduplicates preserving first occurrence", func(t *testing.T) {
		got := FilterCedulas([]string{"12345678", "87654321", "12.345.678"})
		if len(got) != 2 || got[0] != "12345678" || got[1] != "87654321" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		if got := FilterCedulas(nil); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})
}
