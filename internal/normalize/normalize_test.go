package normalize

import "testing"

func TestLatin1(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"Plain ASCII", []byte("DOCENTE"), "DOCENTE"},
		{"Enye", []byte{0xd1}, "Ñ"},
		{"Accented lowercase", []byte{0x65, 0xe9, 0x69}, "eéi"},
		{"Full word", []byte{0x43, 0x41, 0x54, 0x45, 0x47, 0x4f, 0x52, 0xcd, 0x41}, "CATEGORÍA"},
		{"Empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Latin1(tt.input)
			if got != tt.want {
				t.Errorf("Latin1(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRepairMojibake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Dropped control before A and T", "CIRUGÃA PEDIÃTRICA", "CIRUGÍA PEDIÁTRICA"},
		{"Apostrophe enye", "NIÃ'O", "NIÑO"},
		{"Per-mille acute E", "RECIÃ‰N", "RECIÉN"},
		{"Control byte kept", "FÃSICA", "FÍSICA"},
		{"Control acute A", "MATEMÃTICAS", "MATEMÁTICAS"},
		{"Control enye", "AÃO", "AÑO"},
		{"Curly quote enye", "AÃ‘O", "AÑO"},
		{"Lowercase enye", "Ã±", "ñ"},
		{"Lowercase acute a", "Ã¡", "á"},
		{"Lowercase acute e", "Ã©", "é"},
		{"Soft hyphen acute i", "QUÃ­MICA", "QUíMICA"},
		{"Lowercase acute o", "Ã³", "ó"},
		{"Lowercase acute u", "Ãº", "ú"},
		{"Bare A-tilde falls back to O", "GESTIÃN", "GESTIÓN"},
		{"Suffix cion", "INVESTIGACIÃN", "INVESTIGACIÓN"},
		{"Degree sign", "25Â°", "25°"},
		{"Inverted question mark", "Â¿", "¿"},
		{"Left smart quote", "â€œcita", `"cita`},
		{"Right smart quote", "citaâ€", `cita"`},
		{"Smart apostrophes", "â€˜â€™", "''"},
		{"Already clean", "DIRECCIÓN DE TESIS", "DIRECCIÓN DE TESIS"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepairMojibake(tt.input)
			if got != tt.want {
				t.Errorf("RepairMojibake(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRepairMojibakeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"CIRUGÃA PEDIÃTRICA",
		"NIÃ'O",
		"RECIÃ‰N",
		"GESTIÃN",
		"FÃSICA",
		"â€œmixtaâ€ con Ã± y Ã¡",
		"texto limpio sin artefactos",
	}

	for _, input := range inputs {
		once := RepairMojibake(input)
		twice := RepairMojibake(once)
		if once != twice {
			t.Errorf("RepairMojibake not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Lower acute", "matem&aacute;ticas", "matemáticas"},
		{"Upper acute", "&Aacute;REA", "ÁREA"},
		{"Enye", "ni&ntilde;o y NI&Ntilde;O", "niño y NIÑO"},
		{"Ampersand", "I &amp; D", "I & D"},
		{"Angle brackets", "&lt;tabla&gt;", "<tabla>"},
		{"Non-breaking space", "a&nbsp;b", "a b"},
		{"Quote", "&quot;tesis&quot;", `"tesis"`},
		{"Unknown entity passes through", "&copy; 2004", "&copy; 2004"},
		{"No entities", "sin entidades", "sin entidades"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeEntities(tt.input)
			if got != tt.want {
				t.Errorf("DecodeEntities(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Bold wrapper", "<b>CEDULA</b>", " CEDULA "},
		{"Nested font", `<font size="1"><b>HORAS</b></font>`, " HORAS "},
		{"Break between words", "uno<br>dos", "uno dos"},
		{"No tags", "sin etiquetas", "sin etiquetas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripTags(tt.input)
			if got != tt.want {
				t.Errorf("StripTags(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Newlines and tabs", "a\n\t  b", "a b"},
		{"Non-breaking space", "a b", "a b"},
		{"Stray control", "ab", "a b"},
		{"Leading and trailing", "  centrado  ", "centrado"},
		{"Only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CollapseWhitespace(tt.input)
			if got != tt.want {
				t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCellText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Tagged entity cell", "<b>MATEM&Aacute;TICAS</b>", "MATEMÁTICAS"},
		{"Mojibake cell", "<td>CIRUGÃA\n</td>", "CIRUGÍA"},
		{"Padded cell", "  <font>  2026 - 01  </font>  ", "2026 - 01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CellText(tt.input)
			if got != tt.want {
				t.Errorf("CellText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
