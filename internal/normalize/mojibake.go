package normalize

import (
	"regexp"
	"strings"
)

type replacement struct {
	from string
	to   string
}

// mojibakeTable repairs UTF-8 text that was stored upstream and then read
// back as Latin-1. Entries are ordered most-specific first; longer
// artifact sequences must sit above their prefixes. The capital vowels
// whose second UTF-8 byte falls in 0x80..0x9F show up in three shapes
// depending on what the intermediate system did with that byte: kept as a
// control (handled by controlPairRE below), mapped through cp1252
// punctuation (the ‰ ' " š œ entries), or dropped outright (the ÃA, ÃT
// and bare Ã entries).
var mojibakeTable = []replacement{
	{"Ã", "Á"},
	{"Ã‰", "É"},
	{"Ã‘", "Ñ"},
	{"Ã", "Ñ"},
	{"Ã'", "Ñ"},
	{"Ã“", "Ó"},
	{"Ãš", "Ú"},
	{"Ãœ", "Ü"},
	{"Ã±", "ñ"},
	{"Ã¡", "á"},
	{"Ã©", "é"},
	{"Ã­", "í"},
	{"Ã³", "ó"},
	{"Ãº", "ú"},
	{"Ã¼", "ü"},
	{"ÃA", "ÍA"},
	{"ÃT", "ÁT"},
	{"Â°", "°"},
	{"Â¿", "¿"},
	{"Â ", " "},
	{"â€˜", "'"},
	{"â€™", "'"},
	{"â€œ", `"`},
	{"â€", `"`},
}

// controlPairRE matches Ã followed by a C1 control, the raw form of a
// double-encoded capital vowel whose control byte survived intact.
var controlPairRE = regexp.MustCompile("Ã[-]")

var controlRepairs = map[rune]string{
	0x81: "Á",
	0x89: "É",
	0x8d: "Í",
	0x91: "Ñ",
	0x93: "Ó",
	0x9a: "Ú",
	0x9c: "Ü",
}

// RepairMojibake rewrites double-encoding artifacts back to the intended
// Spanish characters. The literal table runs first, then the control-pair
// pass, then any leftover Ã becomes Ó (the -CIÓN suffix family loses its
// cp1252 quote to HTML sanitizers more often than any other pattern).
// The function is idempotent: no replacement emits text another entry
// matches.
func RepairMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂâ") {
		return s
	}
	for _, r := range mojibakeTable {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	s = controlPairRE.ReplaceAllStringFunc(s, func(m string) string {
		pair := []rune(m)
		if fixed, ok := controlRepairs[pair[1]]; ok {
			return fixed
		}
		return m
	})
	return strings.ReplaceAll(s, "Ã", "Ó")
}
