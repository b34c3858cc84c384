package normalize

import "strings"

// entityReplacer expands the closed set of entities the portal actually
// emits. Anything outside this table passes through verbatim, including
// numeric references, so malformed markup stays visible downstream.
var entityReplacer = strings.NewReplacer(
	"&aacute;", "á",
	"&Aacute;", "Á",
	"&eacute;", "é",
	"&Eacute;", "É",
	"&iacute;", "í",
	"&Iacute;", "Í",
	"&oacute;", "ó",
	"&Oacute;", "Ó",
	"&uacute;", "ú",
	"&Uacute;", "Ú",
	"&uuml;", "ü",
	"&Uuml;", "Ü",
	"&ntilde;", "ñ",
	"&Ntilde;", "Ñ",
	"&amp;", "&",
	"&quot;", `"`,
	"&lt;", "<",
	"&gt;", ">",
	"&nbsp;", " ",
)

// DecodeEntities expands the fixed entity table. Unknown &...; sequences
// are left untouched.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}
