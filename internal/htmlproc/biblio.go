package htmlproc

import "strings"

// biblioLabels maps the fixed Arabic labels found on preface pages to the
// metadata fields they populate.
var biblioLabels = map[string]string{
	"المحقق":                 "editor",
	"الطبعة":                 "edition",
	"الناشر":                 "publisher",
	"عدد الأجزاء":            "num_volumes",
	"عدد الصفحات":            "num_pages",
	"تاريخ النشر بالشاملة":   "shamela_pub_date",
	"المؤلف":                 "author_full",
}

// parseBiblio scans a non-content page's text for label: value lines and
// returns the recognized fields keyed by their English names.
func parseBiblio(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if key, ok := biblioLabels[label]; ok {
			if _, seen := fields[key]; !seen {
				fields[key] = value
			}
		}
	}
	return fields
}
