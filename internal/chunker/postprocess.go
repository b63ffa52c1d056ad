package chunker

import (
	"strings"
	"unicode/utf8"
)

// minChunkWords is the threshold below which a chunk is too short to stand
// alone and is carried forward into the next one.
const minChunkWords = 7

// postProcess walks the chunk texts in order, carrying forward trailing
// colon content ("declaration before a list") and undersized chunks so that
// no emitted chunk ends on a colon and none is absurdly short.
func postProcess(texts []string) []string {
	var out []string
	carry := ""

	for _, text := range texts {
		if carry != "" {
			text = carry + "\n\n" + text
			carry = ""
		}

		before, colonContent := splitTrailingColon(text)

		switch {
		case colonContent != "" && wordCount(before) >= minChunkWords:
			out = append(out, before)
			carry = colonContent
		case colonContent != "":
			carry = strings.TrimSpace(before + "\n\n" + colonContent)
		case wordCount(text) < minChunkWords:
			carry = text
		default:
			out = append(out, text)
		}
	}

	if carry != "" {
		if len(out) == 0 {
			return []string{carry}
		}
		out[len(out)-1] = out[len(out)-1] + "\n\n" + carry
	}
	return out
}

// splitTrailingColon strips trailing colon-bearing sentences repeatedly
// until the remainder does not end in a colon. colonContent preserves the
// stripped sentences in their original order.
func splitTrailingColon(text string) (before, colonContent string) {
	before = strings.TrimSpace(text)
	for strings.HasSuffix(before, ":") || strings.HasSuffix(before, "：") {
		cut := lastSentenceStart(before)
		colonContent = strings.TrimSpace(before[cut:]) + separator(colonContent) + colonContent
		before = strings.TrimSpace(before[:cut])
		if before == "" {
			break
		}
	}
	return before, colonContent
}

// lastSentenceStart returns the index where the trailing sentence begins:
// just after the last period or newline before the end.
func lastSentenceStart(s string) int {
	trimmed := strings.TrimRight(s, ":： \t\n")
	cut := 0
	if i := strings.LastIndexAny(trimmed, ".\n؟!"); i >= 0 {
		_, size := utf8.DecodeRuneInString(trimmed[i:])
		cut = i + size
	}
	return cut
}

func separator(rest string) string {
	if rest == "" {
		return ""
	}
	return " "
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
