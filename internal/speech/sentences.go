package speech

import "strings"

// SplitSentences breaks text on '.', '!' and '?'. A trailing fragment
// without terminal punctuation gets a period.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		s := strings.TrimSpace(b.String())
		b.Reset()
		if s == "" || strings.Trim(s, ".!? ") == "" {
			return
		}
		sentences = append(sentences, s)
	}

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// keep runs like "?!" or "..." together
		if i+1 < len(runes) && strings.ContainsRune(".!?", runes[i+1]) {
			continue
		}
		// decimals such as 3.5
		if r == '.' && i > 0 && i+1 < len(runes) && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
			continue
		}
		flush()
	}

	if tail := strings.TrimSpace(b.String()); tail != "" && strings.Trim(tail, ".!? ") != "" {
		b.Reset()
		sentences = append(sentences, tail+".")
	}
	return sentences
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
