package flow

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// endTokens signal that the moderator wants the conversation to end.
var endTokens = []string{"END", "DONE", "STOP", "TERMINATE"}

// EndToken is the token the moderator is told to answer with to finish.
const EndToken = "END"

var choicePrefixes = []string{"next speaker:", "next:", "speaker:"}

// ParseModeratorChoice interprets moderator output. It returns the
// canonical member name, or end=true for an end token. Anything else,
// including a name matching more than one member, is an error wrapping
// ErrModeratorChoiceInvalid. No fuzzy matching is attempted.
func ParseModeratorChoice(raw string, members []string) (name string, end bool, err error) {
	choice := extractChoice(raw)
	if choice == "" {
		return "", false, fmt.Errorf("%w: empty answer", ErrModeratorChoiceInvalid)
	}
	for _, tok := range endTokens {
		if strings.EqualFold(choice, tok) {
			return "", true, nil
		}
	}

	var matches []string
	for _, m := range members {
		if m == choice {
			return m, false, nil
		}
		if strings.EqualFold(m, choice) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 1 {
		return matches[0], false, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrModeratorChoiceInvalid, truncate(choice, 80))
}

func extractChoice(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var obj struct {
			Next string `json:"next"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return clean(obj.Next)
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		if c := clean(line); c != "" {
			return c
		}
	}
	return ""
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`#>\"' ")
	for _, p := range choicePrefixes {
		if rest, ok := cutPrefixFold(s, p); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	s = strings.Trim(s, "*_`\"' ")
	s = strings.TrimRight(s, ".!,;:")
	return strings.TrimSpace(s)
}

// cutPrefixFold strips prefix from s, comparing rune by rune under case
// folding. Byte lengths of s and prefix may differ.
func cutPrefixFold(s, prefix string) (string, bool) {
	rest := s
	for _, pr := range prefix {
		r, size := utf8.DecodeRuneInString(rest)
		if size == 0 || !strings.EqualFold(string(r), string(pr)) {
			return s, false
		}
		rest = rest[size:]
	}
	return rest, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
