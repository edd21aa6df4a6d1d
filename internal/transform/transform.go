// Package transform rewrites STT transcripts into injectable text and key
// events, applying a closed set of voice-command rules (spec §4.8) plus a
// handful of automatic capitalization rules. State persists across segments
// of one recording session and is cleared by Reset.
package transform

import (
	"strconv"
	"strings"
)

// EventKind distinguishes a literal text emission from a keyboard action.
type EventKind int

const (
	EventText EventKind = iota
	EventKeyAction
)

// TranscriptionEvent is one unit of output. Text already carries whatever
// leading/trailing space it needs — callers concatenate Text fields of
// EventText events in order; EventKeyAction carries no text, only Key.
type TranscriptionEvent struct {
	Kind EventKind
	Text string
	Key  string
}

// Transform holds the state (spec §4.8) that persists across segments of a
// single recording session: capitalization mode, quote polarity, and
// sentence-boundary tracking.
type Transform struct {
	capsOn         bool // "caps on" / "caps off" — uppercase all subsequent words
	quoteOpen      bool // bare "quote" toggle
	capitalizeNext bool // pending sentence-initial or post-quote capitalization
	afterAbbrev    bool // last token was an abbreviation ending in "."
	suppressSpace  bool // next emission should not carry its usual leading space
}

// spacePrefix returns the leading space for the next emitted token, or ""
// if the previous token (an opening bracket/quote) suppressed it. Always
// consumes the pending suppression.
func (t *Transform) spacePrefix() string {
	if t.suppressSpace {
		t.suppressSpace = false
		return ""
	}
	return " "
}

// New returns a Transform ready for a fresh session; the first word of a
// session is capitalized as if following a sentence break, and carries no
// leading space (spec §8: "42 items", not " 42 items").
func New() *Transform {
	return &Transform{capitalizeNext: true, suppressSpace: true}
}

// Reset clears all persisted state (spec §4.8: "resets when recording stops").
func (t *Transform) Reset() {
	*t = Transform{capitalizeNext: true, suppressSpace: true}
}

// Apply runs the transform over one STT segment's text and returns the
// resulting event sequence. Deterministic given the state at entry.
func (t *Transform) Apply(text string) []TranscriptionEvent {
	words := strings.Fields(text)
	var events []TranscriptionEvent

	for i := 0; i < len(words); {
		if n, ev := t.matchRule(words, i); n > 0 {
			events = append(events, ev...)
			i += n
			continue
		}
		if n, ev, ok := t.matchNumberPhrase(words, i); ok {
			events = append(events, ev)
			i += n
			continue
		}
		if n, ev, ok := t.matchOneShotCaps(words, i); ok {
			events = append(events, ev)
			i += n
			continue
		}
		events = append(events, t.emitWord(words[i]))
		i++
	}

	return events
}

// matchRule tries the longest phrase first so multi-word triggers (e.g.
// "question mark", "open quote") take priority over any single-word
// reading of their first word.
func (t *Transform) matchRule(words []string, i int) (int, []TranscriptionEvent) {
	for length := maxRuleWords; length >= 1; length-- {
		if i+length > len(words) {
			continue
		}
		key := strings.ToLower(strings.Join(words[i:i+length], " "))
		if rule, ok := rules[key]; ok {
			return length, rule(t)
		}
	}
	return 0, nil
}

// matchNumberPhrase handles the two variable-length Numbers triggers (spec
// §4.8): an explicit "number <words...>" phrase, and the bare year pattern
// ("nineteen fifty" with no "number" prefix). Returns the word count
// consumed, the single combined text event, and whether a match was found.
func (t *Transform) matchNumberPhrase(words []string, i int) (int, TranscriptionEvent, bool) {
	if strings.EqualFold(words[i], "number") {
		end := i + 1
		for end < len(words) {
			if _, ok := numberWords[strings.ToLower(words[end])]; !ok {
				break
			}
			end++
		}
		if end > i+1 {
			if n, ok := ParseNumberWords(words[i+1 : end]); ok {
				t.capitalizeNext = false
				return end - i, textEvent(t.spacePrefix() + FormatNumber(n)), true
			}
		}
		return 0, TranscriptionEvent{}, false
	}

	if i+1 < len(words) {
		if year, ok := ParseYearPattern(words[i], words[i+1]); ok {
			t.capitalizeNext = false
			return 2, textEvent(t.spacePrefix() + FormatNumber(year)), true
		}
	}
	return 0, TranscriptionEvent{}, false
}

// matchOneShotCaps handles "all caps <word>" and "capital <word>" (spec
// §4.8 Capitalization modes): a single-word effect, distinct from the
// persistent "caps on"/"caps off" mode.
func (t *Transform) matchOneShotCaps(words []string, i int) (int, TranscriptionEvent, bool) {
	if strings.EqualFold(words[i], "capital") && i+1 < len(words) {
		return 2, t.emitWord(capitalizeFirst(words[i+1])), true
	}
	if i+2 < len(words) && strings.EqualFold(words[i], "all") && strings.EqualFold(words[i+1], "caps") {
		ev := t.emitWord(words[i+2])
		ev.Text = strings.ToUpper(ev.Text)
		return 3, ev, true
	}
	return 0, TranscriptionEvent{}, false
}

// emitWord applies the automatic rules (lone "i" -> "I", sentence-initial
// capitalization, abbreviation-period exception, caps-on mode) to one
// ordinary word and returns it as a text event with its leading space.
func (t *Transform) emitWord(word string) TranscriptionEvent {
	lower := strings.ToLower(word)
	out := word

	if lower == "i" {
		out = "I"
	} else if t.capitalizeNext {
		out = capitalizeFirst(word)
	}

	if t.capsOn {
		out = strings.ToUpper(out)
	}

	t.capitalizeNext = false
	t.afterAbbrev = strings.HasSuffix(out, ".") && isAbbreviation(lower)

	return textEvent(t.spacePrefix() + out)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func isAbbreviation(lower string) bool {
	_, ok := abbreviations[lower]
	return ok
}

func textEvent(s string) TranscriptionEvent {
	return TranscriptionEvent{Kind: EventText, Text: s}
}

func keyEvent(key string) TranscriptionEvent {
	return TranscriptionEvent{Kind: EventKeyAction, Key: key}
}

// closeSymbol emits sym with no leading space, suppressing the space that
// would otherwise precede it (spec §4.8: close-class brackets/punctuation).
// It also consumes any pending suppression from an immediately preceding
// opener (e.g. "open quote close quote" with no content between them).
func closeSymbol(t *Transform, sym string) []TranscriptionEvent {
	t.suppressSpace = false
	return []TranscriptionEvent{textEvent(sym)}
}

// openSymbol emits sym with its normal leading space, then marks the next
// emission to suppress its own leading space (spec §4.8: open-class
// brackets/quotes suppress the *following* space, not the preceding one).
func openSymbol(t *Transform, sym string) []TranscriptionEvent {
	ev := textEvent(t.spacePrefix() + sym)
	t.suppressSpace = true
	return []TranscriptionEvent{ev}
}

// ruleFunc executes a matched trigger phrase, mutating t's state as needed,
// and returns the events to emit.
type ruleFunc func(t *Transform) []TranscriptionEvent

const maxRuleWords = 3

var rules map[string]ruleFunc

func init() {
	rules = map[string]ruleFunc{}

	punctuation := map[string]string{
		"comma":                ",",
		"period":               ".",
		"question mark":        "?",
		"exclamation point":    "!",
		"exclamation mark":     "!",
		"colon":                ":",
		"semicolon":            ";",
		"dash":                 "-",
		"hyphen":               "-",
		"ellipsis":             "...",
	}
	for phrase, sym := range punctuation {
		sym := sym
		rules[phrase] = func(t *Transform) []TranscriptionEvent {
			t.capitalizeNext = sym == "." || sym == "?" || sym == "!"
			t.afterAbbrev = false
			return closeSymbol(t, sym)
		}
	}

	brackets := map[string]struct {
		sym    string
		opener bool
	}{
		"open parenthesis":   {"(", true},
		"open parentheses":   {"(", true},
		"close parenthesis":  {")", false},
		"close parentheses":  {")", false},
		"open bracket":       {"[", true},
		"open brackets":      {"[", true},
		"close bracket":      {"]", false},
		"close brackets":     {"]", false},
		"open brace":         {"{", true},
		"open braces":        {"{", true},
		"close brace":        {"}", false},
		"close braces":       {"}", false},
	}
	for phrase, b := range brackets {
		b := b
		rules[phrase] = func(t *Transform) []TranscriptionEvent {
			if b.opener {
				return openSymbol(t, b.sym)
			}
			return closeSymbol(t, b.sym)
		}
	}

	rules["quote"] = func(t *Transform) []TranscriptionEvent {
		t.quoteOpen = !t.quoteOpen
		if t.quoteOpen {
			t.capitalizeNext = true
			return openSymbol(t, `"`)
		}
		return closeSymbol(t, `"`)
	}
	rules["open quote"] = func(t *Transform) []TranscriptionEvent {
		t.quoteOpen = true
		t.capitalizeNext = true
		return openSymbol(t, `"`)
	}
	rules["close quote"] = func(t *Transform) []TranscriptionEvent {
		t.quoteOpen = false
		return closeSymbol(t, `"`)
	}
	rules["unquote"] = func(t *Transform) []TranscriptionEvent {
		t.quoteOpen = false
		return closeSymbol(t, `"`)
	}

	symbols := map[string]string{
		"dollar sign":  "$",
		"percent sign": "%",
		"at sign":      "@",
		"ampersand":    "&",
		"asterisk":     "*",
		"hash":         "#",
		"pound":        "#",
		"slash":        "/",
		"backslash":    `\`,
		"plus":         "+",
		"equals":       "=",
		"times":        "x",
	}
	for phrase, sym := range symbols {
		sym := sym
		rules[phrase] = func(t *Transform) []TranscriptionEvent {
			t.capitalizeNext = false
			return []TranscriptionEvent{textEvent(t.spacePrefix() + sym)}
		}
	}

	for phrase, repl := range abbreviations {
		repl := repl
		rules[phrase] = func(t *Transform) []TranscriptionEvent {
			t.afterAbbrev = true
			t.capitalizeNext = false
			return []TranscriptionEvent{textEvent(t.spacePrefix() + capitalizeFirst(repl))}
		}
	}

	rules["new line"] = func(t *Transform) []TranscriptionEvent {
		t.capitalizeNext = true
		t.suppressSpace = false
		return []TranscriptionEvent{textEvent("\n")}
	}
	rules["new paragraph"] = func(t *Transform) []TranscriptionEvent {
		t.capitalizeNext = true
		t.suppressSpace = false
		return []TranscriptionEvent{textEvent("\n\n")}
	}
	rules["tab"] = func(t *Transform) []TranscriptionEvent {
		t.suppressSpace = false
		return []TranscriptionEvent{textEvent("\t")}
	}

	rules["caps on"] = func(t *Transform) []TranscriptionEvent {
		t.capsOn = true
		return nil
	}
	rules["caps off"] = func(t *Transform) []TranscriptionEvent {
		t.capsOn = false
		return nil
	}

	keyActions := map[string]string{
		"backspace":   "Backspace",
		"enter":       "Enter",
		"escape":      "Escape",
		"control c":   "Ctrl+C",
		"super right": "Super_R",
	}
	for phrase, key := range keyActions {
		key := key
		rules[phrase] = func(t *Transform) []TranscriptionEvent {
			return []TranscriptionEvent{keyEvent(key)}
		}
	}
}

var abbreviations = map[string]string{
	"mister":    "Mr.",
	"missus":    "Mrs.",
	"doctor":    "Dr.",
	"professor": "Prof.",
}

// numberWords maps spoken number words to their digit value, used by the
// "number <words>" trigger and by year-pattern detection ("nineteen fifty").
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	"hundred": 100, "thousand": 1000,
}

// ParseNumberWords converts a run of spoken number words (as would follow
// "number") into its integer value, e.g. ["forty", "two"] -> 42. It returns
// ok=false if any word isn't a recognized number word.
func ParseNumberWords(words []string) (int, bool) {
	total, current := 0, 0
	for _, w := range words {
		v, ok := numberWords[strings.ToLower(w)]
		if !ok {
			return 0, false
		}
		switch {
		case v == 100:
			if current == 0 {
				current = 1
			}
			current *= v
		case v == 1000:
			if current == 0 {
				current = 1
			}
			total += current * v
			current = 0
		default:
			current += v
		}
	}
	return total + current, true
}

// ParseYearPattern detects the "nineteen fifty" style year pattern: two
// number words, each representing a value in [10,99], concatenated as a
// four-digit year (spec §4.8 Numbers: "nineteen fifty" (year pattern)).
func ParseYearPattern(a, b string) (int, bool) {
	va, ok := numberWords[strings.ToLower(a)]
	if !ok || va < 10 || va > 99 {
		return 0, false
	}
	vb, ok := numberWords[strings.ToLower(b)]
	if !ok || vb < 10 || vb > 99 {
		return 0, false
	}
	return va*100 + vb, true
}

// FormatNumber renders n as its decimal string, used when substituting a
// parsed number phrase back into the output stream.
func FormatNumber(n int) string {
	return strconv.Itoa(n)
}
