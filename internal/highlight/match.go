package highlight

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/you/gnasty-highlights/internal/core"
)

// RE2's \b only knows ASCII word characters, so the phrase edges are spelled
// out with Unicode classes. A phrase edge that is a word character needs a
// non-word neighbour; a non-word edge needs a word character or whitespace
// next to it, which is what `(\b|\s)` means around punctuation.
const (
	wordClass    = `[\p{L}\p{M}\p{N}_]`
	nonWordClass = `[^\p{L}\p{M}\p{N}_]`

	wordEdgeBefore    = `(?:^|` + nonWordClass + `)`
	wordEdgeAfter     = `(?:` + nonWordClass + `|$)`
	nonWordEdgeBefore = `(?:^|` + wordClass + `|\s)`
	nonWordEdgeAfter  = `(?:` + wordClass + `|\s|$)`
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r)
}

// wholeWord wraps a literal so it only matches on word edges.
func wholeWord(literal string) string {
	first, _ := utf8.DecodeRuneInString(literal)
	last, _ := utf8.DecodeLastRuneInString(literal)

	before, after := nonWordEdgeBefore, nonWordEdgeAfter
	if isWordRune(first) {
		before = wordEdgeBefore
	}
	if isWordRune(last) {
		after = wordEdgeAfter
	}
	return before + regexp.QuoteMeta(literal) + after
}

// compilePhrase builds the regular expression for a phrase pattern. Plain
// patterns are escaped and must appear as a whole word. It returns nil for an
// empty pattern or an invalid regex.
func compilePhrase(pattern string, isRegex, caseSensitive bool) *regexp.Regexp {
	if strings.TrimSpace(pattern) == "" {
		return nil
	}
	expr := pattern
	if !isRegex {
		expr = wholeWord(pattern)
	}
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return re
}

func never(*Message) bool { return false }

func matchText(re *regexp.Regexp) Matcher {
	if re == nil {
		return never
	}
	return func(msg *Message) bool { return re.MatchString(msg.Text) }
}

func matchSender(re *regexp.Regexp) Matcher {
	if re == nil {
		return never
	}
	return func(msg *Message) bool { return re.MatchString(msg.Sender) }
}

// badgePattern is a compiled badge rule name.
type badgePattern struct {
	id      string
	version string
	multi   bool
}

// parseBadgeName splits "set" or "set/version". ok is false for an empty set.
func parseBadgeName(name string) (badgePattern, bool) {
	name = strings.TrimSpace(name)
	id, version, found := strings.Cut(name, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		return badgePattern{}, false
	}
	if !found {
		return badgePattern{id: id, multi: true}, true
	}
	return badgePattern{id: id, version: strings.TrimSpace(version)}, true
}

func (p badgePattern) matches(b core.ChatBadge) bool {
	if !strings.EqualFold(b.ID, p.id) {
		return false
	}
	return p.multi || b.Version == p.version
}

// matchBadges scans the sender's badges in order and stops at the first hit.
func matchBadges(name string) Matcher {
	pattern, ok := parseBadgeName(name)
	if !ok {
		return never
	}
	return func(msg *Message) bool {
		for _, b := range msg.Badges {
			if pattern.matches(b) {
				return true
			}
		}
		return false
	}
}
