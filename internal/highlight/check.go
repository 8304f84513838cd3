package highlight

import "time"

// Category identifies the rule group a check was compiled from.
type Category int

const (
	CategorySubscription Category = iota
	CategoryWhisper
	CategorySelf
	CategoryPhrase
	CategoryUser
	CategoryBadge
)

var categoryNames = [...]string{
	CategorySubscription: "subscription",
	CategoryWhisper:      "whisper",
	CategorySelf:         "self",
	CategoryPhrase:       "phrase",
	CategoryUser:         "user",
	CategoryBadge:        "badge",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Categories lists every category in evaluation order.
func Categories() []Category {
	return []Category{CategorySubscription, CategoryWhisper, CategorySelf, CategoryPhrase, CategoryUser, CategoryBadge}
}

// Matcher decides whether a check applies to a message.
type Matcher func(msg *Message) bool

// Check is one compiled rule: a predicate and the result it contributes.
// Everything a check needs is captured at compile time.
type Check struct {
	category Category
	label    string
	match    Matcher
	result   Result
}

func NewCheck(category Category, label string, match Matcher, result Result) Check {
	if match == nil {
		match = never
	}
	return Check{category: category, label: label, match: match, result: result}
}

func (c Check) Category() Category { return c.category }
func (c Check) Label() string      { return c.label }
func (c Check) Result() Result     { return c.result }

// ShowInMentions reports whether matches of this check belong in a mentions view.
func (c Check) ShowInMentions() bool { return c.result.ShowInMentions }

// Eval returns the check's result when it matches msg.
func (c Check) Eval(msg *Message) (Result, bool) {
	if c.match == nil || !c.match(msg) {
		return Result{}, false
	}
	return c.result, true
}

// Sequence is an immutable, ordered list of checks.
type Sequence struct {
	checks     []Check
	generation uint64
	builtAt    time.Time
}

func NewSequence(checks ...Check) Sequence {
	return Sequence{checks: append([]Check(nil), checks...), builtAt: time.Now()}
}

func (s Sequence) Len() int { return len(s.checks) }

// Checks returns a copy of the compiled checks.
func (s Sequence) Checks() []Check { return append([]Check(nil), s.checks...) }

// Generation is assigned by the registry on install; zero means never installed.
func (s Sequence) Generation() uint64 { return s.generation }
func (s Sequence) BuiltAt() time.Time { return s.builtAt }

// Counts reports the number of checks per category.
func (s Sequence) Counts() map[Category]int {
	counts := make(map[Category]int, len(categoryNames))
	for _, c := range Categories() {
		counts[c] = 0
	}
	for _, c := range s.checks {
		counts[c.category]++
	}
	return counts
}
