package settings

import "time"

// DefaultItemsDelay is the items-changed coalescing window for rule lists.
const DefaultItemsDelay = 100 * time.Millisecond

// Phrase is a text pattern rule. It is used both for message phrases and for
// user name rules.
type Phrase struct {
	Pattern        string `yaml:"pattern" json:"pattern"`
	Regex          bool   `yaml:"regex,omitempty" json:"regex,omitempty"`
	CaseSensitive  bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	ShowInMentions bool   `yaml:"show_in_mentions,omitempty" json:"show_in_mentions,omitempty"`
	Alert          bool   `yaml:"alert,omitempty" json:"alert,omitempty"`
	Sound          bool   `yaml:"sound,omitempty" json:"sound,omitempty"`
	SoundURL       string `yaml:"sound_url,omitempty" json:"sound_url,omitempty"`
	Color          string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BadgeRule highlights senders carrying a badge. Name is either a badge set
// ("moderator") matching any version, or "set/version" ("subscriber/12").
type BadgeRule struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Alert       bool   `yaml:"alert,omitempty" json:"alert,omitempty"`
	Sound       bool   `yaml:"sound,omitempty" json:"sound,omitempty"`
	SoundURL    string `yaml:"sound_url,omitempty" json:"sound_url,omitempty"`
	Color       string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Options tunes a Settings instance.
type Options struct {
	ItemsDelay time.Duration
}

// Settings is the live, observable highlight configuration.
type Settings struct {
	Account *Value[string]

	EnableSelfHighlight         *Value[bool]
	EnableSelfHighlightSound    *Value[bool]
	EnableSelfHighlightTaskbar  *Value[bool]
	ShowSelfHighlightInMentions *Value[bool]
	SelfHighlightSoundURL       *Value[string]
	SelfHighlightColor          *Value[string]

	EnableWhisperHighlight        *Value[bool]
	EnableWhisperHighlightSound   *Value[bool]
	EnableWhisperHighlightTaskbar *Value[bool]
	WhisperHighlightSoundURL      *Value[string]
	WhisperHighlightColor         *Value[string]

	EnableSubHighlight        *Value[bool]
	EnableSubHighlightSound   *Value[bool]
	EnableSubHighlightTaskbar *Value[bool]
	SubHighlightSoundURL      *Value[string]
	SubHighlightColor         *Value[string]

	HighlightedMessages *List[Phrase]
	HighlightedUsers    *List[Phrase]
	HighlightedBadges   *List[BadgeRule]
}

func New(opts Options) *Settings {
	delay := opts.ItemsDelay
	if delay < 0 {
		delay = 0
	}
	return &Settings{
		Account: NewValue("account", ""),

		EnableSelfHighlight:         NewValue("self.enabled", true),
		EnableSelfHighlightSound:    NewValue("self.sound", true),
		EnableSelfHighlightTaskbar:  NewValue("self.taskbar", true),
		ShowSelfHighlightInMentions: NewValue("self.show_in_mentions", true),
		SelfHighlightSoundURL:       NewValue("self.sound_url", ""),
		SelfHighlightColor:          NewValue("self.color", ""),

		EnableWhisperHighlight:        NewValue("whisper.enabled", true),
		EnableWhisperHighlightSound:   NewValue("whisper.sound", false),
		EnableWhisperHighlightTaskbar: NewValue("whisper.taskbar", false),
		WhisperHighlightSoundURL:      NewValue("whisper.sound_url", ""),
		WhisperHighlightColor:         NewValue("whisper.color", ""),

		EnableSubHighlight:        NewValue("subscription.enabled", true),
		EnableSubHighlightSound:   NewValue("subscription.sound", false),
		EnableSubHighlightTaskbar: NewValue("subscription.taskbar", false),
		SubHighlightSoundURL:      NewValue("subscription.sound_url", ""),
		SubHighlightColor:         NewValue("subscription.color", ""),

		HighlightedMessages: NewList[Phrase]("phrases", delay),
		HighlightedUsers:    NewList[Phrase]("users", delay),
		HighlightedBadges:   NewList[BadgeRule]("badges", delay),
	}
}

// Category is the toggle group shared by the self, whisper and subscription highlights.
type Category struct {
	Enabled  bool
	Sound    bool
	Taskbar  bool
	SoundURL string
}

// Snapshot is a plain copy of everything the highlight compiler reads.
type Snapshot struct {
	Username string

	Self               Category
	ShowSelfInMentions bool
	Whisper            Category
	Subscription       Category
	Phrases            []Phrase
	Users              []Phrase
	Badges             []BadgeRule
}

func (s *Settings) Snapshot() Snapshot {
	return Snapshot{
		Username: s.Account.Get(),
		Self: Category{
			Enabled:  s.EnableSelfHighlight.Get(),
			Sound:    s.EnableSelfHighlightSound.Get(),
			Taskbar:  s.EnableSelfHighlightTaskbar.Get(),
			SoundURL: s.SelfHighlightSoundURL.Get(),
		},
		ShowSelfInMentions: s.ShowSelfHighlightInMentions.Get(),
		Whisper: Category{
			Enabled:  s.EnableWhisperHighlight.Get(),
			Sound:    s.EnableWhisperHighlightSound.Get(),
			Taskbar:  s.EnableWhisperHighlightTaskbar.Get(),
			SoundURL: s.WhisperHighlightSoundURL.Get(),
		},
		Subscription: Category{
			Enabled:  s.EnableSubHighlight.Get(),
			Sound:    s.EnableSubHighlightSound.Get(),
			Taskbar:  s.EnableSubHighlightTaskbar.Get(),
			SoundURL: s.SubHighlightSoundURL.Get(),
		},
		Phrases: s.HighlightedMessages.Items(),
		Users:   s.HighlightedUsers.Items(),
		Badges:  s.HighlightedBadges.Items(),
	}
}

// Close stops pending list notifications.
func (s *Settings) Close() {
	s.HighlightedMessages.Close()
	s.HighlightedUsers.Close()
	s.HighlightedBadges.Close()
}
