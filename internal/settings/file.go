package settings

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of the highlight settings. Missing category
// toggles keep their current value.
type File struct {
	Account      string       `yaml:"account,omitempty"`
	Self         CategoryFile `yaml:"self"`
	Whisper      CategoryFile `yaml:"whisper"`
	Subscription CategoryFile `yaml:"subscription"`
	Phrases      []Phrase     `yaml:"phrases"`
	Users        []Phrase     `yaml:"users"`
	Badges       []BadgeRule  `yaml:"badges"`
}

type CategoryFile struct {
	Enabled        *bool   `yaml:"enabled,omitempty"`
	Sound          *bool   `yaml:"sound,omitempty"`
	Taskbar        *bool   `yaml:"taskbar,omitempty"`
	ShowInMentions *bool   `yaml:"show_in_mentions,omitempty"`
	SoundURL       *string `yaml:"sound_url,omitempty"`
	Color          *string `yaml:"color,omitempty"`
}

func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "read settings")
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (File, error) {
	var f File
	if len(strings.TrimSpace(string(data))) == 0 {
		return f, nil
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, errors.Wrap(err, "parse settings")
	}
	return f, nil
}

// Apply pushes the file into the live settings. Each changed value notifies
// its own subscribers. The returned flag reports whether the account changed;
// the account is not observed by the highlighter, so callers rebuild themselves.
func (s *Settings) Apply(f File) (accountChanged bool) {
	accountChanged = s.Account.Set(strings.TrimSpace(f.Account))

	applyCategory(f.Self, s.EnableSelfHighlight, s.EnableSelfHighlightSound, s.EnableSelfHighlightTaskbar,
		s.SelfHighlightSoundURL, s.SelfHighlightColor)
	if f.Self.ShowInMentions != nil {
		s.ShowSelfHighlightInMentions.Set(*f.Self.ShowInMentions)
	}
	applyCategory(f.Whisper, s.EnableWhisperHighlight, s.EnableWhisperHighlightSound, s.EnableWhisperHighlightTaskbar,
		s.WhisperHighlightSoundURL, s.WhisperHighlightColor)
	applyCategory(f.Subscription, s.EnableSubHighlight, s.EnableSubHighlightSound, s.EnableSubHighlightTaskbar,
		s.SubHighlightSoundURL, s.SubHighlightColor)

	s.HighlightedMessages.Replace(f.Phrases)
	s.HighlightedUsers.Replace(f.Users)
	s.HighlightedBadges.Replace(f.Badges)
	return accountChanged
}

func applyCategory(c CategoryFile, enabled, sound, taskbar *Value[bool], soundURL, color *Value[string]) {
	if c.Enabled != nil {
		enabled.Set(*c.Enabled)
	}
	if c.Sound != nil {
		sound.Set(*c.Sound)
	}
	if c.Taskbar != nil {
		taskbar.Set(*c.Taskbar)
	}
	if c.SoundURL != nil {
		soundURL.Set(strings.TrimSpace(*c.SoundURL))
	}
	if c.Color != nil {
		color.Set(strings.TrimSpace(*c.Color))
	}
}

// Export captures the live settings in file form.
func (s *Settings) Export() File {
	category := func(enabled, sound, taskbar *Value[bool], soundURL, color *Value[string]) CategoryFile {
		e, so, tb := enabled.Get(), sound.Get(), taskbar.Get()
		u, c := soundURL.Get(), color.Get()
		return CategoryFile{Enabled: &e, Sound: &so, Taskbar: &tb, SoundURL: &u, Color: &c}
	}

	self := category(s.EnableSelfHighlight, s.EnableSelfHighlightSound, s.EnableSelfHighlightTaskbar,
		s.SelfHighlightSoundURL, s.SelfHighlightColor)
	show := s.ShowSelfHighlightInMentions.Get()
	self.ShowInMentions = &show

	return File{
		Account: s.Account.Get(),
		Self:    self,
		Whisper: category(s.EnableWhisperHighlight, s.EnableWhisperHighlightSound, s.EnableWhisperHighlightTaskbar,
			s.WhisperHighlightSoundURL, s.WhisperHighlightColor),
		Subscription: category(s.EnableSubHighlight, s.EnableSubHighlightSound, s.EnableSubHighlightTaskbar,
			s.SubHighlightSoundURL, s.SubHighlightColor),
		Phrases: s.HighlightedMessages.Items(),
		Users:   s.HighlightedUsers.Items(),
		Badges:  s.HighlightedBadges.Items(),
	}
}

// Marshal renders the file as YAML.
func (f File) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "encode settings")
	}
	return data, nil
}
