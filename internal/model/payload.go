package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PayloadKind names the payload variant carried by a post.
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadVoice PayloadKind = "voice"
	PayloadMusic PayloadKind = "music"
	PayloadImage PayloadKind = "image"
)

// TextPayload is a plain text ghost.
type TextPayload struct {
	Text string `json:"text" yaml:"text"`
}

// VoicePayload references a recorded voice note held by an external media store.
type VoicePayload struct {
	URI             string `json:"uri" yaml:"uri"`
	DurationSeconds int    `json:"duration_seconds" yaml:"duration_seconds"`
}

// MusicPayload references a music track, optionally with a caption.
type MusicPayload struct {
	TrackID         string `json:"track_id" yaml:"track_id"`
	DurationSeconds int    `json:"duration_seconds" yaml:"duration_seconds"`
	Caption         string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

// ImagePayload references an image that already passed privacy scanning.
type ImagePayload struct {
	URI string `json:"uri" yaml:"uri"`
}

// Payload is a tagged union: exactly one variant must be set.
type Payload struct {
	Text  *TextPayload  `json:"text,omitempty" yaml:"text,omitempty"`
	Voice *VoicePayload `json:"voice,omitempty" yaml:"voice,omitempty"`
	Music *MusicPayload `json:"music,omitempty" yaml:"music,omitempty"`
	Image *ImagePayload `json:"image,omitempty" yaml:"image,omitempty"`
}

// TextOf builds a text payload.
func TextOf(s string) Payload {
	return Payload{Text: &TextPayload{Text: s}}
}

// VoiceOf builds a voice-note payload.
func VoiceOf(uri string, seconds int) Payload {
	return Payload{Voice: &VoicePayload{URI: uri, DurationSeconds: seconds}}
}

// MusicOf builds a music payload.
func MusicOf(trackID string, seconds int, caption string) Payload {
	return Payload{Music: &MusicPayload{TrackID: trackID, DurationSeconds: seconds, Caption: caption}}
}

// ImageOf builds an image payload.
func ImageOf(uri string) Payload {
	return Payload{Image: &ImagePayload{URI: uri}}
}

// Kind returns the variant that is set, or "" when none or more than one is.
func (p Payload) Kind() PayloadKind {
	var kind PayloadKind
	n := 0
	if p.Text != nil {
		kind = PayloadText
		n++
	}
	if p.Voice != nil {
		kind = PayloadVoice
		n++
	}
	if p.Music != nil {
		kind = PayloadMusic
		n++
	}
	if p.Image != nil {
		kind = PayloadImage
		n++
	}
	if n != 1 {
		return ""
	}
	return kind
}

// Validate checks the structural shape of the payload.
// Content moderation happens upstream; only presence and required fields
// are checked here.
func (p Payload) Validate() error {
	switch p.Kind() {
	case PayloadText:
		if strings.TrimSpace(p.Text.Text) == "" {
			return NewInvalidContent("text payload is empty")
		}
	case PayloadVoice:
		if strings.TrimSpace(p.Voice.URI) == "" {
			return NewInvalidContent("voice payload has no uri")
		}
		if p.Voice.DurationSeconds <= 0 {
			return NewInvalidContent("voice payload duration must be positive")
		}
	case PayloadMusic:
		if strings.TrimSpace(p.Music.TrackID) == "" {
			return NewInvalidContent("music payload has no track id")
		}
		if p.Music.DurationSeconds < 0 {
			return NewInvalidContent("music payload duration is negative")
		}
	case PayloadImage:
		if strings.TrimSpace(p.Image.URI) == "" {
			return NewInvalidContent("image payload has no uri")
		}
	default:
		return NewInvalidContent("payload must carry exactly one of text, voice, music, image")
	}
	return nil
}

// Normalize returns a copy with user-entered text trimmed and in Unicode NFC,
// so visually identical posts compare equal after a round trip.
func (p Payload) Normalize() Payload {
	out := p.Clone()
	if out.Text != nil {
		out.Text.Text = normalizeText(out.Text.Text)
	}
	if out.Music != nil {
		out.Music.Caption = normalizeText(out.Music.Caption)
	}
	return out
}

// Clone deep-copies the payload.
func (p Payload) Clone() Payload {
	var out Payload
	if p.Text != nil {
		v := *p.Text
		out.Text = &v
	}
	if p.Voice != nil {
		v := *p.Voice
		out.Voice = &v
	}
	if p.Music != nil {
		v := *p.Music
		out.Music = &v
	}
	if p.Image != nil {
		v := *p.Image
		out.Image = &v
	}
	return out
}

// Summary is a short human-readable description used by CLI output and logs.
func (p Payload) Summary() string {
	switch p.Kind() {
	case PayloadText:
		return p.Text.Text
	case PayloadVoice:
		return "voice note"
	case PayloadMusic:
		if p.Music.Caption != "" {
			return p.Music.Caption
		}
		return "music: " + p.Music.TrackID
	case PayloadImage:
		return "photo"
	}
	return ""
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeName applies the same normalisation to a display name.
func NormalizeName(s string) string {
	return normalizeText(s)
}
