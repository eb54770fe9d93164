package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var ErrEmptyTurn = errors.New("turn must contain at least one part")

// Part is one content unit within a turn: either text or an inline binary
// attachment carried as a base64 payload. Exactly one of the two is set.
type Part struct {
	Text string `json:"text,omitempty"`
	Blob *Blob  `json:"blob,omitempty"`
}

// Blob is an inline binary attachment (image, audio, video).
type Blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func BlobPart(mimeType, data string) Part {
	return Part{Blob: &Blob{MimeType: mimeType, Data: data}}
}

// IsMedia reports whether the part is an audio or video attachment, the
// kinds that need sensory pre-processing before a text-only model sees them.
func (p Part) IsMedia() bool {
	if p.Blob == nil {
		return false
	}
	return strings.HasPrefix(p.Blob.MimeType, "audio/") || strings.HasPrefix(p.Blob.MimeType, "video/")
}

func (p Part) IsText() bool {
	return p.Blob == nil
}

// Turn is one message in a conversation. Immutable once created: history is
// append-only and never reordered.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn builds a turn from non-empty parts. A zero-part turn is a caller
// bug and is rejected rather than silently constructed.
func NewTurn(role Role, parts []Part) (Turn, error) {
	if len(parts) == 0 {
		return Turn{}, ErrEmptyTurn
	}
	return Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Parts:     parts,
		Timestamp: time.Now().UTC(),
	}, nil
}

// FirstText returns the first text part of the turn, or "".
func (t Turn) FirstText() string {
	for _, p := range t.Parts {
		if p.IsText() && p.Text != "" {
			return p.Text
		}
	}
	return ""
}
