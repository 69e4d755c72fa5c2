package document

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crm/docrender/internal/domain/shared"
)

// MaxNoteLength bounds the text of a single note.
const MaxNoteLength = 2000

// Note is a comment attached to a document.
type Note struct {
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
	Author    string     `json:"author"`
	AuthorID  *uuid.UUID `json:"authorId,omitempty"`
}

// NewNote creates a note written by author at now.
func NewNote(text string, author shared.CurrentUser, now time.Time) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, shared.NewDomainError("INVALID_NOTE", "Note text cannot be empty")
	}
	if len([]rune(text)) > MaxNoteLength {
		return Note{}, shared.NewDomainError("INVALID_NOTE", "Note text is too long")
	}
	if author.IsZero() {
		return Note{}, shared.NewDomainError("INVALID_NOTE", "Note author is required")
	}
	id := author.ID
	return Note{
		Text:      text,
		Timestamp: now.UTC(),
		Author:    author.DisplayName(),
		AuthorID:  &id,
	}, nil
}
