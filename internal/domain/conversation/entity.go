package conversation

import (
	"time"

	"shrinkbot/internal/domain/compression"
)

// State is the dialogue step a session is on
type State string

const (
	StateAwaitingPhoto   State = "awaiting_photo"
	StateAwaitingSize    State = "awaiting_size"
	StateAwaitingQuality State = "awaiting_quality"
	// StateEnded marks a cancelled or never-started conversation; ended sessions are not stored
	StateEnded State = "ended"
)

func (s State) String() string {
	return string(s)
}

// PhotoRef points at a photo held by the transport; the bytes are fetched only when compressing
type PhotoRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

// SizeTarget is the requested upper bound; size and unit only ever exist together
type SizeTarget struct {
	Size int                  `json:"size"`
	Unit compression.SizeUnit `json:"unit"`
}

// Session is the per-user conversation record
type Session struct {
	TelegramID int64       `json:"telegram_id"`
	ChatID     int64       `json:"chat_id"`
	State      State       `json:"state"`
	Photo      *PhotoRef   `json:"photo,omitempty"`
	Target     *SizeTarget `json:"target,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewSession creates a session waiting for a photo
func NewSession(telegramID, chatID int64, now time.Time) *Session {
	return &Session{
		TelegramID: telegramID,
		ChatID:     chatID,
		State:      StateAwaitingPhoto,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EndedSession is the stand-in for users with no stored session
func EndedSession(telegramID, chatID int64, now time.Time) *Session {
	s := NewSession(telegramID, chatID, now)
	s.State = StateEnded
	return s
}

// Clone returns a deep copy so transitions never mutate their input
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Photo != nil {
		p := *s.Photo
		c.Photo = &p
	}
	if s.Target != nil {
		t := *s.Target
		c.Target = &t
	}
	return &c
}

// Active reports whether the session is mid-conversation
func (s *Session) Active() bool {
	return s != nil && s.State != StateEnded
}
