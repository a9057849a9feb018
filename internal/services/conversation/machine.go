package conversation

import (
	"time"
	"unicode/utf8"

	"shrinkbot/internal/domain/compression"
	"shrinkbot/internal/domain/conversation"
	"shrinkbot/pkg/errors"
)

// maxDetailRunes caps the error cause echoed back to the user
const maxDetailRunes = 300

// Job is a compression ready to run, produced by a valid quality reply
type Job struct {
	Photo   conversation.PhotoRef
	Target  conversation.SizeTarget
	Quality int
}

// Request builds the engine request once the source bytes are available
func (j *Job) Request(source []byte) compression.Request {
	return compression.Request{
		Source:       source,
		TargetSize:   j.Target.Size,
		Unit:         j.Target.Unit,
		StartQuality: j.Quality,
	}
}

// Outcome is the result of feeding one event to a session.
// A session in StateEnded must be removed from the store rather than saved.
type Outcome struct {
	Session *conversation.Session
	Replies []conversation.Reply
	Job     *Job
}

func reply(kind conversation.ReplyKind) conversation.Reply {
	return conversation.Reply{Kind: kind}
}

func errorReply(err error) conversation.Reply {
	return conversation.Reply{Kind: conversation.ReplyError, Detail: ErrorDetail(err)}
}

// Transition applies ev to current and returns the next session plus what to send.
// current is never modified.
func Transition(current *conversation.Session, ev conversation.Event, now time.Time) Outcome {
	next := current.Clone()
	next.UpdatedAt = now

	switch ev.Kind {
	case conversation.EventStart:
		return Outcome{
			Session: conversation.NewSession(current.TelegramID, current.ChatID, now),
			Replies: []conversation.Reply{reply(conversation.ReplyWelcome)},
		}
	case conversation.EventHelp:
		return Outcome{Session: next, Replies: []conversation.Reply{reply(conversation.ReplyHelp)}}
	case conversation.EventCancel:
		ended := conversation.EndedSession(current.TelegramID, current.ChatID, now)
		return Outcome{Session: ended, Replies: []conversation.Reply{reply(conversation.ReplyCancelled)}}
	}

	switch next.State {
	case conversation.StateAwaitingPhoto:
		if ev.Kind == conversation.EventPhoto && ev.Photo != nil {
			photo := *ev.Photo
			next.Photo = &photo
			next.Target = nil
			next.State = conversation.StateAwaitingSize
			return Outcome{Session: next, Replies: []conversation.Reply{reply(conversation.ReplyAskSize)}}
		}

	case conversation.StateAwaitingSize:
		if ev.Kind == conversation.EventText {
			target, err := conversation.ParseSize(ev.Text)
			if err != nil {
				return Outcome{Session: next, Replies: []conversation.Reply{reply(conversation.ReplyInvalidSize)}}
			}
			next.Target = &target
			next.State = conversation.StateAwaitingQuality
			return Outcome{Session: next, Replies: []conversation.Reply{reply(conversation.ReplyAskQuality)}}
		}

	case conversation.StateAwaitingQuality:
		if ev.Kind == conversation.EventText {
			return awaitingQuality(next, ev.Text)
		}
	}

	// Ended, wrong kind for the state, unknown command
	return Outcome{Session: next, Replies: []conversation.Reply{reply(conversation.ReplyInvalidInput)}}
}

func awaitingQuality(next *conversation.Session, text string) Outcome {
	quality, err := conversation.ParseQuality(text)
	if err != nil {
		next.State = conversation.StateAwaitingSize
		return Outcome{Session: next, Replies: []conversation.Reply{errorReply(err)}}
	}

	if next.Photo == nil {
		next.State = conversation.StateAwaitingPhoto
		next.Target = nil
		return Outcome{Session: next, Replies: []conversation.Reply{
			errorReply(errors.Wrap(errors.ErrMissingSessionData, "no photo in session")),
		}}
	}
	if next.Target == nil {
		next.State = conversation.StateAwaitingSize
		return Outcome{Session: next, Replies: []conversation.Reply{
			errorReply(errors.Wrap(errors.ErrMissingSessionData, "no target size in session")),
		}}
	}

	return Outcome{
		Session: next,
		Replies: []conversation.Reply{reply(conversation.ReplyProcessing)},
		Job: &Job{
			Photo:   *next.Photo,
			Target:  *next.Target,
			Quality: quality,
		},
	}
}

// Complete folds a finished compression back into the session.
// Success starts a new round; any failure asks for the size again and keeps the photo.
func Complete(current *conversation.Session, res *compression.Result, err error, now time.Time) Outcome {
	next := current.Clone()
	next.UpdatedAt = now

	if err == nil && res == nil {
		err = errors.Wrap(errors.ErrInternal, "compression returned no result")
	}
	if err != nil {
		next.State = conversation.StateAwaitingSize
		return Outcome{Session: next, Replies: []conversation.Reply{errorReply(err)}}
	}

	next.State = conversation.StateAwaitingPhoto
	next.Photo = nil
	next.Target = nil

	return Outcome{Session: next, Replies: []conversation.Reply{{
		Kind:   conversation.ReplyResult,
		Report: conversation.NewReport(res.OriginalSize, res.FinalSize),
	}}}
}

// ErrorDetail is the cause shown after "Error: ". Validation errors carry their own text.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}

	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	detail := err.Error()
	if utf8.RuneCountInString(detail) > maxDetailRunes {
		detail = string([]rune(detail)[:maxDetailRunes]) + "..."
	}
	return detail
}
