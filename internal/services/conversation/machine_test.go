package conversation

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/internal/domain/compression"
	"shrinkbot/internal/domain/conversation"
	"shrinkbot/pkg/errors"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sessionIn(state conversation.State) *conversation.Session {
	s := conversation.NewSession(1, 10, t0)
	s.State = state
	switch state {
	case conversation.StateAwaitingSize:
		s.Photo = &conversation.PhotoRef{FileID: "photo-1"}
	case conversation.StateAwaitingQuality:
		s.Photo = &conversation.PhotoRef{FileID: "photo-1"}
		s.Target = &conversation.SizeTarget{Size: 500, Unit: compression.UnitKB}
	}
	return s
}

func photoEvent(id string) conversation.Event {
	return conversation.Event{Kind: conversation.EventPhoto, Photo: &conversation.PhotoRef{FileID: id}}
}

func textEvent(text string) conversation.Event {
	return conversation.Event{Kind: conversation.EventText, Text: text}
}

func kinds(replies []conversation.Reply) []conversation.ReplyKind {
	out := make([]conversation.ReplyKind, 0, len(replies))
	for _, r := range replies {
		out = append(out, r.Kind)
	}
	return out
}

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		name      string
		state     conversation.State
		event     conversation.Event
		wantState conversation.State
		wantReply conversation.ReplyKind
		wantJob   bool
	}{
		{"start from ended", conversation.StateEnded, conversation.Event{Kind: conversation.EventStart}, conversation.StateAwaitingPhoto, conversation.ReplyWelcome, false},
		{"start mid conversation", conversation.StateAwaitingQuality, conversation.Event{Kind: conversation.EventStart}, conversation.StateAwaitingPhoto, conversation.ReplyWelcome, false},
		{"help keeps state", conversation.StateAwaitingSize, conversation.Event{Kind: conversation.EventHelp}, conversation.StateAwaitingSize, conversation.ReplyHelp, false},
		{"help outside conversation", conversation.StateEnded, conversation.Event{Kind: conversation.EventHelp}, conversation.StateEnded, conversation.ReplyHelp, false},
		{"photo accepted", conversation.StateAwaitingPhoto, photoEvent("p"), conversation.StateAwaitingSize, conversation.ReplyAskSize, false},
		{"text while awaiting photo", conversation.StateAwaitingPhoto, textEvent("hello"), conversation.StateAwaitingPhoto, conversation.ReplyInvalidInput, false},
		{"sticker while awaiting photo", conversation.StateAwaitingPhoto, conversation.Event{Kind: conversation.EventOther}, conversation.StateAwaitingPhoto, conversation.ReplyInvalidInput, false},
		{"valid size", conversation.StateAwaitingSize, textEvent("500KB"), conversation.StateAwaitingQuality, conversation.ReplyAskQuality, false},
		{"invalid size", conversation.StateAwaitingSize, textEvent("500KG"), conversation.StateAwaitingSize, conversation.ReplyInvalidSize, false},
		{"photo while awaiting size", conversation.StateAwaitingSize, photoEvent("p2"), conversation.StateAwaitingSize, conversation.ReplyInvalidInput, false},
		{"valid quality", conversation.StateAwaitingQuality, textEvent("80"), conversation.StateAwaitingQuality, conversation.ReplyProcessing, true},
		{"quality out of range goes back to size", conversation.StateAwaitingQuality, textEvent("96"), conversation.StateAwaitingSize, conversation.ReplyError, false},
		{"non numeric quality goes back to size", conversation.StateAwaitingQuality, textEvent("high"), conversation.StateAwaitingSize, conversation.ReplyError, false},
		{"unknown command mid conversation", conversation.StateAwaitingQuality, conversation.Event{Kind: conversation.EventCommand, Command: "foo"}, conversation.StateAwaitingQuality, conversation.ReplyInvalidInput, false},
		{"photo outside conversation", conversation.StateEnded, photoEvent("p"), conversation.StateEnded, conversation.ReplyInvalidInput, false},
		{"text outside conversation", conversation.StateEnded, textEvent("500KB"), conversation.StateEnded, conversation.ReplyInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := sessionIn(tt.state)
			before := current.Clone()

			out := Transition(current, tt.event, t0.Add(time.Minute))

			require.NotNil(t, out.Session)
			assert.Equal(t, tt.wantState, out.Session.State)
			assert.Equal(t, []conversation.ReplyKind{tt.wantReply}, kinds(out.Replies))
			assert.Equal(t, tt.wantJob, out.Job != nil)
			assert.Equal(t, before, current, "input session must not be mutated")
		})
	}
}

func TestTransition_CancelIsIdempotent(t *testing.T) {
	states := []conversation.State{
		conversation.StateAwaitingPhoto,
		conversation.StateAwaitingSize,
		conversation.StateAwaitingQuality,
		conversation.StateEnded,
	}

	for _, st := range states {
		t.Run(st.String(), func(t *testing.T) {
			out := Transition(sessionIn(st), conversation.Event{Kind: conversation.EventCancel}, t0)

			assert.Equal(t, conversation.StateEnded, out.Session.State)
			assert.Nil(t, out.Session.Photo)
			assert.Nil(t, out.Session.Target)
			assert.Equal(t, []conversation.ReplyKind{conversation.ReplyCancelled}, kinds(out.Replies))
			assert.False(t, out.Session.Active())

			again := Transition(out.Session, conversation.Event{Kind: conversation.EventCancel}, t0)
			assert.Equal(t, out.Session.State, again.Session.State)
			assert.Equal(t, out.Replies, again.Replies)
		})
	}
}

func TestTransition_InvalidSizeKeepsPhoto(t *testing.T) {
	current := sessionIn(conversation.StateAwaitingSize)

	out := Transition(current, textEvent("500KG"), t0)

	assert.Equal(t, conversation.StateAwaitingSize, out.Session.State)
	require.NotNil(t, out.Session.Photo)
	assert.Equal(t, "photo-1", out.Session.Photo.FileID)
	assert.Nil(t, out.Session.Target)
}

func TestTransition_NewPhotoReplacesOld(t *testing.T) {
	current := sessionIn(conversation.StateAwaitingPhoto)
	current.Photo = &conversation.PhotoRef{FileID: "old"}

	out := Transition(current, photoEvent("new"), t0)

	require.NotNil(t, out.Session.Photo)
	assert.Equal(t, "new", out.Session.Photo.FileID)
	assert.Nil(t, out.Session.Target)
}

func TestTransition_SizeStoresTargetTogether(t *testing.T) {
	out := Transition(sessionIn(conversation.StateAwaitingSize), textEvent(" 2 mib "), t0)

	require.NotNil(t, out.Session.Target)
	assert.Equal(t, conversation.SizeTarget{Size: 2, Unit: compression.UnitMiB}, *out.Session.Target)
}

func TestTransition_ValidQualityBuildsJob(t *testing.T) {
	out := Transition(sessionIn(conversation.StateAwaitingQuality), textEvent(" 80 "), t0)

	require.NotNil(t, out.Job)
	assert.Equal(t, 80, out.Job.Quality)
	assert.Equal(t, "photo-1", out.Job.Photo.FileID)
	assert.Equal(t, conversation.SizeTarget{Size: 500, Unit: compression.UnitKB}, out.Job.Target)

	req := out.Job.Request([]byte{1, 2, 3})
	assert.NoError(t, req.Validate())
	assert.Equal(t, 80, req.StartQuality)
	assert.Equal(t, compression.UnitKB, req.Unit)
}

// Quality errors re-prompt for the size, not the quality. Known dialogue quirk, pinned here.
func TestTransition_QualityFailureReturnsToAwaitingSize(t *testing.T) {
	tests := []struct {
		text       string
		wantDetail string
	}{
		{"0", "Quality must be between 1 and 95."},
		{"96", "Quality must be between 1 and 95."},
		{"abc", `invalid quality "abc": not an integer`},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			out := Transition(sessionIn(conversation.StateAwaitingQuality), textEvent(tt.text), t0)

			assert.Equal(t, conversation.StateAwaitingSize, out.Session.State)
			require.Len(t, out.Replies, 1)
			assert.Equal(t, conversation.ReplyError, out.Replies[0].Kind)
			assert.Equal(t, tt.wantDetail, out.Replies[0].Detail)
			assert.NotNil(t, out.Session.Photo)
			assert.Nil(t, out.Job)
		})
	}
}

func TestTransition_QualityAcceptsWholeRange(t *testing.T) {
	for q := 1; q <= 95; q++ {
		out := Transition(sessionIn(conversation.StateAwaitingQuality), textEvent(strconv.Itoa(q)), t0)
		require.NotNil(t, out.Job, "quality %d", q)
		assert.Equal(t, q, out.Job.Quality)
	}
}

func TestTransition_MissingSessionData(t *testing.T) {
	noPhoto := sessionIn(conversation.StateAwaitingQuality)
	noPhoto.Photo = nil

	out := Transition(noPhoto, textEvent("80"), t0)
	assert.Equal(t, conversation.StateAwaitingPhoto, out.Session.State)
	assert.Nil(t, out.Job)
	assert.Equal(t, conversation.ReplyError, out.Replies[0].Kind)
	assert.Contains(t, out.Replies[0].Detail, "missing session data")

	noTarget := sessionIn(conversation.StateAwaitingQuality)
	noTarget.Target = nil

	out = Transition(noTarget, textEvent("80"), t0)
	assert.Equal(t, conversation.StateAwaitingSize, out.Session.State)
	assert.Nil(t, out.Job)
}

func TestTransition_StartResetsData(t *testing.T) {
	out := Transition(sessionIn(conversation.StateAwaitingQuality), conversation.Event{Kind: conversation.EventStart}, t0.Add(time.Hour))

	assert.Nil(t, out.Session.Photo)
	assert.Nil(t, out.Session.Target)
	assert.Equal(t, int64(1), out.Session.TelegramID)
	assert.Equal(t, int64(10), out.Session.ChatID)
	assert.Equal(t, t0.Add(time.Hour), out.Session.CreatedAt)
}

func TestComplete(t *testing.T) {
	current := sessionIn(conversation.StateAwaitingQuality)

	t.Run("success starts a new round", func(t *testing.T) {
		res := &compression.Result{OriginalSize: 1_000_000, FinalSize: 480 * 1024, FinalQuality: 75}

		out := Complete(current, res, nil, t0)

		assert.Equal(t, conversation.StateAwaitingPhoto, out.Session.State)
		assert.Nil(t, out.Session.Photo)
		assert.Nil(t, out.Session.Target)
		require.Len(t, out.Replies, 1)
		assert.Equal(t, conversation.ReplyResult, out.Replies[0].Kind)
		assert.Equal(t, &conversation.Report{OriginalKB: "976.56", CompressedKB: "480.00", Ratio: "2.03"}, out.Replies[0].Report)
	})

	t.Run("failure asks for size again", func(t *testing.T) {
		err := errors.WithKind(errors.New("image: unknown format"), errors.ErrCodec)

		out := Complete(current, nil, err, t0)

		assert.Equal(t, conversation.StateAwaitingSize, out.Session.State)
		assert.NotNil(t, out.Session.Photo)
		require.Len(t, out.Replies, 1)
		assert.Equal(t, conversation.ReplyError, out.Replies[0].Kind)
		assert.Equal(t, "image: unknown format", out.Replies[0].Detail)
	})

	t.Run("nil result without error is a failure", func(t *testing.T) {
		out := Complete(current, nil, nil, t0)
		assert.Equal(t, conversation.StateAwaitingSize, out.Session.State)
		assert.Equal(t, conversation.ReplyError, out.Replies[0].Kind)
	})
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "", ErrorDetail(nil))

	verr := errors.NewValidationError(errors.ErrInvalidQuality, "quality", "Quality must be between 1 and 95.", 0)
	assert.Equal(t, "Quality must be between 1 and 95.", ErrorDetail(errors.Wrap(verr, "outer")))

	long := ErrorDetail(errors.New(strings.Repeat("x", 1000)))
	assert.Equal(t, maxDetailRunes+3, len(long))
	assert.True(t, strings.HasSuffix(long, "..."))
}
