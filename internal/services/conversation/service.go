package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"shrinkbot/internal/domain/compression"
	"shrinkbot/internal/domain/conversation"
	"shrinkbot/internal/metrics"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	"shrinkbot/pkg/telegram"
)

// Compressor runs the quality search
type Compressor interface {
	Compress(ctx context.Context, req compression.Request) (*compression.Result, error)
}

// Messenger is the slice of the transport the conversation needs
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, file telegram.FileUpload) error
	SendChatAction(ctx context.Context, chatID int64, action telegram.ChatAction) error
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
}

// Config holds service tunables
type Config struct {
	SessionTTL     time.Duration
	MaxSourceBytes int64
	LockWait       time.Duration
}

// Deps bundles the service collaborators
type Deps struct {
	Repo       conversation.Repository
	Locker     Locker
	Compressor Compressor
	Messenger  Messenger
	Renderer   telegram.TemplateRenderer
	Tracker    errors.Tracker
	Config     Config
	Log        *logger.Logger
}

// Service drives conversations: load session, apply Transition, persist, reply, compress
type Service struct {
	repo       conversation.Repository
	locker     Locker
	compressor Compressor
	messenger  Messenger
	renderer   telegram.TemplateRenderer
	tracker    errors.Tracker
	cfg        Config
	now        func() time.Time
	log        *logger.Logger
}

// NewService creates a conversation service
func NewService(deps Deps) *Service {
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	if deps.Config.SessionTTL <= 0 {
		deps.Config.SessionTTL = 24 * time.Hour
	}
	if deps.Config.LockWait <= 0 {
		deps.Config.LockWait = 2 * time.Minute
	}

	return &Service{
		repo:       deps.Repo,
		locker:     deps.Locker,
		compressor: deps.Compressor,
		messenger:  deps.Messenger,
		renderer:   deps.Renderer,
		tracker:    deps.Tracker,
		cfg:        deps.Config,
		now:        time.Now,
		log:        deps.Log.With("service", "conversation"),
	}
}

// Handle processes one event for a user. Events for the same user never run concurrently.
func (s *Service) Handle(ctx context.Context, telegramID, chatID int64, ev conversation.Event) error {
	ctx = errors.WithTelegramID(ctx, telegramID)

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	unlock, err := s.locker.Lock(lockCtx, telegramID)
	cancel()
	if err != nil {
		return errors.Wrap(err, "failed to lock conversation")
	}
	defer unlock()

	current, err := s.load(ctx, telegramID, chatID)
	if err != nil {
		s.send(ctx, chatID, conversation.Reply{Kind: conversation.ReplyError, Detail: ErrorDetail(err)})
		return err
	}

	out := Transition(current, ev, s.now())
	s.observe(ctx, current, ev, out)

	if err := s.persist(ctx, out.Session); err != nil {
		s.send(ctx, chatID, conversation.Reply{Kind: conversation.ReplyError, Detail: ErrorDetail(err)})
		return err
	}

	for _, r := range out.Replies {
		s.send(ctx, chatID, r)
	}

	if out.Job == nil {
		return nil
	}

	return s.runJob(ctx, out.Session, out.Job)
}

func (s *Service) load(ctx context.Context, telegramID, chatID int64) (*conversation.Session, error) {
	current, err := s.repo.Get(ctx, telegramID)
	if errors.Is(err, errors.ErrNotFound) {
		return conversation.EndedSession(telegramID, chatID, s.now()), nil
	}
	if err != nil {
		s.log.Errorw("Failed to load session",
			"telegram_id", telegramID,
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to load session")
	}

	current.ChatID = chatID
	return current, nil
}

func (s *Service) persist(ctx context.Context, session *conversation.Session) error {
	if !session.Active() {
		if err := s.repo.Delete(ctx, session.TelegramID); err != nil {
			s.log.Errorw("Failed to delete session",
				"telegram_id", session.TelegramID,
				"error", err,
			)
			return errors.Wrap(err, "failed to delete session")
		}
		return nil
	}

	if err := s.repo.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		s.log.Errorw("Failed to save session",
			"telegram_id", session.TelegramID,
			"state", session.State,
			"error", err,
		)
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

// runJob downloads the photo, compresses it, delivers the document and applies Complete
func (s *Service) runJob(ctx context.Context, session *conversation.Session, job *Job) error {
	log := s.log.With("telegram_id", session.TelegramID)

	res, err := s.compressAndDeliver(ctx, session.ChatID, job)
	if err != nil {
		log.Warnw("Compression round failed",
			"file_id", job.Photo.FileID,
			"target", fmt.Sprintf("%d%s", job.Target.Size, job.Target.Unit),
			"quality", job.Quality,
			"error", err,
		)
		if !errors.Is(err, errors.ErrInvalidQuality) && !errors.Is(err, errors.ErrSourceTooLarge) {
			s.capture(ctx, err, job)
		}
	}

	done := Complete(session, res, err, s.now())
	metrics.RecordTransition(session.State.String(), "compression", done.Session.State.String())

	if perr := s.persist(ctx, done.Session); perr != nil {
		err = errors.Join(err, perr)
	}
	for _, r := range done.Replies {
		s.send(ctx, session.ChatID, r)
	}

	return err
}

func (s *Service) compressAndDeliver(ctx context.Context, chatID int64, job *Job) (*compression.Result, error) {
	if err := s.messenger.SendChatAction(ctx, chatID, telegram.ChatActionUploadDocument); err != nil {
		s.log.Debugw("Failed to send chat action", "chat_id", chatID, "error", err)
	}

	source, err := s.messenger.DownloadFile(ctx, job.Photo.FileID, s.cfg.MaxSourceBytes)
	if err != nil {
		return nil, err
	}

	res, err := s.compressor.Compress(ctx, job.Request(source))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Output.Release(); err != nil {
			s.log.Warnw("Failed to release compressed output", "path", res.Output.Path(), "error", err)
		}
	}()

	data, err := res.Output.Bytes()
	if err != nil {
		return nil, err
	}

	upload := telegram.FileUpload{
		Name: fmt.Sprintf("compressed_%d.jpg", s.now().Unix()),
		Data: data,
	}
	if err := s.messenger.SendDocument(ctx, chatID, upload); err != nil {
		metrics.RecordMessageSent("document", err)
		return nil, errors.Wrap(err, "failed to send compressed image")
	}
	metrics.RecordMessageSent("document", nil)

	s.log.Infow("Compressed image delivered",
		"chat_id", chatID,
		"original", humanize.IBytes(uint64(res.OriginalSize)),
		"compressed", humanize.IBytes(uint64(res.FinalSize)),
		"quality", res.FinalQuality,
		"target_met", res.TargetMet,
	)

	return res, nil
}

// send renders and delivers a reply; failures are logged, never returned, so the dialogue continues
func (s *Service) send(ctx context.Context, chatID int64, r conversation.Reply) {
	metrics.RecordReply(r.Kind.String())

	text, err := s.renderer.Render("telegram/"+r.Kind.String(), r)
	if err != nil {
		s.log.Errorw("Failed to render reply",
			"kind", r.Kind,
			"error", err,
		)
		return
	}

	err = s.messenger.SendMessage(ctx, chatID, text)
	metrics.RecordMessageSent("text", err)
	if err != nil {
		s.log.Warnw("Failed to send reply",
			"chat_id", chatID,
			"kind", r.Kind,
			"error", err,
		)
	}
}

func (s *Service) observe(ctx context.Context, from *conversation.Session, ev conversation.Event, out Outcome) {
	metrics.RecordTransition(from.State.String(), ev.Kind.String(), out.Session.State.String())

	s.log.Debugw("Conversation transition",
		"telegram_id", from.TelegramID,
		"from", from.State,
		"event", ev.Kind,
		"to", out.Session.State,
		"job", out.Job != nil,
	)

	if s.tracker != nil {
		s.tracker.AddBreadcrumb(ctx, fmt.Sprintf("%s -> %s", from.State, out.Session.State), "conversation", errors.LevelInfo,
			map[string]interface{}{"event": ev.Kind.String()})
	}
}

func (s *Service) capture(ctx context.Context, err error, job *Job) {
	if s.tracker == nil {
		return
	}
	_ = s.tracker.CaptureError(ctx, err, map[string]string{
		"component": "conversation",
		"unit":      job.Target.Unit.String(),
		"quality":   fmt.Sprint(job.Quality),
	})
}
