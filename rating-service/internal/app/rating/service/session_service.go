package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"peerrate/pkg/logger"
	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
	"peerrate/rating-service/internal/app/rating/repository"

	"github.com/google/uuid"
)

// errStaleSubmit - сессия уже не ждет ответа на отправку (отменена или изменена)
var errStaleSubmit = errors.New("rating session is no longer submitting")

const (
	// DefaultStaleSubmitAfter - через сколько SUBMITTING без ответа считается оборванной отправкой
	DefaultStaleSubmitAfter = time.Minute
	// finalizeTimeout ограничивает запись результата отправки после ответа Core API
	finalizeTimeout = 10 * time.Second
	publishTimeout  = 5 * time.Second

	staleSubmitMessage = "Previous submission was interrupted. Please try again."
)

// SessionService ведет сессию оценки от проверки права до отправки.
// Все изменения сессии проходят через SessionRepository.Update
type SessionService struct {
	sessions    repository.SessionRepository
	categories  *CategoryResolver
	eligibility *EligibilityChecker
	submitter   *RatingSubmitter
	views       ViewInvalidator
	audit       AuditRecorder
	publisher   infrastructure.MessagePublisher

	staleSubmitAfter time.Duration
}

// NewSessionService создает новый сервис сессий с внедрением зависимостей
func NewSessionService(
	sessions repository.SessionRepository,
	categories *CategoryResolver,
	eligibility *EligibilityChecker,
	submitter *RatingSubmitter,
	views ViewInvalidator,
	audit AuditRecorder,
	publisher infrastructure.MessagePublisher,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		categories:  categories,
		eligibility: eligibility,
		submitter:   submitter,
		views:       views,
		audit:       audit,
		publisher:   publisher,

		staleSubmitAfter: DefaultStaleSubmitAfter,
	}
}

// WithStaleSubmitAfter задает время, после которого зависшая отправка снимается
func (s *SessionService) WithStaleSubmitAfter(d time.Duration) *SessionService {
	if d > 0 {
		s.staleSubmitAfter = d
	}
	return s
}

// Start открывает сессию оценки
// 1. Определяет role_context по ролям пользователей
// 2. Проверяет право на оценку; неуспешная проверка сохраняется как INELIGIBLE
// 3. Загружает категории и строит пустую матрицу оценок
func (s *SessionService) Start(ctx context.Context, actor entity.Actor, req *entity.StartSessionRequest) (*entity.SessionResponse, error) {
	if req.RateeID <= 0 {
		return nil, ErrInvalidRatee
	}

	rc, err := resolveRoleContext(actor, req)
	if err != nil {
		return nil, err
	}

	session := entity.NewRatingSession(actor.UserID, req.RateeID, rc)
	if err := session.Transition(entity.SessionStateEligibilityChecking); err != nil {
		return nil, err
	}

	result, err := s.eligibility.Check(ctx, actor, req.RateeID, rc)
	if err != nil {
		return nil, err
	}
	session.Eligibility = result

	if !result.Eligible {
		if err := session.Transition(entity.SessionStateIneligible); err != nil {
			return nil, err
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to save rating session: %w", err)
		}
		return session.View(), nil
	}

	if err := session.Transition(entity.SessionStateEligible); err != nil {
		return nil, err
	}
	if err := session.Transition(entity.SessionStateCategoriesLoading); err != nil {
		return nil, err
	}

	categories, err := s.categories.Resolve(ctx, actor, rc)
	if err != nil {
		return nil, err
	}
	matrix, err := entity.NewScoreMatrix(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to build score matrix: %w", err)
	}
	session.Matrix = matrix

	if err := session.Transition(entity.SessionStateCategoriesReady); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save rating session: %w", err)
	}

	metrics.RatingSessionsStarted.WithLabelValues(string(rc)).Inc()
	logger.Info().
		Str("session_id", session.ID.String()).
		Int64("rater_id", actor.UserID).
		Int64("ratee_id", req.RateeID).
		Str("role_context", string(rc)).
		Int("categories", len(categories)).
		Msg("Rating session started")

	return session.View(), nil
}

// resolveRoleContext: явный role_context, иначе по паре ролей, иначе единственный контекст роли оценивающего
func resolveRoleContext(actor entity.Actor, req *entity.StartSessionRequest) (entity.RoleContext, error) {
	if req.RoleContext != "" {
		return entity.ParseRoleContext(req.RoleContext)
	}
	if req.RateeRole != "" {
		return entity.ContextFor(actor.Role, entity.UserRole(req.RateeRole))
	}
	if rc, ok := actor.Role.RaterContext(); ok {
		return rc, nil
	}
	return "", entity.ErrInvalidRoleContext
}

// Get возвращает сессию владельцу. Чужая сессия не отличается от несуществующей
func (s *SessionService) Get(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.SessionResponse, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, mapSessionError(err)
	}
	if session.RaterID != actor.UserID {
		return nil, ErrSessionNotFound
	}

	return session.View(), nil
}

// SetScore выставляет оценку категории, сессия переходит в SCORING или SUBMITTABLE
func (s *SessionService) SetScore(ctx context.Context, actor entity.Actor, id uuid.UUID, req *entity.SetScoreRequest) (*entity.SessionResponse, error) {
	session, err := s.sessions.Update(ctx, id, func(rs *entity.RatingSession) error {
		if err := s.checkEditable(actor, rs); err != nil {
			return err
		}

		if err := rs.Matrix.SetScore(req.Category, req.Score); err != nil {
			switch {
			case errors.Is(err, entity.ErrUnknownCategory):
				return entity.NewFieldError("category", req.Category, "Unknown rating category")
			case errors.Is(err, entity.ErrScoreOutOfRange):
				return entity.NewFieldError("score", req.Category, "Please provide a rating between 1 and 5")
			}
			return err
		}

		return rs.Transition(rs.ScoredState())
	})
	if err != nil {
		return nil, mapSessionError(err)
	}

	return session.View(), nil
}

// UpdateDetails меняет флаг анонимности и текст отзыва
func (s *SessionService) UpdateDetails(ctx context.Context, actor entity.Actor, id uuid.UUID, req *entity.UpdateDetailsRequest) (*entity.SessionResponse, error) {
	if req.FeedbackMessage != nil {
		if err := entity.ValidateFeedback(*req.FeedbackMessage); err != nil {
			return nil, err
		}
	}

	session, err := s.sessions.Update(ctx, id, func(rs *entity.RatingSession) error {
		if err := s.checkEditable(actor, rs); err != nil {
			return err
		}

		if req.IsAnonymous != nil {
			rs.IsAnonymous = *req.IsAnonymous
		}
		if req.FeedbackMessage != nil {
			rs.FeedbackMessage = *req.FeedbackMessage
		}
		rs.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, mapSessionError(err)
	}

	return session.View(), nil
}

// Submit отправляет оценку в Core API
// 1. Атомарно переводит сессию в SUBMITTING, повторный запрос получает ErrSubmitInProgress
// 2. При успехе удаляет сессию, сбрасывает кеши, публикует RATING_SUBMITTED
// 3. При ошибке возвращает сессию в SUBMITTABLE с текстом ошибки
// Шаги 2 и 3 выполняются на отвязанном от запроса контексте
func (s *SessionService) Submit(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.SubmitResponse, error) {
	session, err := s.sessions.Update(ctx, id, func(rs *entity.RatingSession) error {
		if err := s.checkEditable(actor, rs); err != nil {
			return err
		}
		if missing := rs.Matrix.Missing(); len(missing) > 0 {
			return entity.MissingScoresError(missing)
		}
		if err := rs.Draft().Validate(); err != nil {
			return err
		}

		if rs.State != entity.SessionStateSubmittable {
			if err := rs.Transition(entity.SessionStateSubmittable); err != nil {
				return err
			}
		}
		rs.LastError = ""
		return rs.Transition(entity.SessionStateSubmitting)
	})
	if err != nil {
		return nil, mapSessionError(err)
	}

	rating, submitErr := s.submitter.Submit(ctx, actor, session.Draft())

	// Результат фиксируется и при обрыве клиентского запроса
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if submitErr != nil {
		s.restoreAfterFailure(finalizeCtx, session.ID, submitErr)
		s.audit.Record(finalizeCtx, session, nil, submitErr)
		return nil, submitErr
	}

	if err := s.sessions.Delete(finalizeCtx, session.ID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// Сессию отменили во время отправки, поздний ответ ее не восстанавливает
			logger.Info().
				Str("session_id", session.ID.String()).
				Msg("Rating submitted after session was cancelled")
		} else {
			logger.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to delete submitted session")
		}
	}

	s.views.InvalidateAfterSubmit(finalizeCtx, actor.UserID, session.RateeID)
	s.publishRatingSubmitted(finalizeCtx, session, rating)
	s.audit.Record(finalizeCtx, session, rating, nil)
	metrics.RatingAggregate.WithLabelValues(string(session.RoleContext)).Observe(session.Matrix.Aggregate())

	if err := session.Transition(entity.SessionStateSubmitted); err != nil {
		return nil, err
	}

	return &entity.SubmitResponse{
		Session: session.View(),
		Rating:  rating,
	}, nil
}

// restoreAfterFailure возвращает сессию к редактированию, оценки сохраняются
func (s *SessionService) restoreAfterFailure(ctx context.Context, id uuid.UUID, submitErr error) {
	message := submitErr.Error()
	var submitError *SubmitError
	if errors.As(submitErr, &submitError) {
		message = submitError.Message
	}

	_, err := s.sessions.Update(ctx, id, func(rs *entity.RatingSession) error {
		if rs.State != entity.SessionStateSubmitting {
			return errStaleSubmit
		}
		if err := rs.Transition(entity.SessionStateSubmitFailed); err != nil {
			return err
		}
		rs.LastError = message
		return rs.Transition(rs.ScoredState())
	})
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) && !errors.Is(err, errStaleSubmit) {
		logger.Error().Err(err).Str("session_id", id.String()).Msg("Failed to restore session after submit failure")
	}
}

// Cancel удаляет сессию (пользователь ушел со страницы оценки)
func (s *SessionService) Cancel(ctx context.Context, actor entity.Actor, id uuid.UUID) error {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return mapSessionError(err)
	}
	if session.RaterID != actor.UserID {
		return ErrSessionNotFound
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return mapSessionError(err)
	}

	return nil
}

// publishRatingSubmitted отправляет событие в Kafka. Ошибка не влияет на результат отправки
func (s *SessionService) publishRatingSubmitted(ctx context.Context, session *entity.RatingSession, rating *entity.Rating) {
	event := entity.RatingEvent{
		EventType:   entity.EventTypeRatingSubmitted,
		RatingID:    rating.ID,
		RateeID:     session.RateeID,
		RoleContext: session.RoleContext,
		Aggregate:   session.Matrix.Aggregate(),
		IsAnonymous: session.IsAnonymous,
		Timestamp:   time.Now(),
	}
	if !session.IsAnonymous {
		raterID := session.RaterID
		event.RaterID = &raterID
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal rating event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.publisher.PublishMessage(ctx, strconv.FormatInt(rating.ID, 10), data); err != nil {
		logger.Error().
			Err(err).
			Int64("rating_id", rating.ID).
			Msg("Failed to publish rating submitted event")
	}
}

// checkEditable вызывается внутри Update: снятие зависшей отправки сохраняется вместе с изменением
func (s *SessionService) checkEditable(actor entity.Actor, rs *entity.RatingSession) error {
	if rs.RaterID != actor.UserID {
		return ErrSessionNotFound
	}
	if rs.State == entity.SessionStateSubmitting {
		if !rs.SubmitStale(time.Now(), s.staleSubmitAfter) {
			return ErrSubmitInProgress
		}
		if err := s.recoverStaleSubmit(rs); err != nil {
			return err
		}
	}
	if !rs.Editable() {
		return fmt.Errorf("%w: %s", ErrInvalidState, rs.State)
	}
	return nil
}

// recoverStaleSubmit возвращает оборванную отправку к редактированию.
// Если Core API все же создал оценку, повторная отправка получит его бизнес-отказ
func (s *SessionService) recoverStaleSubmit(rs *entity.RatingSession) error {
	logger.Warn().
		Str("session_id", rs.ID.String()).
		Time("submitting_since", *rs.SubmittingSince).
		Msg("Recovering stale rating submission")

	if err := rs.Transition(entity.SessionStateSubmitFailed); err != nil {
		return err
	}
	rs.LastError = staleSubmitMessage
	return rs.Transition(rs.ScoredState())
}

func mapSessionError(err error) error {
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		return ErrSessionBusy
	}
	return err
}
