package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
	"peerrate/rating-service/internal/app/rating/repository"
	"peerrate/rating-service/internal/app/rating/repository/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// SessionServiceTestSuite - сессии в miniredis, Core API и остальные зависимости замоканы
type SessionServiceTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	sessions  repository.SessionRepository
	core      *mocks.MockCoreAPIClient
	cache     *mocks.MockViewCache
	audits    *mocks.MockSubmissionRepository
	publisher *mocks.MockMessagePublisher
	service   *SessionService
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceTestSuite))
}

func (s *SessionServiceTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{Addr: s.miniRedis.Addr()})
	s.sessions = repository.NewRedisSessionRepository(s.client, 30*time.Minute)

	s.core = new(mocks.MockCoreAPIClient)
	s.cache = new(mocks.MockViewCache)
	s.audits = new(mocks.MockSubmissionRepository)
	s.publisher = new(mocks.MockMessagePublisher)

	s.service = NewSessionService(
		s.sessions,
		NewCategoryResolver(s.core),
		NewEligibilityChecker(s.core),
		NewRatingSubmitter(s.core),
		NewViewService(s.core, s.cache),
		NewAuditService(s.audits),
		s.publisher,
	)
}

func (s *SessionServiceTestSuite) TearDownTest() {
	s.client.Close()
	s.miniRedis.Close()
}

// startReady открывает сессию с категориями A и B для testActor -> ratee 2
func (s *SessionServiceTestSuite) startReady() *entity.SessionResponse {
	s.core.On("CheckEligibility", mock.Anything, "token", int64(2), entity.RoleContextEmployerToEmployee).
		Return(&entity.EligibilityResult{Eligible: true}, nil).Once()
	s.core.On("FetchCategories", mock.Anything, "token", entity.RoleContextEmployerToEmployee).
		Return([]byte(`["A","B"]`), nil).Once()

	view, err := s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: 2})
	s.Require().NoError(err)
	return view
}

func (s *SessionServiceTestSuite) scoreAll(id uuid.UUID) {
	ctx := context.Background()
	_, err := s.service.SetScore(ctx, testActor, id, &entity.SetScoreRequest{Category: "A", Score: 4})
	s.Require().NoError(err)
	_, err = s.service.SetScore(ctx, testActor, id, &entity.SetScoreRequest{Category: "B", Score: 5})
	s.Require().NoError(err)
}

// ===================== Start Tests =====================

func (s *SessionServiceTestSuite) TestStart_Ready() {
	view := s.startReady()

	s.Equal(entity.SessionStateCategoriesReady, view.State)
	s.Equal(entity.RoleContextEmployerToEmployee, view.RoleContext)
	s.Equal([]entity.CategoryScore{{Category: "A"}, {Category: "B"}}, view.Categories)
	s.Equal(0.0, view.Aggregate)
	s.False(view.Submittable)
	s.Equal([]string{"A", "B"}, view.Missing)
	s.True(view.Eligibility.Eligible)
}

func (s *SessionServiceTestSuite) TestStart_IneligibleIsStoredWithoutCategories() {
	s.core.On("CheckEligibility", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&entity.EligibilityResult{Eligible: false}, nil)

	view, err := s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: 2})

	s.NoError(err)
	s.Equal(entity.SessionStateIneligible, view.State)
	s.Equal(DefaultIneligibleReason, view.Eligibility.Reason)
	s.Empty(view.Categories)
	s.core.AssertNotCalled(s.T(), "FetchCategories", mock.Anything, mock.Anything, mock.Anything)

	stored, err := s.service.Get(context.Background(), testActor, view.ID)
	s.NoError(err)
	s.Equal(entity.SessionStateIneligible, stored.State)
}

func (s *SessionServiceTestSuite) TestStart_SelfRating() {
	view, err := s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: testActor.UserID})

	s.NoError(err)
	s.Equal(entity.SessionStateIneligible, view.State)
	s.Equal(SelfRatingReason, view.Eligibility.Reason)
}

func (s *SessionServiceTestSuite) TestStart_EligibilityUnavailableCreatesNothing() {
	s.core.On("CheckEligibility", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &infrastructure.APIError{StatusCode: 503, Message: "down"})

	view, err := s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: 2})

	s.ErrorIs(err, ErrEligibilityUnavailable)
	s.Nil(view)
	s.Empty(s.miniRedis.Keys())
}

func (s *SessionServiceTestSuite) TestStart_RoleContextFromRoles() {
	employee := entity.Actor{UserID: 5, Role: entity.UserRoleEmployee, Token: "t"}
	s.core.On("CheckEligibility", mock.Anything, "t", int64(9), entity.RoleContextEmployeeToCompany).
		Return(&entity.EligibilityResult{Eligible: true}, nil)
	s.core.On("FetchCategories", mock.Anything, "t", entity.RoleContextEmployeeToCompany).
		Return(nil, errors.New("connection refused"))

	view, err := s.service.Start(context.Background(), employee, &entity.StartSessionRequest{RateeID: 9, RateeRole: "employer"})

	s.NoError(err)
	s.Equal(entity.RoleContextEmployeeToCompany, view.RoleContext)
	// Core API недоступен - встроенный список
	s.Len(view.Categories, 6)
	s.Equal("Work Environment", view.Categories[0].Category)
}

func (s *SessionServiceTestSuite) TestStart_InvalidInput() {
	_, err := s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: 0})
	s.ErrorIs(err, ErrInvalidRatee)

	_, err = s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: 2, RateeRole: "employer"})
	s.ErrorIs(err, entity.ErrInvalidRoleContext)

	_, err = s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: 2, RoleContext: "NOPE"})
	s.ErrorIs(err, entity.ErrInvalidRoleContext)

	// В токене нет роли, по ratee_role контекст не определить
	noRole := entity.Actor{UserID: 5, Token: "t"}
	_, err = s.service.Start(context.Background(), noRole, &entity.StartSessionRequest{RateeID: 2, RateeRole: "employee"})
	s.ErrorIs(err, entity.ErrInvalidUserRole)
}

// ===================== Scoring Tests =====================

func (s *SessionServiceTestSuite) TestSetScore_Transitions() {
	ctx := context.Background()
	view := s.startReady()

	// Act - первая оценка
	view, err := s.service.SetScore(ctx, testActor, view.ID, &entity.SetScoreRequest{Category: "A", Score: 4})

	// Assert - среднее по выставленным, отправить еще нельзя
	s.NoError(err)
	s.Equal(entity.SessionStateScoring, view.State)
	s.Equal(4.0, view.Aggregate)
	s.False(view.Submittable)
	s.Equal([]string{"B"}, view.Missing)

	// Act - вторая оценка
	view, err = s.service.SetScore(ctx, testActor, view.ID, &entity.SetScoreRequest{Category: "B", Score: 5})

	s.NoError(err)
	s.Equal(entity.SessionStateSubmittable, view.State)
	s.Equal(4.5, view.Aggregate)
	s.True(view.Submittable)
	s.Empty(view.Missing)
}

func (s *SessionServiceTestSuite) TestSetScore_ValidationErrors() {
	ctx := context.Background()
	view := s.startReady()

	_, err := s.service.SetScore(ctx, testActor, view.ID, &entity.SetScoreRequest{Category: "Z", Score: 3})
	var verr *entity.ValidationError
	s.Require().True(errors.As(err, &verr))
	s.Equal([]string{"Z"}, verr.Categories())

	_, err = s.service.SetScore(ctx, testActor, view.ID, &entity.SetScoreRequest{Category: "A", Score: 6})
	s.ErrorIs(err, entity.ErrValidation)
}

func (s *SessionServiceTestSuite) TestSetScore_IneligibleSession() {
	view, err := s.service.Start(context.Background(), testActor, &entity.StartSessionRequest{RateeID: testActor.UserID})
	s.Require().NoError(err)

	_, err = s.service.SetScore(context.Background(), testActor, view.ID, &entity.SetScoreRequest{Category: "A", Score: 3})

	s.ErrorIs(err, ErrInvalidState)
}

func (s *SessionServiceTestSuite) TestSessionOwnership() {
	view := s.startReady()
	stranger := entity.Actor{UserID: 99, Role: entity.UserRoleEmployer, Token: "x"}

	_, err := s.service.Get(context.Background(), stranger, view.ID)
	s.ErrorIs(err, ErrSessionNotFound)

	_, err = s.service.SetScore(context.Background(), stranger, view.ID, &entity.SetScoreRequest{Category: "A", Score: 3})
	s.ErrorIs(err, ErrSessionNotFound)

	s.ErrorIs(s.service.Cancel(context.Background(), stranger, view.ID), ErrSessionNotFound)

	_, err = s.service.Get(context.Background(), testActor, uuid.New())
	s.ErrorIs(err, ErrSessionNotFound)
}

func (s *SessionServiceTestSuite) TestUpdateDetails() {
	ctx := context.Background()
	view := s.startReady()
	anonymous := true
	feedback := "Great teammate"

	view, err := s.service.UpdateDetails(ctx, testActor, view.ID, &entity.UpdateDetailsRequest{
		IsAnonymous:     &anonymous,
		FeedbackMessage: &feedback,
	})

	s.NoError(err)
	s.True(view.IsAnonymous)
	s.Equal("Great teammate", view.FeedbackMessage)

	tooLong := strings.Repeat("я", entity.MaxFeedbackLength+1)
	_, err = s.service.UpdateDetails(ctx, testActor, view.ID, &entity.UpdateDetailsRequest{FeedbackMessage: &tooLong})
	s.ErrorIs(err, entity.ErrValidation)

	stored, err := s.service.Get(ctx, testActor, view.ID)
	s.NoError(err)
	s.Equal("Great teammate", stored.FeedbackMessage)
}

// ===================== Submit Tests =====================

func (s *SessionServiceTestSuite) TestSubmit_IncompleteListsMissing() {
	view := s.startReady()
	_, err := s.service.SetScore(context.Background(), testActor, view.ID, &entity.SetScoreRequest{Category: "A", Score: 4})
	s.Require().NoError(err)

	resp, err := s.service.Submit(context.Background(), testActor, view.ID)

	s.Nil(resp)
	var verr *entity.ValidationError
	s.Require().True(errors.As(err, &verr))
	s.Equal([]string{"B"}, verr.Categories())
	s.core.AssertNotCalled(s.T(), "CreateRating", mock.Anything, mock.Anything, mock.Anything)
}

func (s *SessionServiceTestSuite) TestSubmit_Success() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)
	anonymous := true
	_, err := s.service.UpdateDetails(ctx, testActor, view.ID, &entity.UpdateDetailsRequest{IsAnonymous: &anonymous})
	s.Require().NoError(err)

	s.core.On("CreateRating", mock.Anything, "token", mock.MatchedBy(func(req *entity.CreateRatingRequest) bool {
		return req.Ratee == 2 && req.IsAnonymous && len(req.CategoryScores) == 2
	})).Return(&entity.Rating{ID: 10, Ratee: 2, RoleContext: entity.RoleContextEmployerToEmployee}, nil)
	s.cache.On("InvalidateAfterSubmit", mock.Anything, testActor.UserID, int64(2)).Return(nil)
	s.publisher.On("PublishMessage", mock.Anything, "10", mock.Anything).Return(nil)
	s.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *entity.SubmissionAudit) bool {
		return a.Outcome == entity.SubmissionOutcomeSuccess && a.Aggregate == 4.5
	})).Return(nil)

	// Act
	resp, err := s.service.Submit(ctx, testActor, view.ID)

	// Assert
	s.NoError(err)
	s.Equal(entity.SessionStateSubmitted, resp.Session.State)
	s.Equal(int64(10), resp.Rating.ID)
	s.cache.AssertExpectations(s.T())
	s.audits.AssertExpectations(s.T())

	// Черновик уничтожен
	_, err = s.service.Get(ctx, testActor, view.ID)
	s.ErrorIs(err, ErrSessionNotFound)

	// Анонимная оценка не раскрывает оценившего
	s.Require().Len(s.publisher.Messages, 1)
	var event map[string]interface{}
	s.Require().NoError(json.Unmarshal(s.publisher.Messages[0], &event))
	s.Equal(entity.EventTypeRatingSubmitted, event["event_type"])
	s.NotContains(event, "rater_id")
	s.Equal(4.5, event["aggregate"])
}

func (s *SessionServiceTestSuite) TestSubmit_FailureKeepsScores() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)

	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &infrastructure.APIError{StatusCode: 400, Message: "You have already rated this user."})
	s.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *entity.SubmissionAudit) bool {
		return a.Outcome == entity.SubmissionOutcomeFailed
	})).Return(nil)

	// Act
	resp, err := s.service.Submit(ctx, testActor, view.ID)

	// Assert
	s.Nil(resp)
	var submitErr *SubmitError
	s.Require().True(errors.As(err, &submitErr))
	s.Equal(400, submitErr.StatusCode)

	stored, err := s.service.Get(ctx, testActor, view.ID)
	s.NoError(err)
	s.Equal(entity.SessionStateSubmittable, stored.State)
	s.Equal("You have already rated this user.", stored.LastError)
	s.Equal(4.5, stored.Aggregate)
	s.cache.AssertNotCalled(s.T(), "InvalidateAfterSubmit", mock.Anything, mock.Anything, mock.Anything)
	s.publisher.AssertNotCalled(s.T(), "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func (s *SessionServiceTestSuite) TestSubmit_WhileSubmitting() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)

	_, err := s.sessions.Update(ctx, view.ID, func(rs *entity.RatingSession) error {
		return rs.Transition(entity.SessionStateSubmitting)
	})
	s.Require().NoError(err)

	_, err = s.service.Submit(ctx, testActor, view.ID)
	s.ErrorIs(err, ErrSubmitInProgress)

	_, err = s.service.SetScore(ctx, testActor, view.ID, &entity.SetScoreRequest{Category: "A", Score: 1})
	s.ErrorIs(err, ErrSubmitInProgress)
	s.core.AssertNotCalled(s.T(), "CreateRating", mock.Anything, mock.Anything, mock.Anything)
}

func (s *SessionServiceTestSuite) TestSubmit_CancelledDuringSubmit() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)

	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// Пользователь ушел со страницы, пока запрос был в пути
			s.Require().NoError(s.service.Cancel(ctx, testActor, view.ID))
		}).
		Return(&entity.Rating{ID: 11}, nil)
	s.cache.On("InvalidateAfterSubmit", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.publisher.On("PublishMessage", mock.Anything, "11", mock.Anything).Return(nil)
	s.audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	resp, err := s.service.Submit(ctx, testActor, view.ID)

	s.NoError(err)
	s.Equal(int64(11), resp.Rating.ID)
	s.Empty(s.miniRedis.Keys())
	s.cache.AssertExpectations(s.T())
	s.publisher.AssertExpectations(s.T())
}

func (s *SessionServiceTestSuite) TestSubmit_FailureAfterCancelDoesNotResurrect() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)

	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			s.Require().NoError(s.service.Cancel(ctx, testActor, view.ID))
		}).
		Return(nil, &infrastructure.APIError{StatusCode: 500, Message: "boom"})
	s.audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := s.service.Submit(ctx, testActor, view.ID)

	s.ErrorIs(err, ErrSubmitFailed)
	s.Empty(s.miniRedis.Keys())
}

func (s *SessionServiceTestSuite) TestSubmit_ClientGoneRestoresSession() {
	view := s.startReady()
	s.scoreAll(view.ID)

	ctx, cancel := context.WithCancel(context.Background())
	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// Клиент закрыл соединение, пока запрос в Core API был в пути
			cancel()
		}).
		Return(nil, context.Canceled).Once()
	s.audits.On("Create", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(nil)

	// Act
	_, err := s.service.Submit(ctx, testActor, view.ID)

	// Assert
	s.ErrorIs(err, ErrSubmitFailed)

	stored, err := s.service.Get(context.Background(), testActor, view.ID)
	s.Require().NoError(err)
	s.Equal(entity.SessionStateSubmittable, stored.State)
	s.Equal(unreachableMessage, stored.LastError)
	s.Equal(4.5, stored.Aggregate)

	// Повторная отправка с новым запросом проходит
	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).
		Return(&entity.Rating{ID: 13}, nil).Once()
	s.cache.On("InvalidateAfterSubmit", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.publisher.On("PublishMessage", mock.Anything, "13", mock.Anything).Return(nil)

	resp, err := s.service.Submit(context.Background(), testActor, view.ID)

	s.Require().NoError(err)
	s.Equal(int64(13), resp.Rating.ID)
	s.audits.AssertNumberOfCalls(s.T(), "Create", 2)
}

func (s *SessionServiceTestSuite) TestSubmit_FinalizesOnDetachedContext() {
	view := s.startReady()
	s.scoreAll(view.ID)

	ctx, cancel := context.WithCancel(context.Background())
	alive := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return(&entity.Rating{ID: 14}, nil)
	s.cache.On("InvalidateAfterSubmit", alive, testActor.UserID, int64(2)).Return(nil)
	s.publisher.On("PublishMessage", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ctx.Err() == nil && ok && time.Until(deadline) <= publishTimeout
	}), "14", mock.Anything).Return(nil)
	s.audits.On("Create", alive, mock.Anything).Return(nil)

	// Act
	resp, err := s.service.Submit(ctx, testActor, view.ID)

	// Assert
	s.Require().NoError(err)
	s.Equal(int64(14), resp.Rating.ID)
	s.Empty(s.miniRedis.Keys())
	s.cache.AssertExpectations(s.T())
	s.publisher.AssertExpectations(s.T())
	s.audits.AssertExpectations(s.T())
}

func (s *SessionServiceTestSuite) TestSetScore_RecoversStaleSubmit() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)

	// Процесс упал во время отправки: сессия осталась в SUBMITTING
	_, err := s.sessions.Update(ctx, view.ID, func(rs *entity.RatingSession) error {
		if err := rs.Transition(entity.SessionStateSubmitting); err != nil {
			return err
		}
		startedAt := time.Now().Add(-2 * DefaultStaleSubmitAfter)
		rs.SubmittingSince = &startedAt
		return nil
	})
	s.Require().NoError(err)

	updated, err := s.service.SetScore(ctx, testActor, view.ID, &entity.SetScoreRequest{Category: "A", Score: 2})

	s.Require().NoError(err)
	s.Equal(entity.SessionStateSubmittable, updated.State)
	s.Equal(staleSubmitMessage, updated.LastError)
	s.Equal(3.5, updated.Aggregate)
}

func (s *SessionServiceTestSuite) TestSubmit_StaleSubmitThresholdIsConfigurable() {
	ctx := context.Background()
	s.service.WithStaleSubmitAfter(time.Hour)
	view := s.startReady()
	s.scoreAll(view.ID)

	_, err := s.sessions.Update(ctx, view.ID, func(rs *entity.RatingSession) error {
		if err := rs.Transition(entity.SessionStateSubmitting); err != nil {
			return err
		}
		startedAt := time.Now().Add(-2 * DefaultStaleSubmitAfter)
		rs.SubmittingSince = &startedAt
		return nil
	})
	s.Require().NoError(err)

	_, err = s.service.Submit(ctx, testActor, view.ID)

	s.ErrorIs(err, ErrSubmitInProgress)
	s.core.AssertNotCalled(s.T(), "CreateRating", mock.Anything, mock.Anything, mock.Anything)
}

func (s *SessionServiceTestSuite) TestSubmit_PublishFailureDoesNotFailSubmit() {
	ctx := context.Background()
	view := s.startReady()
	s.scoreAll(view.ID)

	s.core.On("CreateRating", mock.Anything, mock.Anything, mock.Anything).Return(&entity.Rating{ID: 12}, nil)
	s.cache.On("InvalidateAfterSubmit", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	s.publisher.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))
	s.audits.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	resp, err := s.service.Submit(ctx, testActor, view.ID)

	s.NoError(err)
	s.Equal(int64(12), resp.Rating.ID)

	var event map[string]interface{}
	s.Require().NoError(json.Unmarshal(s.publisher.Messages[0], &event))
	s.Equal(float64(testActor.UserID), event["rater_id"])
}

// ===================== Cancel Tests =====================

func (s *SessionServiceTestSuite) TestCancel() {
	view := s.startReady()

	s.NoError(s.service.Cancel(context.Background(), testActor, view.ID))

	_, err := s.service.Get(context.Background(), testActor, view.ID)
	s.ErrorIs(err, ErrSessionNotFound)
	s.ErrorIs(s.service.Cancel(context.Background(), testActor, view.ID), ErrSessionNotFound)
}
