package mocks

import (
	"context"

	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSessionRepository мок для SessionRepository.
// Update применяет fn к сессии, которую вернул мок
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *entity.RatingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*entity.RatingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RatingSession), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, id uuid.UUID, fn repository.SessionFunc) (*entity.RatingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	session := args.Get(0).(*entity.RatingSession)
	if err := fn(session); err != nil {
		return nil, err
	}
	return session, args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockViewCache мок для ViewCache
type MockViewCache struct {
	mock.Mock
}

func (m *MockViewCache) GetPage(ctx context.Context, kind repository.ViewKind, userID int64, page, pageSize int) ([]byte, bool, error) {
	args := m.Called(ctx, kind, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockViewCache) SetPage(ctx context.Context, kind repository.ViewKind, userID int64, page, pageSize int, data []byte) error {
	args := m.Called(ctx, kind, userID, page, pageSize, data)
	return args.Error(0)
}

func (m *MockViewCache) GetStats(ctx context.Context, userID int64) ([]byte, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockViewCache) SetStats(ctx context.Context, userID int64, data []byte) error {
	args := m.Called(ctx, userID, data)
	return args.Error(0)
}

func (m *MockViewCache) InvalidateAfterSubmit(ctx context.Context, raterID, rateeID int64) error {
	args := m.Called(ctx, raterID, rateeID)
	return args.Error(0)
}

// MockSubmissionRepository мок для SubmissionRepository
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, audit *entity.SubmissionAudit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockSubmissionRepository) ListByRater(ctx context.Context, raterID int64, limit int) ([]entity.SubmissionAudit, error) {
	args := m.Called(ctx, raterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SubmissionAudit), args.Error(1)
}

// MockMessagePublisher мок для Kafka MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
	Messages [][]byte
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.Messages = append(m.Messages, value)
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockCoreAPIClient мок для клиента Core API
type MockCoreAPIClient struct {
	mock.Mock
}

func (m *MockCoreAPIClient) FetchCategories(ctx context.Context, token string, rc entity.RoleContext) ([]byte, error) {
	args := m.Called(ctx, token, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCoreAPIClient) CheckEligibility(ctx context.Context, token string, rateeID int64, rc entity.RoleContext) (*entity.EligibilityResult, error) {
	args := m.Called(ctx, token, rateeID, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EligibilityResult), args.Error(1)
}

func (m *MockCoreAPIClient) CreateRating(ctx context.Context, token string, req *entity.CreateRatingRequest) (*entity.Rating, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Rating), args.Error(1)
}

func (m *MockCoreAPIClient) GetMyRatingsGiven(ctx context.Context, token string, page, pageSize int) ([]byte, error) {
	args := m.Called(ctx, token, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCoreAPIClient) GetMyRatingsReceived(ctx context.Context, token string, page, pageSize int) ([]byte, error) {
	args := m.Called(ctx, token, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCoreAPIClient) GetUserStats(ctx context.Context, token string, userID int64) ([]byte, error) {
	args := m.Called(ctx, token, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCoreAPIClient) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
