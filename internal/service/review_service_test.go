package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepo) GetByOrderAndReviewer(ctx context.Context, orderID, reviewerID uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, orderID, reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewRepo) CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepo) ListByReviewed(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error) {
	args := m.Called(ctx, reviewedID, limit, offset)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *mockReviewRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Review, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.Review), args.Error(1)
}

type mockReviewOrderRepo struct {
	mock.Mock
}

func (m *mockReviewOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockReviewOrderRepo) ForceCompleteFromReviews(ctx context.Context, orderID uuid.UUID) (*models.Order, bool, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Order), args.Bool(1), args.Error(2)
}

type mockRatingUpdater struct {
	mock.Mock
}

func (m *mockRatingUpdater) UpdateRating(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newReviewServiceForTest() (*ReviewService, *mockReviewRepo, *mockReviewOrderRepo, *mockRatingUpdater, *mockEscrow, *mockNotifications) {
	repo := new(mockReviewRepo)
	orders := new(mockReviewOrderRepo)
	users := new(mockRatingUpdater)
	escrow := new(mockEscrow)
	notifications := new(mockNotifications)
	return NewReviewService(repo, orders, users, escrow, notifications), repo, orders, users, escrow, notifications
}

func TestReviewService_Create_RatingBounds(t *testing.T) {
	svc, _, _, _, _, _ := newReviewServiceForTest()
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.New(), uuid.New(), 0, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), uuid.New(), 6, nil)
	assert.Error(t, err)
}

func TestReviewService_Create_Success(t *testing.T) {
	svc, repo, orders, users, _, notifications := newReviewServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, ExecutorID: &executorID, Status: models.OrderStatusCompleted, Title: "Ремонт",
	}, nil)
	repo.On("GetByOrderAndReviewer", ctx, orderID, authorID).Return(nil, repository.ErrReviewNotFound)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	users.On("UpdateRating", ctx, executorID).Return(nil)
	notifications.On("Notify", ctx, executorID, models.NotificationTypeNewReview, mock.Anything, mock.Anything, mock.Anything).Return()
	repo.On("CountByOrder", ctx, orderID).Return(1, nil)

	review, err := svc.Create(ctx, orderID, authorID, 5, nil)
	assert.NoError(t, err)
	assert.Equal(t, executorID, review.ReviewedID)
	users.AssertExpectations(t)
}

func TestReviewService_Create_NotCompleted(t *testing.T) {
	svc, _, orders, _, _, _ := newReviewServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, ExecutorID: &executorID, Status: models.OrderStatusInWork,
	}, nil)

	_, err := svc.Create(ctx, orderID, authorID, 5, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestReviewService_Create_Stranger(t *testing.T) {
	svc, _, orders, _, _, _ := newReviewServiceForTest()
	ctx := context.Background()
	executorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: uuid.New(), ExecutorID: &executorID, Status: models.OrderStatusCompleted,
	}, nil)

	_, err := svc.Create(ctx, orderID, uuid.New(), 4, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestReviewService_Create_Duplicate(t *testing.T) {
	svc, repo, orders, _, _, _ := newReviewServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, ExecutorID: &executorID, Status: models.OrderStatusCompleted,
	}, nil)
	repo.On("GetByOrderAndReviewer", ctx, orderID, authorID).Return(&models.Review{
		ID: uuid.New(), OrderID: orderID, ReviewerID: authorID,
	}, nil)

	_, err := svc.Create(ctx, orderID, authorID, 5, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestReviewService_Create_BothReviewsForceComplete(t *testing.T) {
	svc, repo, orders, users, escrow, notifications := newReviewServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	awaiting := &models.Order{
		ID: orderID, AuthorID: authorID, ExecutorID: &executorID,
		Status: models.OrderStatusAwaitingConfirmation, Title: "Ремонт",
	}
	completed := &models.Order{
		ID: orderID, AuthorID: authorID, ExecutorID: &executorID,
		Status: models.OrderStatusCompleted, Title: "Ремонт",
	}

	orders.On("GetByID", ctx, orderID).Return(awaiting, nil)
	repo.On("GetByOrderAndReviewer", ctx, orderID, executorID).Return(nil, repository.ErrReviewNotFound)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	users.On("UpdateRating", ctx, authorID).Return(nil)
	notifications.On("Notify", ctx, authorID, models.NotificationTypeNewReview, mock.Anything, mock.Anything, mock.Anything).Return()
	repo.On("CountByOrder", ctx, orderID).Return(2, nil)
	orders.On("ForceCompleteFromReviews", ctx, orderID).Return(completed, true, nil)
	escrow.On("Release", ctx, orderID, executorID).Return()
	notifications.On("Notify", ctx, authorID, models.NotificationTypeOrderCompleted, mock.Anything, mock.Anything, mock.Anything).Return()
	notifications.On("Notify", ctx, executorID, models.NotificationTypeOrderCompleted, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.Create(ctx, orderID, executorID, 5, nil)
	assert.NoError(t, err)
	escrow.AssertExpectations(t)
	notifications.AssertExpectations(t)
}

func TestReviewService_Create_SecondReviewAlreadyCompleted(t *testing.T) {
	svc, repo, orders, users, escrow, notifications := newReviewServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()

	completed := &models.Order{
		ID: orderID, AuthorID: authorID, ExecutorID: &executorID, Status: models.OrderStatusCompleted,
	}

	orders.On("GetByID", ctx, orderID).Return(completed, nil)
	repo.On("GetByOrderAndReviewer", ctx, orderID, executorID).Return(nil, repository.ErrReviewNotFound)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	users.On("UpdateRating", ctx, authorID).Return(nil)
	notifications.On("Notify", ctx, authorID, models.NotificationTypeNewReview, mock.Anything, mock.Anything, mock.Anything).Return()
	repo.On("CountByOrder", ctx, orderID).Return(2, nil)
	orders.On("ForceCompleteFromReviews", ctx, orderID).Return(completed, false, nil)

	_, err := svc.Create(ctx, orderID, executorID, 4, nil)
	assert.NoError(t, err)
	escrow.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_ListForUser_ClampsLimit(t *testing.T) {
	svc, repo, _, _, _, _ := newReviewServiceForTest()
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListByReviewed", ctx, userID, 50, 0).Return([]models.Review{}, nil)

	_, err := svc.ListForUser(ctx, userID, 500, -3)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
