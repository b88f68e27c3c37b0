package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func newAuthServiceForTest() (*AuthService, *mockAuthRepo) {
	repo := new(mockAuthRepo)
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	return NewAuthService(repo, tokens), repo
}

func TestAuthService_Register(t *testing.T) {
	svc, repo := newAuthServiceForTest()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "new@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = uuid.New()
	}).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "new@example.com",
		Password: "strongpassword",
		Name:     "Анна",
		UserType: models.UserTypeExecutor,
	}, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	assert.Equal(t, "new@example.com", result.User.Email)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newAuthServiceForTest()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "плохой", Password: "strongpassword", UserType: models.UserTypeCustomer}, nil)
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.ru", Password: "семь", UserType: models.UserTypeCustomer}, nil)
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.ru", Password: "strongpassword", UserType: "admin"}, nil)
	assert.Error(t, err)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	svc, repo := newAuthServiceForTest()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "busy@example.com").Return(&models.User{ID: uuid.New()}, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email: "busy@example.com", Password: "strongpassword", UserType: models.UserTypeCustomer,
	}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "уже зарегистрирован")
}

func TestAuthService_Login(t *testing.T) {
	svc, repo := newAuthServiceForTest()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("strongpassword"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: string(hash)}

	repo.On("GetByEmail", ctx, "user@example.com").Return(user, nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Login(ctx, LoginInput{Email: "User@Example.com", Password: "strongpassword"}, map[string]string{"ip": "127.0.0.1"})
	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)

	_, err = svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "wrongpassword"}, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	svc, repo := newAuthServiceForTest()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, repository.ErrUserNotFound)

	_, err := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever123"}, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	svc, repo := newAuthServiceForTest()
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "user@example.com", Type: models.UserTypeCustomer}

	repo.On("GetByEmail", ctx, mock.Anything).Return(nil, repository.ErrUserNotFound).Maybe()
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	pair, _, _, err := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour).GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(&models.Session{
		UserID: user.ID, RefreshToken: pair.RefreshToken,
	}, nil)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)

	result, err := svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, result.TokenPair.RefreshToken)
	repo.AssertCalled(t, "DeleteSession", ctx, pair.RefreshToken)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	svc, _ := newAuthServiceForTest()

	_, err := svc.Refresh(context.Background(), "мусор", nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAuthService_Logout_MissingSessionIsFine(t *testing.T) {
	svc, repo := newAuthServiceForTest()
	ctx := context.Background()

	repo.On("DeleteSession", ctx, "token").Return(repository.ErrSessionNotFound)

	assert.NoError(t, svc.Logout(ctx, "token"))
}

func TestTokenManager_ParseAccess(t *testing.T) {
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	user := &models.User{ID: uuid.New(), Type: models.UserTypeMediator}

	pair, _, _, err := tokens.GeneratePair(user)
	assert.NoError(t, err)

	userID, userType, err := tokens.ParseAccess(pair.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.UserTypeMediator, userType)

	// Подпись другим секретом не принимается
	other := NewTokenManager("another-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	_, _, err = other.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}
