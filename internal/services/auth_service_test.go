package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

func registration() services.Registration {
	return services.Registration{
		Email:       "Compras@Fazenda.com.br",
		Password:    "password123",
		CompanyName: "Fazenda Boa Vista",
		Document:    "11.222.333/0001-81",
		Phone:       "(65) 99988-7766",
	}
}

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	publisher := &recordingPublisher{}
	notifier := services.NewNotificationService(publisher)
	authService := services.NewAuthService(mockRepo, testJWTSecret, nil, notifier)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "compras@fazenda.com.br").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByDocument", ctx, "11222333000181").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Status == models.UserStatusPending && u.Role == models.RoleCustomer &&
			u.Phone == "65999887766" && bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")) == nil
	})).Return(nil).Once()
	mockRepo.On("ListByRole", ctx, models.RoleAdmin).Return([]models.User{{Email: "admin@agromarket.com.br"}}, nil).Once()

	user, err := authService.RegisterUser(ctx, registration())
	require.NoError(t, err)
	notifier.Wait()
	assert.Equal(t, "compras@fazenda.com.br", user.Email)
	assert.Equal(t, models.UserStatusPending, user.Status)
	mockRepo.AssertExpectations(t)

	assert.Len(t, publisher.byKey(services.RouteRegistration), 1)
	emails := publisher.byKey(services.RouteEmail)
	require.Len(t, emails, 1)
	var msg services.EmailMessage
	decode(t, emails[0].body, &msg)
	assert.Equal(t, "admin@agromarket.com.br", msg.To)

	// Email already registered
	mockRepo.On("GetByEmail", ctx, "compras@fazenda.com.br").Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.RegisterUser(ctx, registration())
	assert.ErrorIs(t, err, services.ErrAlreadyRegistered)
	assert.Contains(t, err.Error(), "email 'compras@fazenda.com.br' already registered")

	// CNPJ already registered
	mockRepo.On("GetByEmail", ctx, "compras@fazenda.com.br").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByDocument", ctx, "11222333000181").Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.RegisterUser(ctx, registration())
	assert.ErrorIs(t, err, services.ErrAlreadyRegistered)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterUser_BotGuard(t *testing.T) {
	mockRepo := new(MockUserRepository)
	guard := services.NewBotGuard(3*time.Second, nil)
	authService := services.NewAuthService(mockRepo, testJWTSecret, guard, nil)

	reg := registration()
	reg.Bot.Honeypot = "http://spam.example"
	_, err := authService.RegisterUser(context.Background(), reg)
	assert.ErrorIs(t, err, services.ErrBotSuspected)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, nil, nil)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Email:    "test@example.com",
		Password: string(hashedPassword),
		Role:     models.RoleCustomer,
		Status:   models.UserStatusApproved,
	}

	// Test successful login
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "Test@Example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Email, claims["email"])
	assert.Equal(t, "customer", claims["role"])

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, user.Email, "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.LoginUser(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Pending accounts cannot log in yet
	pending := *user
	pending.Status = models.UserStatusPending
	mockRepo.On("GetByEmail", ctx, user.Email).Return(&pending, nil).Once()
	_, err = authService.LoginUser(ctx, user.Email, "password123")
	assert.ErrorIs(t, err, services.ErrAccountNotApproved)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, nil, nil)

	token, err := authService.IssueToken(&models.User{ID: "u1", Email: "a@b.com", Role: models.RoleAdmin})
	require.NoError(t, err)
	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims["role"])

	other := services.NewAuthService(new(MockUserRepository), "another_secret", nil, nil)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthService_ReviewUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	publisher := &recordingPublisher{}
	notifier := services.NewNotificationService(publisher)
	authService := services.NewAuthService(mockRepo, testJWTSecret, nil, notifier)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1", Email: "a@b.com", Phone: "65999887766", Role: models.RoleCustomer, Status: models.UserStatusPending}, nil).Once()
	mockRepo.On("UpdateStatus", ctx, "user-1", models.UserStatusApproved).Return(nil).Once()

	user, err := authService.ReviewUser(ctx, "user-1", true)
	require.NoError(t, err)
	notifier.Wait()
	assert.Equal(t, models.UserStatusApproved, user.Status)
	assert.Len(t, publisher.byKey(services.RouteEmail), 1)

	wa := publisher.byKey(services.RouteWhatsApp)
	require.Len(t, wa, 1)
	var msg services.WhatsAppMessage
	decode(t, wa[0].body, &msg)
	assert.Equal(t, "5565999887766", msg.To)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ReviewUser_Rules(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *models.User
		approve bool
		wantErr error
		want    models.UserStatus
	}{
		{"staff cannot be reviewed", &models.User{ID: "u", Role: models.RoleAdmin, Status: models.UserStatusApproved}, false, services.ErrForbidden, ""},
		{"representative cannot be reviewed", &models.User{ID: "u", Role: models.RoleRepresentative, Status: models.UserStatusApproved}, false, services.ErrForbidden, ""},
		{"approving twice", &models.User{ID: "u", Role: models.RoleCustomer, Status: models.UserStatusApproved}, true, services.ErrInvalidStatusTransition, ""},
		{"rejecting twice", &models.User{ID: "u", Role: models.RoleCustomer, Status: models.UserStatusRejected}, false, services.ErrInvalidStatusTransition, ""},
		{"revoking an approved customer", &models.User{ID: "u", Role: models.RoleCustomer, Status: models.UserStatusApproved}, false, nil, models.UserStatusRejected},
		{"reinstating a rejected customer", &models.User{ID: "u", Role: models.RoleCustomer, Status: models.UserStatusRejected}, true, nil, models.UserStatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			authService := services.NewAuthService(mockRepo, testJWTSecret, nil, nil)
			mockRepo.On("GetByID", ctx, "u").Return(tt.user, nil).Once()
			if tt.wantErr == nil {
				mockRepo.On("UpdateStatus", ctx, "u", tt.want).Return(nil).Once()
			}

			user, err := authService.ReviewUser(ctx, "u", tt.approve)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				mockRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Status)
			mockRepo.AssertExpectations(t)
		})
	}
}
