package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"userhub/internal/common"
	"userhub/internal/models"
	"userhub/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockUserRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) EmailInUse(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter repositories.ListFilter) ([]*models.User, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.User), args.Int(1), args.Error(2)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role string) ([]*models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) BulkUpdateRole(ctx context.Context, ids []uuid.UUID, role string) (int, error) {
	args := m.Called(ctx, ids, role)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) Counts(ctx context.Context, recentSince, activeSince time.Time) (*repositories.UserCounts, error) {
	args := m.Called(ctx, recentSince, activeSince)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.UserCounts), args.Error(1)
}

func (m *MockUserRepository) MostRecentlyActive(ctx context.Context, limit int) ([]*models.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockTokenService) Resolve(ctx context.Context, token string) (uuid.UUID, bool, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

type AccountServiceTestSuite struct {
	suite.Suite
	users   *MockUserRepository
	tokens  *MockTokenService
	service AccountService
	ctx     context.Context
	admin   *models.User
	user    *models.User
}

func (s *AccountServiceTestSuite) SetupTest() {
	s.users = new(MockUserRepository)
	s.tokens = new(MockTokenService)
	s.service = NewAccountService(s.users, s.tokens, nil, nil)
	s.ctx = context.Background()
	s.admin = &models.User{ID: uuid.New(), FirstName: "Admin", LastName: "One", Email: "admin@example.com", Role: models.RoleAdmin}
	s.user = &models.User{ID: uuid.New(), FirstName: "Plain", LastName: "User", Email: "user@example.com", Role: models.RoleUser}
}

func (s *AccountServiceTestSuite) kindOf(err error) common.Kind {
	s.Require().Error(err)
	return common.KindOf(err)
}

func (s *AccountServiceTestSuite) TestRegisterDefaultsRoleToUser() {
	s.users.On("EmailInUse", s.ctx, "new@example.com", uuid.Nil).Return(false, nil)
	s.users.On("Create", s.ctx, mock.AnythingOfType("*models.User")).Return(nil)
	s.tokens.On("Issue", s.ctx, mock.AnythingOfType("uuid.UUID")).Return("issued-token", nil)

	result, err := s.service.Register(s.ctx, &RegisterRequest{
		FirstName: "New",
		LastName:  "Person",
		Email:     "new@example.com",
		Password:  "password123",
	})
	s.Require().NoError(err)

	s.Equal(models.RoleUser, result.User.Role)
	s.Equal("issued-token", result.Credential.AccessToken)
	s.Equal("Bearer", result.Credential.TokenType)
	// Registration is not a login.
	s.Nil(result.User.FirstLogin)
	s.Nil(result.User.LastLogin)
	// The plaintext never lands on the record.
	s.NotEqual("password123", result.User.PasswordHash)
	s.True(VerifyPassword("password123", result.User.PasswordHash))
}

func (s *AccountServiceTestSuite) TestRegisterCollectsAllFieldErrors() {
	_, err := s.service.Register(s.ctx, &RegisterRequest{
		FirstName: "",
		LastName:  "",
		Email:     "not-an-email",
		Password:  "short",
	})
	s.Equal(common.KindValidation, s.kindOf(err))

	var de *common.DomainError
	s.Require().ErrorAs(err, &de)
	s.Contains(de.Fields, "first_name")
	s.Contains(de.Fields, "last_name")
	s.Contains(de.Fields, "email")
	s.Contains(de.Fields, "password")

	s.users.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestRegisterRejectsTakenEmail() {
	s.users.On("EmailInUse", s.ctx, "taken@example.com", uuid.Nil).Return(true, nil)

	_, err := s.service.Register(s.ctx, &RegisterRequest{
		FirstName: "New",
		LastName:  "Person",
		Email:     "taken@example.com",
		Password:  "password123",
	})
	s.Equal(common.KindValidation, s.kindOf(err))

	var de *common.DomainError
	s.Require().ErrorAs(err, &de)
	s.Equal("The email has already been taken.", de.Fields["email"])
}

func (s *AccountServiceTestSuite) TestRegisterRejectsInvalidRole() {
	_, err := s.service.Register(s.ctx, &RegisterRequest{
		FirstName: "New",
		LastName:  "Person",
		Email:     "new@example.com",
		Password:  "password123",
		Role:      "superadmin",
	})
	s.Equal(common.KindValidation, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestLoginSuccess() {
	hash, err := HashPassword("password123")
	s.Require().NoError(err)
	stored := &models.User{ID: s.user.ID, Email: s.user.Email, PasswordHash: hash, Role: models.RoleUser}

	s.users.On("GetByEmail", s.ctx, s.user.Email).Return(stored, nil)
	s.users.On("RecordLogin", s.ctx, s.user.ID, mock.AnythingOfType("time.Time")).Return(nil)
	s.tokens.On("RevokeAll", s.ctx, s.user.ID).Return(nil)
	s.tokens.On("Issue", s.ctx, s.user.ID).Return("fresh-token", nil)

	result, err := s.service.Login(s.ctx, s.user.Email, "password123")
	s.Require().NoError(err)

	s.Equal("fresh-token", result.Credential.AccessToken)
	s.Require().NotNil(result.User.FirstLogin)
	s.Require().NotNil(result.User.LastLogin)
	s.WithinDuration(time.Now(), *result.User.LastLogin, 5*time.Second)
	// Old sessions die before the new token is born.
	s.tokens.AssertCalled(s.T(), "RevokeAll", s.ctx, s.user.ID)
}

func (s *AccountServiceTestSuite) TestLoginPreservesFirstLogin() {
	firstLogin := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	hash, err := HashPassword("password123")
	s.Require().NoError(err)
	stored := &models.User{ID: s.user.ID, Email: s.user.Email, PasswordHash: hash, Role: models.RoleUser, FirstLogin: &firstLogin}

	s.users.On("GetByEmail", s.ctx, s.user.Email).Return(stored, nil)
	s.users.On("RecordLogin", s.ctx, s.user.ID, mock.AnythingOfType("time.Time")).Return(nil)
	s.tokens.On("RevokeAll", s.ctx, s.user.ID).Return(nil)
	s.tokens.On("Issue", s.ctx, s.user.ID).Return("fresh-token", nil)

	result, err := s.service.Login(s.ctx, s.user.Email, "password123")
	s.Require().NoError(err)

	s.Equal(firstLogin, *result.User.FirstLogin)
	s.NotEqual(firstLogin, *result.User.LastLogin)
}

func (s *AccountServiceTestSuite) TestLoginFailuresAreIndistinguishable() {
	hash, err := HashPassword("password123")
	s.Require().NoError(err)
	stored := &models.User{ID: s.user.ID, Email: s.user.Email, PasswordHash: hash}

	s.users.On("GetByEmail", s.ctx, s.user.Email).Return(stored, nil)
	s.users.On("GetByEmail", s.ctx, "ghost@example.com").Return(nil, repositories.ErrNotFound)

	_, wrongPassword := s.service.Login(s.ctx, s.user.Email, "not-the-password")
	_, unknownEmail := s.service.Login(s.ctx, "ghost@example.com", "password123")

	s.Equal(common.KindInvalidCredentials, s.kindOf(wrongPassword))
	s.Equal(common.KindInvalidCredentials, s.kindOf(unknownEmail))
	s.Equal(wrongPassword.Error(), unknownEmail.Error())

	s.users.AssertNotCalled(s.T(), "RecordLogin", mock.Anything, mock.Anything, mock.Anything)
	s.tokens.AssertNotCalled(s.T(), "Issue", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestGetUserSelfAllowed() {
	s.users.On("GetByID", s.ctx, s.user.ID).Return(s.user, nil)

	view, err := s.service.GetUser(s.ctx, s.user, s.user.ID)
	s.Require().NoError(err)
	s.Equal(s.user.ID, view.ID)
	s.NotNil(view.CreatedAt)
}

func (s *AccountServiceTestSuite) TestGetUserOtherForbiddenForRegularUser() {
	other := &models.User{ID: uuid.New(), Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, other.ID).Return(other, nil)

	_, err := s.service.GetUser(s.ctx, s.user, other.ID)
	s.Equal(common.KindForbidden, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestGetUserMissingReportsNotFoundFirst() {
	// Even a caller who could not view the target learns it is absent;
	// existence of an id is not a secret.
	missing := uuid.New()
	s.users.On("GetByID", s.ctx, missing).Return(nil, repositories.ErrNotFound)

	_, err := s.service.GetUser(s.ctx, s.user, missing)
	s.Equal(common.KindNotFound, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestListUsersForbiddenForRegularUser() {
	_, err := s.service.ListUsers(s.ctx, s.user, &ListUsersRequest{})
	s.Equal(common.KindForbidden, s.kindOf(err))
	s.users.AssertNotCalled(s.T(), "List", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestListUsersPagination() {
	members := []*models.User{
		{ID: uuid.New(), FirstName: "A", LastName: "A", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: uuid.New(), FirstName: "B", LastName: "B", CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	s.users.On("List", s.ctx, repositories.ListFilter{Limit: 10, Offset: 10}).Return(members, 12, nil)

	page, err := s.service.ListUsers(s.ctx, s.admin, &ListUsersRequest{Page: 2, PerPage: 10})
	s.Require().NoError(err)

	s.Len(page.Users, 2)
	s.Equal(12, page.Pagination.Total)
	s.Equal(2, page.Pagination.CurrentPage)
	s.Equal(2, page.Pagination.LastPage)
	s.Equal(11, page.Pagination.From)
	s.Equal(12, page.Pagination.To)
}

func (s *AccountServiceTestSuite) TestListUsersEmptyPage() {
	s.users.On("List", s.ctx, mock.AnythingOfType("repositories.ListFilter")).Return([]*models.User{}, 0, nil)

	page, err := s.service.ListUsers(s.ctx, s.admin, &ListUsersRequest{})
	s.Require().NoError(err)

	s.Empty(page.Users)
	s.Equal(0, page.Pagination.From)
	s.Equal(0, page.Pagination.To)
	s.Equal(1, page.Pagination.LastPage)
}

func (s *AccountServiceTestSuite) TestUpdateUserIgnoresRoleForSelf() {
	stored := &models.User{ID: s.admin.ID, FirstName: "Admin", LastName: "One", Email: s.admin.Email, Role: models.RoleAdmin}
	s.users.On("GetByID", s.ctx, s.admin.ID).Return(stored, nil)
	s.users.On("Update", s.ctx, mock.AnythingOfType("*models.User")).Return(nil)

	role := models.RoleUser
	name := "Renamed"
	view, err := s.service.UpdateUser(s.ctx, s.admin, s.admin.ID, &UpdateUserRequest{FirstName: &name, Role: &role})
	s.Require().NoError(err)

	// The rename lands, the self role change is silently dropped.
	s.Equal("Renamed", view.FirstName)
	s.Equal(models.RoleAdmin, view.Role)
}

func (s *AccountServiceTestSuite) TestUpdateUserIgnoresRoleForNonAdmin() {
	stored := &models.User{ID: s.user.ID, FirstName: "Plain", LastName: "User", Email: s.user.Email, Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, s.user.ID).Return(stored, nil)
	s.users.On("Update", s.ctx, mock.AnythingOfType("*models.User")).Return(nil)

	role := models.RoleAdmin
	view, err := s.service.UpdateUser(s.ctx, s.user, s.user.ID, &UpdateUserRequest{Role: &role})
	s.Require().NoError(err)
	s.Equal(models.RoleUser, view.Role)
}

func (s *AccountServiceTestSuite) TestUpdateUserAdminChangesOtherRole() {
	stored := &models.User{ID: s.user.ID, FirstName: "Plain", LastName: "User", Email: s.user.Email, Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, s.user.ID).Return(stored, nil)
	s.users.On("Update", s.ctx, mock.AnythingOfType("*models.User")).Return(nil)

	role := models.RoleAdmin
	view, err := s.service.UpdateUser(s.ctx, s.admin, s.user.ID, &UpdateUserRequest{Role: &role})
	s.Require().NoError(err)
	s.Equal(models.RoleAdmin, view.Role)
}

func (s *AccountServiceTestSuite) TestUpdateUserRejectsTakenEmail() {
	stored := &models.User{ID: s.user.ID, FirstName: "Plain", LastName: "User", Email: s.user.Email, Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, s.user.ID).Return(stored, nil)
	s.users.On("EmailInUse", s.ctx, "taken@example.com", s.user.ID).Return(true, nil)

	email := "taken@example.com"
	_, err := s.service.UpdateUser(s.ctx, s.user, s.user.ID, &UpdateUserRequest{Email: &email})
	s.Equal(common.KindValidation, s.kindOf(err))
	s.users.AssertNotCalled(s.T(), "Update", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestUpdateProfilePasswordRequiresCurrent() {
	hash, err := HashPassword("oldpassword")
	s.Require().NoError(err)
	stored := &models.User{ID: s.user.ID, FirstName: "Plain", LastName: "User", Email: s.user.Email, PasswordHash: hash, Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, s.user.ID).Return(stored, nil)

	newPassword := "brandnewpass"
	_, err = s.service.UpdateProfile(s.ctx, s.user, &UpdateProfileRequest{NewPassword: &newPassword})
	s.Equal(common.KindValidation, s.kindOf(err))

	wrong := "not-the-password"
	_, err = s.service.UpdateProfile(s.ctx, s.user, &UpdateProfileRequest{NewPassword: &newPassword, CurrentPassword: &wrong})
	s.Equal(common.KindInvalidCredentials, s.kindOf(err))
	s.users.AssertNotCalled(s.T(), "Update", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestChangePasswordSuccess() {
	hash, err := HashPassword("oldpassword")
	s.Require().NoError(err)
	stored := &models.User{ID: s.user.ID, PasswordHash: hash, Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, s.user.ID).Return(stored, nil)
	s.users.On("UpdatePassword", s.ctx, s.user.ID, mock.AnythingOfType("string")).Return(nil)

	s.Require().NoError(s.service.ChangePassword(s.ctx, s.user, "oldpassword", "brandnewpass"))
	s.users.AssertCalled(s.T(), "UpdatePassword", s.ctx, s.user.ID, mock.AnythingOfType("string"))
}

func (s *AccountServiceTestSuite) TestChangePasswordWrongCurrent() {
	hash, err := HashPassword("oldpassword")
	s.Require().NoError(err)
	stored := &models.User{ID: s.user.ID, PasswordHash: hash, Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, s.user.ID).Return(stored, nil)

	err = s.service.ChangePassword(s.ctx, s.user, "wrong", "brandnewpass")
	s.Equal(common.KindInvalidCredentials, s.kindOf(err))
	s.Equal("Current password is incorrect", err.Error())
	s.users.AssertNotCalled(s.T(), "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestDeleteUserRevokesTokensFirst() {
	target := &models.User{ID: uuid.New(), FirstName: "Doomed", LastName: "Account", Email: "doomed@example.com", Role: models.RoleUser}
	s.users.On("GetByID", s.ctx, target.ID).Return(target, nil)

	revoked := false
	s.tokens.On("RevokeAll", s.ctx, target.ID).Run(func(mock.Arguments) { revoked = true }).Return(nil)
	s.users.On("Delete", s.ctx, target.ID).Run(func(mock.Arguments) {
		s.True(revoked, "tokens must be revoked before the row is deleted")
	}).Return(nil)

	deleted, err := s.service.DeleteUser(s.ctx, s.admin, target.ID)
	s.Require().NoError(err)
	s.Equal(target.ID, deleted.ID)
	s.Equal("Doomed Account", deleted.FullName)
}

func (s *AccountServiceTestSuite) TestDeleteUserSelfDenied() {
	_, err := s.service.DeleteUser(s.ctx, s.admin, s.admin.ID)
	s.Equal(common.KindForbidden, s.kindOf(err))
	s.Equal("Cannot delete your own account.", err.Error())
	s.users.AssertNotCalled(s.T(), "Delete", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestChangeRoleSelfDenied() {
	_, err := s.service.ChangeRole(s.ctx, s.admin, s.admin.ID, models.RoleUser)
	s.Equal(common.KindForbidden, s.kindOf(err))
	s.users.AssertNotCalled(s.T(), "UpdateRole", mock.Anything, mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestChangeRoleInvalidRole() {
	_, err := s.service.ChangeRole(s.ctx, s.admin, uuid.New(), "owner")
	s.Equal(common.KindValidation, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestBulkChangeRoleDeniedWhenSelfIncluded() {
	ids := []uuid.UUID{uuid.New(), s.admin.ID}
	_, err := s.service.BulkChangeRole(s.ctx, s.admin, ids, models.RoleUser)
	s.Equal(common.KindForbidden, s.kindOf(err))
	s.Equal("Cannot change your own role in bulk update.", err.Error())
	s.users.AssertNotCalled(s.T(), "BulkUpdateRole", mock.Anything, mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestBulkChangeRoleReportsCount() {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	// One id matched nothing; the count reflects actual updates.
	s.users.On("BulkUpdateRole", s.ctx, ids, models.RoleAdmin).Return(2, nil)

	result, err := s.service.BulkChangeRole(s.ctx, s.admin, ids, models.RoleAdmin)
	s.Require().NoError(err)
	s.Equal(2, result.UpdatedCount)
	s.Equal(models.RoleAdmin, result.NewRole)
}

func (s *AccountServiceTestSuite) TestStatisticsPercentages() {
	s.users.On("Counts", s.ctx, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(&repositories.UserCounts{Total: 3, Admins: 1, Users: 2, Recent: 2, Active: 2}, nil)

	result, err := s.service.Statistics(s.ctx, s.admin)
	s.Require().NoError(err)

	s.Equal(3, result.Statistics.TotalUsers)
	s.InDelta(33.33, result.Statistics.AdminPercentage, 0.001)
	s.InDelta(66.67, result.Statistics.ActivePercentage, 0.001)
	s.Equal(7, result.RecentDays)
	s.Equal(30, result.ActiveDays)
}

func (s *AccountServiceTestSuite) TestStatisticsZeroUsers() {
	s.users.On("Counts", s.ctx, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(&repositories.UserCounts{}, nil)

	result, err := s.service.Statistics(s.ctx, s.admin)
	s.Require().NoError(err)

	s.Zero(result.Statistics.AdminPercentage)
	s.Zero(result.Statistics.ActivePercentage)
}

type fakeReportCache struct {
	entries map[string][]byte
}

func newFakeReportCache() *fakeReportCache {
	return &fakeReportCache{entries: map[string][]byte{}}
}

func (f *fakeReportCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (f *fakeReportCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	return nil
}

func (f *fakeReportCache) Invalidate(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

func (s *AccountServiceTestSuite) TestStatisticsServedFromCache() {
	cached := NewAccountService(s.users, s.tokens, nil, newFakeReportCache())

	s.users.On("Counts", s.ctx, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(&repositories.UserCounts{Total: 4, Admins: 1, Users: 3, Active: 2}, nil).Once()

	first, err := cached.Statistics(s.ctx, s.admin)
	s.Require().NoError(err)

	// The second read comes out of the cache; Counts runs exactly once.
	second, err := cached.Statistics(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(first.Statistics, second.Statistics)
	s.users.AssertNumberOfCalls(s.T(), "Counts", 1)
}

func (s *AccountServiceTestSuite) TestActivityComputesDerivedFields() {
	lastLogin := time.Now().Add(-48 * time.Hour)
	created := time.Now().AddDate(0, 0, -10)
	rows := []*models.User{
		{ID: uuid.New(), FirstName: "Active", LastName: "One", LastLogin: &lastLogin, CreatedAt: created},
		{ID: uuid.New(), FirstName: "Never", LastName: "LoggedIn", CreatedAt: created},
	}
	s.users.On("MostRecentlyActive", s.ctx, 50).Return(rows, nil)

	entries, err := s.service.Activity(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Require().NotNil(entries[0].DaysSinceLastLogin)
	s.Equal(2, *entries[0].DaysSinceLastLogin)
	s.Equal(10, entries[0].AccountAgeDays)
	s.Nil(entries[1].DaysSinceLastLogin)
}

func (s *AccountServiceTestSuite) TestSearchTermTooShort() {
	_, err := s.service.Search(s.ctx, s.admin, &SearchRequest{Term: "a"})
	s.Equal(common.KindValidation, s.kindOf(err))
	s.users.AssertNotCalled(s.T(), "List", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestSearchDefaultsAndEcho() {
	s.users.On("List", s.ctx, repositories.ListFilter{
		Search:        "ada",
		MatchFullName: true,
		SortBy:        "created_at",
		SortOrder:     "desc",
		Limit:         20,
	}).Return([]*models.User{}, 0, nil)

	result, err := s.service.Search(s.ctx, s.admin, &SearchRequest{Term: "ada"})
	s.Require().NoError(err)

	s.Equal("created_at", result.SortBy)
	s.Equal("desc", result.SortOrder)
	s.Equal(20, result.Page.Pagination.PerPage)
}

func (s *AccountServiceTestSuite) TestSearchRejectsUnknownSortColumn() {
	_, err := s.service.Search(s.ctx, s.admin, &SearchRequest{Term: "ada", SortBy: "password_hash"})
	s.Equal(common.KindValidation, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestExportUsersCSV() {
	rows := []*models.User{
		{ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: models.RoleAdmin, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	s.users.On("ListByRole", s.ctx, "").Return(rows, nil)

	export, err := s.service.ExportUsers(s.ctx, s.admin, "csv", "")
	s.Require().NoError(err)

	s.Equal("text/csv", export.ContentType)
	s.Contains(export.Filename, "users_export_")
	s.Contains(string(export.Data), "ada@example.com")
}

func (s *AccountServiceTestSuite) TestExportUsersUnknownFormat() {
	_, err := s.service.ExportUsers(s.ctx, s.admin, "xml", "")
	s.Equal(common.KindValidation, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestExportUsersForbiddenForRegularUser() {
	_, err := s.service.ExportUsers(s.ctx, s.user, "json", "")
	s.Equal(common.KindForbidden, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestCreateAdminAlwaysAdminRole() {
	s.users.On("EmailInUse", s.ctx, "second@example.com", uuid.Nil).Return(false, nil)
	s.users.On("Create", s.ctx, mock.AnythingOfType("*models.User")).Return(nil)

	view, err := s.service.CreateAdmin(s.ctx, s.admin, &RegisterRequest{
		FirstName: "Second",
		LastName:  "Admin",
		Email:     "second@example.com",
		Password:  "password123",
		Role:      models.RoleUser, // ignored
	})
	s.Require().NoError(err)
	s.Equal(models.RoleAdmin, view.Role)
	s.tokens.AssertNotCalled(s.T(), "Issue", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestCreateAdminForbiddenForRegularUser() {
	_, err := s.service.CreateAdmin(s.ctx, s.user, &RegisterRequest{})
	s.Equal(common.KindForbidden, s.kindOf(err))
}

func (s *AccountServiceTestSuite) TestEnsureAdminSkipsExisting() {
	existing := &models.User{ID: uuid.New(), Email: "admin@example.com"}
	s.users.On("GetByEmail", mock.Anything, "admin@example.com").Return(existing, nil)

	err := s.service.EnsureAdmin(context.Background(), &RegisterRequest{Email: "admin@example.com", Password: "password123"})
	s.Require().NoError(err)
	s.users.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *AccountServiceTestSuite) TestEnsureAdminCreatesWhenMissing() {
	s.users.On("GetByEmail", mock.Anything, "admin@example.com").Return(nil, repositories.ErrNotFound)
	s.users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleAdmin && u.Email == "admin@example.com"
	})).Return(nil)

	err := s.service.EnsureAdmin(context.Background(), &RegisterRequest{
		FirstName: "System",
		LastName:  "Administrator",
		Email:     "admin@example.com",
		Password:  "password123",
	})
	s.Require().NoError(err)
	s.users.AssertExpectations(s.T())
}

func TestAccountServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AccountServiceTestSuite))
}
