package services

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"userhub/internal/caching"
	"userhub/internal/common"
	"userhub/internal/models"
	"userhub/internal/repositories"

	"github.com/google/uuid"
)

const (
	recentWindowDays = 7
	activeWindowDays = 30
	activityLimit    = 50
	searchPageSize   = 20
	defaultPerPage   = 10
)

// RegisterRequest carries the fields accepted at registration. Role is
// optional and defaults to "user".
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// AuthResult pairs a user with a freshly issued credential.
type AuthResult struct {
	User       *models.User
	Credential *models.Credential
}

// ListUsersRequest is the admin listing query: role equality filter,
// case-insensitive substring search, page/per_page pagination.
type ListUsersRequest struct {
	Role    string
	Search  string
	Page    int
	PerPage int
}

// UpdateUserRequest carries the mutable fields of a user update. Nil
// means "leave unchanged". Role and Password are only honored for
// admins; see UpdateUser.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	Password  *string `json:"password"`
}

// UpdateProfileRequest is the self-service variant. A password change
// requires the verified current password.
type UpdateProfileRequest struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Email           *string `json:"email"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

// SearchRequest is the advanced admin search.
type SearchRequest struct {
	Term      string
	Role      string
	SortBy    string
	SortOrder string
	Page      int
}

// SearchResult is a page of matches plus the effective parameters.
type SearchResult struct {
	Page      *models.UserPage
	Term      string
	Role      string
	SortBy    string
	SortOrder string
}

// DeletedUser identifies the account removed by DeleteUser.
type DeletedUser struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// BulkRoleResult reports how many of the requested ids were updated.
type BulkRoleResult struct {
	UpdatedCount int
	NewRole      string
}

// StatisticsResult carries the stats plus the windows they were
// computed over.
type StatisticsResult struct {
	Statistics *models.UserStatistics
	RecentDays int
	ActiveDays int
}

// AccountService orchestrates registration, authentication, and user
// management. Every method takes the authenticated actor explicitly and
// returns typed domain errors; the transport layer maps them to status
// codes.
type AccountService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, actor *models.User) (*models.UserView, error)
	GetUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*models.UserView, error)
	ListUsers(ctx context.Context, actor *models.User, req *ListUsersRequest) (*models.UserPage, error)
	UpdateUser(ctx context.Context, actor *models.User, targetID uuid.UUID, req *UpdateUserRequest) (*models.UserView, error)
	UpdateProfile(ctx context.Context, actor *models.User, req *UpdateProfileRequest) (*models.UserView, error)
	ChangePassword(ctx context.Context, actor *models.User, currentPassword, newPassword string) error
	DeleteUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*DeletedUser, error)
	ChangeRole(ctx context.Context, actor *models.User, targetID uuid.UUID, newRole string) (*models.UserView, error)
	BulkChangeRole(ctx context.Context, actor *models.User, targetIDs []uuid.UUID, newRole string) (*BulkRoleResult, error)
	Statistics(ctx context.Context, actor *models.User) (*StatisticsResult, error)
	Activity(ctx context.Context, actor *models.User) ([]*models.UserActivity, error)
	Search(ctx context.Context, actor *models.User, req *SearchRequest) (*SearchResult, error)
	ExportUsers(ctx context.Context, actor *models.User, format, role string) (*Export, error)
	CreateAdmin(ctx context.Context, actor *models.User, req *RegisterRequest) (*models.UserView, error)
	EnsureAdmin(ctx context.Context, req *RegisterRequest) error
}

type accountService struct {
	users    repositories.UserRepository
	tokens   TokenService
	archiver ExportArchiver
	reports  caching.ReportCache
}

// NewAccountService wires the account service. archiver and reports may
// be nil; exports are then not archived and reports not cached.
func NewAccountService(users repositories.UserRepository, tokens TokenService, archiver ExportArchiver, reports caching.ReportCache) AccountService {
	return &accountService{users: users, tokens: tokens, archiver: archiver, reports: reports}
}

// storeErr maps repository failures into the domain taxonomy.
func storeErr(operation string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return common.NotFound("User")
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return common.FieldError("email", "The email has already been taken.")
	default:
		return common.Transient(operation, err)
	}
}

func requireAllowed(actor *models.User, intent Intent) error {
	if decision := Authorize(actor, intent); !decision.Allowed {
		return common.Forbidden(decision.Reason)
	}
	return nil
}

func (s *accountService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	fields := map[string]string{}
	if err := common.ValidateName(req.FirstName, "first_name"); err != nil {
		fields["first_name"] = err.Error()
	}
	if err := common.ValidateName(req.LastName, "last_name"); err != nil {
		fields["last_name"] = err.Error()
	}
	if err := common.ValidateEmail(req.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := common.ValidatePassword(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	} else if !models.ValidRole(role) {
		fields["role"] = "role must be admin or user"
	}
	if len(fields) == 0 {
		// Friendly pre-check; the unique constraint is the authority and
		// Create still reports the duplicate if two registrations race.
		inUse, err := s.users.EmailInUse(ctx, req.Email, uuid.Nil)
		if err != nil {
			return nil, common.Transient("check email uniqueness", err)
		}
		if inUse {
			fields["email"] = "The email has already been taken."
		}
	}
	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, common.Transient("hash password", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeErr("create user", err)
	}

	// Registration issues a token but is not a login; the login
	// timestamps stay unset.
	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, common.Transient("issue token", err)
	}

	return &AuthResult{User: user, Credential: models.NewCredential(token)}, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "email is required"
	}
	if password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Same failure for unknown email and wrong password.
			return nil, common.InvalidCredentials()
		}
		return nil, common.Transient("look up user", err)
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, common.InvalidCredentials()
	}

	now := time.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, storeErr("record login", err)
	}
	if user.FirstLogin == nil {
		user.FirstLogin = &now
	}
	user.LastLogin = &now

	// Single active session: every previously issued token dies before
	// the new one is born, including the registration token.
	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return nil, common.Transient("revoke tokens", err)
	}
	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, common.Transient("issue token", err)
	}

	return &AuthResult{User: user, Credential: models.NewCredential(token)}, nil
}

func (s *accountService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return common.Transient("revoke token", err)
	}
	return nil
}

func (s *accountService) Profile(ctx context.Context, actor *models.User) (*models.UserView, error) {
	if err := requireAllowed(actor, ViewSelfIntent()); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("load profile", err)
	}
	return models.NewUserView(user, true), nil
}

func (s *accountService) GetUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*models.UserView, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	if err := requireAllowed(actor, ViewUserIntent(targetID)); err != nil {
		return nil, err
	}
	return models.NewUserView(target, true), nil
}

func (s *accountService) ListUsers(ctx context.Context, actor *models.User, req *ListUsersRequest) (*models.UserPage, error) {
	if err := requireAllowed(actor, ListUsersIntent()); err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	users, total, err := s.users.List(ctx, repositories.ListFilter{
		Role:   req.Role,
		Search: req.Search,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	})
	if err != nil {
		return nil, common.Transient("list users", err)
	}
	return buildPage(users, total, page, perPage), nil
}

func buildPage(users []*models.User, total, page, perPage int) *models.UserPage {
	views := make([]*models.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, models.NewUserView(user, true))
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	from, to := 0, 0
	if len(users) > 0 {
		from = (page-1)*perPage + 1
		to = from + len(users) - 1
	}
	return &models.UserPage{
		Users: views,
		Pagination: models.Pagination{
			Total:       total,
			PerPage:     perPage,
			CurrentPage: page,
			LastPage:    lastPage,
			From:        from,
			To:          to,
		},
	}
}

func (s *accountService) UpdateUser(ctx context.Context, actor *models.User, targetID uuid.UUID, req *UpdateUserRequest) (*models.UserView, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	if err := requireAllowed(actor, UpdateUserIntent(targetID)); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if req.FirstName != nil {
		if err := common.ValidateName(*req.FirstName, "first_name"); err != nil {
			fields["first_name"] = err.Error()
		} else {
			target.FirstName = *req.FirstName
		}
	}
	if req.LastName != nil {
		if err := common.ValidateName(*req.LastName, "last_name"); err != nil {
			fields["last_name"] = err.Error()
		} else {
			target.LastName = *req.LastName
		}
	}
	if req.Email != nil && *req.Email != target.Email {
		if err := common.ValidateEmail(*req.Email); err != nil {
			fields["email"] = err.Error()
		} else {
			inUse, err := s.users.EmailInUse(ctx, *req.Email, target.ID)
			if err != nil {
				return nil, common.Transient("check email uniqueness", err)
			}
			if inUse {
				fields["email"] = "The email has already been taken."
			} else {
				target.Email = *req.Email
			}
		}
	}

	// The role field is silently dropped for non-admins, and no account
	// ever changes its own role this way.
	if req.Role != nil && actor.IsAdmin() && targetID != actor.ID {
		if !models.ValidRole(*req.Role) {
			fields["role"] = "role must be admin or user"
		} else {
			target.Role = *req.Role
		}
	}

	// A password sent here is only honored for an admin resetting a
	// different account; self-service changes go through UpdateProfile
	// with the current password.
	if req.Password != nil && actor.IsAdmin() && targetID != actor.ID {
		if err := common.ValidatePassword(*req.Password); err != nil {
			fields["password"] = err.Error()
		} else {
			hash, err := HashPassword(*req.Password)
			if err != nil {
				return nil, common.Transient("hash password", err)
			}
			target.PasswordHash = hash
		}
	}

	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	if err := s.users.Update(ctx, target); err != nil {
		return nil, storeErr("update user", err)
	}
	return models.NewUserView(target, false), nil
}

func (s *accountService) UpdateProfile(ctx context.Context, actor *models.User, req *UpdateProfileRequest) (*models.UserView, error) {
	if err := requireAllowed(actor, UpdateSelfIntent()); err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("load profile", err)
	}

	fields := map[string]string{}
	if req.NewPassword != nil {
		if err := common.ValidatePassword(*req.NewPassword); err != nil {
			fields["new_password"] = err.Error()
		}
		if req.CurrentPassword == nil || *req.CurrentPassword == "" {
			fields["current_password"] = "current_password is required with new_password"
		}
	}
	if req.FirstName != nil {
		if err := common.ValidateName(*req.FirstName, "first_name"); err != nil {
			fields["first_name"] = err.Error()
		} else {
			target.FirstName = *req.FirstName
		}
	}
	if req.LastName != nil {
		if err := common.ValidateName(*req.LastName, "last_name"); err != nil {
			fields["last_name"] = err.Error()
		} else {
			target.LastName = *req.LastName
		}
	}
	if req.Email != nil && *req.Email != target.Email {
		if err := common.ValidateEmail(*req.Email); err != nil {
			fields["email"] = err.Error()
		} else {
			inUse, err := s.users.EmailInUse(ctx, *req.Email, target.ID)
			if err != nil {
				return nil, common.Transient("check email uniqueness", err)
			}
			if inUse {
				fields["email"] = "The email has already been taken."
			} else {
				target.Email = *req.Email
			}
		}
	}
	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	if req.NewPassword != nil {
		if !VerifyPassword(*req.CurrentPassword, target.PasswordHash) {
			return nil, common.WrongPassword()
		}
		hash, err := HashPassword(*req.NewPassword)
		if err != nil {
			return nil, common.Transient("hash password", err)
		}
		target.PasswordHash = hash
	}

	if err := s.users.Update(ctx, target); err != nil {
		return nil, storeErr("update profile", err)
	}
	return models.NewUserView(target, false), nil
}

func (s *accountService) ChangePassword(ctx context.Context, actor *models.User, currentPassword, newPassword string) error {
	if err := requireAllowed(actor, UpdateSelfIntent()); err != nil {
		return err
	}

	fields := map[string]string{}
	if currentPassword == "" {
		fields["current_password"] = "current_password is required"
	}
	if err := common.ValidatePassword(newPassword); err != nil {
		fields["new_password"] = err.Error()
	}
	if len(fields) > 0 {
		return common.ValidationError(fields)
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return storeErr("load profile", err)
	}
	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return common.WrongPassword()
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return common.Transient("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return storeErr("update password", err)
	}
	return nil
}

func (s *accountService) DeleteUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*DeletedUser, error) {
	if err := requireAllowed(actor, DeleteUserIntent(targetID)); err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("load user", err)
	}

	// Tokens first, then the record: a half-finished delete must not
	// leave live credentials behind.
	if err := s.tokens.RevokeAll(ctx, target.ID); err != nil {
		return nil, common.Transient("revoke tokens", err)
	}
	if err := s.users.Delete(ctx, target.ID); err != nil {
		return nil, storeErr("delete user", err)
	}

	return &DeletedUser{ID: target.ID, Email: target.Email, FullName: target.FullName()}, nil
}

func (s *accountService) ChangeRole(ctx context.Context, actor *models.User, targetID uuid.UUID, newRole string) (*models.UserView, error) {
	if err := requireAllowed(actor, ChangeRoleIntent(targetID)); err != nil {
		return nil, err
	}
	if !models.ValidRole(newRole) {
		return nil, common.FieldError("role", "role must be admin or user")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("load user", err)
	}

	if err := s.users.UpdateRole(ctx, target.ID, newRole); err != nil {
		return nil, storeErr("update role", err)
	}
	target.Role = newRole
	return models.NewUserView(target, false), nil
}

func (s *accountService) BulkChangeRole(ctx context.Context, actor *models.User, targetIDs []uuid.UUID, newRole string) (*BulkRoleResult, error) {
	if err := requireAllowed(actor, BulkChangeRoleIntent(targetIDs)); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if len(targetIDs) == 0 {
		fields["user_ids"] = "user_ids must contain at least one id"
	}
	if !models.ValidRole(newRole) {
		fields["role"] = "role must be admin or user"
	}
	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	count, err := s.users.BulkUpdateRole(ctx, targetIDs, newRole)
	if err != nil {
		return nil, common.Transient("bulk update roles", err)
	}
	return &BulkRoleResult{UpdatedCount: count, NewRole: newRole}, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

const (
	statisticsCacheKey = "statistics"
	activityCacheKey   = "activity"
	reportCacheTTL     = time.Minute
)

func (s *accountService) Statistics(ctx context.Context, actor *models.User) (*StatisticsResult, error) {
	if err := requireAllowed(actor, ViewStatisticsIntent()); err != nil {
		return nil, err
	}

	if s.reports != nil {
		var cached StatisticsResult
		if hit, err := s.reports.GetJSON(ctx, statisticsCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	now := time.Now()
	counts, err := s.users.Counts(ctx, now.AddDate(0, 0, -recentWindowDays), now.AddDate(0, 0, -activeWindowDays))
	if err != nil {
		return nil, common.Transient("compute statistics", err)
	}

	stats := &models.UserStatistics{
		TotalUsers:  counts.Total,
		AdminCount:  counts.Admins,
		UserCount:   counts.Users,
		RecentUsers: counts.Recent,
		ActiveUsers: counts.Active,
	}
	// Guard the zero-user case; percentages are 0, never NaN.
	if counts.Total > 0 {
		stats.AdminPercentage = round2(float64(counts.Admins) / float64(counts.Total) * 100)
		stats.ActivePercentage = round2(float64(counts.Active) / float64(counts.Total) * 100)
	}
	result := &StatisticsResult{Statistics: stats, RecentDays: recentWindowDays, ActiveDays: activeWindowDays}

	if s.reports != nil {
		if err := s.reports.SetJSON(ctx, statisticsCacheKey, result, reportCacheTTL); err != nil {
			log.Printf("Failed to cache statistics report: %v", err)
		}
	}
	return result, nil
}

func (s *accountService) Activity(ctx context.Context, actor *models.User) ([]*models.UserActivity, error) {
	if err := requireAllowed(actor, ViewActivityIntent()); err != nil {
		return nil, err
	}

	if s.reports != nil {
		var cached []*models.UserActivity
		if hit, err := s.reports.GetJSON(ctx, activityCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	users, err := s.users.MostRecentlyActive(ctx, activityLimit)
	if err != nil {
		return nil, common.Transient("load activity", err)
	}

	now := time.Now()
	entries := make([]*models.UserActivity, 0, len(users))
	for _, user := range users {
		entry := &models.UserActivity{
			ID:             user.ID,
			FullName:       user.FullName(),
			Email:          user.Email,
			Role:           user.Role,
			FirstLogin:     user.FirstLogin,
			LastLogin:      user.LastLogin,
			CreatedAt:      user.CreatedAt,
			AccountAgeDays: daysBetween(user.CreatedAt, now),
		}
		if user.LastLogin != nil {
			days := daysBetween(*user.LastLogin, now)
			entry.DaysSinceLastLogin = &days
		}
		entries = append(entries, entry)
	}

	if s.reports != nil {
		if err := s.reports.SetJSON(ctx, activityCacheKey, entries, reportCacheTTL); err != nil {
			log.Printf("Failed to cache activity report: %v", err)
		}
	}
	return entries, nil
}

func daysBetween(from, to time.Time) int {
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func (s *accountService) Search(ctx context.Context, actor *models.User, req *SearchRequest) (*SearchResult, error) {
	if err := requireAllowed(actor, SearchUsersIntent()); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if len([]rune(req.Term)) < 2 {
		fields["search"] = "search term must be at least 2 characters"
	}
	if req.Role != "" && !models.ValidRole(req.Role) {
		fields["role"] = "role must be admin or user"
	}
	sortBy := req.SortBy
	switch sortBy {
	case "":
		sortBy = "created_at"
	case "name", "email", "created_at", "last_login":
	default:
		fields["sort_by"] = "sort_by must be one of: name, email, created_at, last_login"
	}
	sortOrder := req.SortOrder
	switch sortOrder {
	case "":
		sortOrder = "desc"
	case "asc", "desc":
	default:
		fields["sort_order"] = "sort_order must be asc or desc"
	}
	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	users, total, err := s.users.List(ctx, repositories.ListFilter{
		Role:          req.Role,
		Search:        req.Term,
		MatchFullName: true,
		SortBy:        sortBy,
		SortOrder:     sortOrder,
		Limit:         searchPageSize,
		Offset:        (page - 1) * searchPageSize,
	})
	if err != nil {
		return nil, common.Transient("search users", err)
	}

	return &SearchResult{
		Page:      buildPage(users, total, page, searchPageSize),
		Term:      req.Term,
		Role:      req.Role,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}, nil
}

func (s *accountService) ExportUsers(ctx context.Context, actor *models.User, format, role string) (*Export, error) {
	if err := requireAllowed(actor, ExportUsersIntent()); err != nil {
		return nil, err
	}
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return nil, common.FieldError("format", "format must be json or csv")
	}

	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, common.Transient("export users", err)
	}

	now := time.Now()
	export := &Export{Filename: exportFilename(format, now)}
	if format == "csv" {
		export.Data = renderExportCSV(users)
		export.ContentType = "text/csv"
	} else {
		data, err := renderExportJSON(users, now)
		if err != nil {
			return nil, common.Transient("render export", err)
		}
		export.Data = data
		export.ContentType = "application/json"
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, export.Filename, export.Data, export.ContentType); err != nil {
			log.Printf("Failed to archive export %s: %v", export.Filename, err)
		}
	}
	return export, nil
}

func (s *accountService) CreateAdmin(ctx context.Context, actor *models.User, req *RegisterRequest) (*models.UserView, error) {
	if err := requireAllowed(actor, CreateAdminIntent()); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if err := common.ValidateName(req.FirstName, "first_name"); err != nil {
		fields["first_name"] = err.Error()
	}
	if err := common.ValidateName(req.LastName, "last_name"); err != nil {
		fields["last_name"] = err.Error()
	}
	if err := common.ValidateEmail(req.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := common.ValidatePassword(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) == 0 {
		inUse, err := s.users.EmailInUse(ctx, req.Email, uuid.Nil)
		if err != nil {
			return nil, common.Transient("check email uniqueness", err)
		}
		if inUse {
			fields["email"] = "The email has already been taken."
		}
	}
	if len(fields) > 0 {
		return nil, common.ValidationError(fields)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, common.Transient("hash password", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeErr("create admin", err)
	}
	// No token: the new admin logs in with the password they were given.
	return models.NewUserView(user, false), nil
}

// EnsureAdmin creates the bootstrap admin account if the email is not
// taken yet. Called at startup when seeding is enabled; it is not
// reachable through the API.
func (s *accountService) EnsureAdmin(ctx context.Context, req *RegisterRequest) error {
	_, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return common.Transient("look up admin", err)
	}

	passwordHash, hashErr := HashPassword(req.Password)
	if hashErr != nil {
		return common.Transient("hash password", hashErr)
	}
	user := &models.User{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
	}
	if createErr := s.users.Create(ctx, user); createErr != nil {
		if errors.Is(createErr, repositories.ErrDuplicateEmail) {
			return nil
		}
		return storeErr("create admin", createErr)
	}
	log.Printf("Seeded admin account %s", req.Email)
	return nil
}
