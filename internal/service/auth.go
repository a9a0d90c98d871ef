package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/mykafka"
	"github.com/Skotchmaster/pharmacy/internal/repo"
	"github.com/Skotchmaster/pharmacy/internal/transport"
	"github.com/Skotchmaster/pharmacy/pkg/hash"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
	"github.com/Skotchmaster/pharmacy/pkg/tokens"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("wrong password")
	ErrMissingToken        = errors.New("token is required")
	ErrRefreshRevoked      = errors.New("refresh token revoked or not found")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserExists          = errors.New("user already exists")
	ErrSuperAdminExists    = errors.New("super admin already created")
	ErrForbiddenRole       = errors.New("role not allowed")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	CreateFirstUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uint) error
	UpdatePassword(ctx context.Context, id uint, oldHash, newHash string) error
}

type TokenStore interface {
	AddRefreshToken(ctx context.Context, t *models.RefreshToken) error
	FindRefreshByToken(ctx context.Context, fingerprint string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID uint, next *models.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, fingerprint string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint) (int64, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type AuthMetrics interface {
	AuthEvent(op, outcome string)
	TokensPurged(n int64)
}

type AuthService struct {
	Users     UserStore
	Tokens    TokenStore
	Issuer    *tokens.Issuer
	Events    mykafka.Publisher
	UserTopic string
	// ResetURL is the page password reset links point at; the token goes in
	// its "token" query parameter.
	ResetURL string
	Metrics  AuthMetrics
	Now      func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) record(op, outcome string) {
	if s.Metrics != nil {
		s.Metrics.AuthEvent(op, outcome)
	}
}

func (s *AuthService) publish(ctx context.Context, ev mykafka.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, s.UserTopic, strconv.FormatUint(uint64(ev.EntityID), 10), ev); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", s.UserTopic, "type", ev.Type, "error", err)
	}
}

// issueSession signs a fresh pair for user. The refresh row is returned
// unsaved so callers decide between a plain insert and a rotation.
func (s *AuthService) issueSession(user *models.User) (*transport.LoginResult, *models.RefreshToken, error) {
	access, accessExp, err := s.Issuer.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Issuer.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}

	uid := user.ID
	row := &models.RefreshToken{
		Token:     tokens.Fingerprint(refresh.Token),
		JTI:       refresh.JTI,
		UserID:    &uid,
		ExpiresAt: refresh.ExpiresAt.UTC(),
	}
	res := &transport.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		AccessExp:    accessExp,
		RefreshExp:   refresh.ExpiresAt,
		User:         user.Public(),
	}
	return res, row, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*transport.LoginResult, error) {
	email = strings.TrimSpace(email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	if email == "" || password == "" {
		l.Warn("login_failed", "status", 400, "reason", "email and password are required")
		s.record("login", "invalid")
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			hash.BurnCompare(password)
			l.Warn("login_failed", "status", 404, "reason", "user not found")
			s.record("login", "not_found")
			return nil, ErrUserNotFound
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 400, "reason", "wrong password", "user_id", user.ID)
		s.record("login", "wrong_password")
		return nil, ErrInvalidCredentials
	}

	res, row, err := s.issueSession(user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if err := s.Tokens.AddRefreshToken(ctx, row); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, err
	}

	l.Info("login_success", "user_id", user.ID, "role", user.Role)
	s.record("login", "success")
	return res, nil
}

// Refresh rotates a refresh token. The stored row is checked first so a
// replayed token is refused before any signature work, and the final
// revoke-and-insert is a single compare-and-set in the store.
func (s *AuthService) Refresh(ctx context.Context, token string) (*transport.LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if token == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing token")
		s.record("refresh", "missing")
		return nil, ErrMissingToken
	}

	row, err := s.Tokens.FindRefreshByToken(ctx, tokens.Fingerprint(token))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 403, "reason", "token not found")
			s.record("refresh", "revoked")
			return nil, ErrRefreshRevoked
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}
	if row.Revoked {
		l.Warn("refresh_failed", "status", 403, "reason", "token revoked", "token_id", row.ID, "jti", row.JTI)
		s.record("refresh", "revoked")
		return nil, ErrRefreshRevoked
	}

	sub, err := s.Issuer.VerifyRefresh(token)
	if err != nil {
		l.Warn("refresh_failed", "status", 403, "reason", "verification failed", "error", err)
		s.record("refresh", "invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	// a nil owner means the user was deleted; the lookup below reports it
	if sub.JTI != row.JTI || (row.UserID != nil && !row.OwnedBy(sub.UserID)) {
		l.Warn("refresh_failed", "status", 403, "reason", "claims do not match stored token")
		s.record("refresh", "invalid")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.Users.GetUserByID(ctx, sub.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 404, "reason", "user not found", "user_id", sub.UserID)
			s.record("refresh", "not_found")
			return nil, ErrUserNotFound
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	res, next, err := s.issueSession(user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}
	if err := s.Tokens.RotateRefreshToken(ctx, row.ID, next); err != nil {
		if errors.Is(err, repo.ErrTokenAlreadyRevoked) {
			l.Warn("refresh_failed", "status", 403, "reason", "lost rotation race", "user_id", user.ID)
			s.record("refresh", "revoked")
			return nil, ErrRefreshRevoked
		}
		l.Error("refresh_failed", "status", 500, "reason", "cannot rotate token", "error", err)
		return nil, err
	}

	l.Info("refresh_success", "user_id", user.ID)
	s.record("refresh", "success")
	return res, nil
}

// Logout is advisory: unknown and already revoked tokens succeed.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if token == "" {
		l.Warn("logout_failed", "status", 400, "reason", "missing token")
		s.record("logout", "missing")
		return ErrMissingToken
	}

	revoked, err := s.Tokens.RevokeRefreshToken(ctx, tokens.Fingerprint(token))
	if err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return err
	}

	l.Info("logout_success", "revoked", revoked)
	s.record("logout", "success")
	return nil
}

// LogoutAll revokes every active refresh token of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	l := logging.FromContext(ctx).With("svc", "auth.logout_all")

	n, err := s.Tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		l.Error("logout_all_failed", "status", 500, "user_id", userID, "error", err)
		return 0, err
	}
	l.Info("logout_all_success", "user_id", userID, "revoked", n)
	s.record("logout_all", "success")
	return n, nil
}

// RevokeSessions is LogoutAll addressed by e-mail.
func (s *AuthService) RevokeSessions(ctx context.Context, email string) (int64, error) {
	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return s.LogoutAll(ctx, user.ID)
}

// DeleteUser removes the account. Its refresh tokens stay until they expire
// and are refused with ErrUserNotFound meanwhile.
func (s *AuthService) DeleteUser(ctx context.Context, actorID uint, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.delete_user")

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("delete_user_failed", "status", 404, "reason", "user not found")
			return ErrUserNotFound
		}
		return err
	}
	if err := s.Users.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		l.Error("delete_user_failed", "status", 500, "user_id", user.ID, "error", err)
		return err
	}

	s.publish(ctx, mykafka.NewEvent(mykafka.EventUserDeleted, user.ID, actorID, map[string]string{
		"email": user.Email,
	}))
	l.Info("delete_user_success", "user_id", user.ID)
	s.record("delete_user", "success")
	return nil
}

// ForgotPassword mints a single-use reset link and hands it to the mailer
// through the user topic.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")

	if email == "" {
		l.Warn("forgot_password_failed", "status", 400, "reason", "missing email")
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("forgot_password_failed", "status", 404, "reason", "user not found")
			s.record("forgot_password", "not_found")
			return ErrUserNotFound
		}
		l.Error("forgot_password_failed", "status", 500, "error", err)
		return err
	}

	token, exp, err := s.Issuer.IssueResetToken(user.ID, tokens.PasswordStamp(user.PasswordHash))
	if err != nil {
		l.Error("forgot_password_failed", "status", 500, "error", err)
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.publish(ctx, mykafka.NewEvent(mykafka.EventPasswordResetRequested, user.ID, 0, map[string]any{
		"email":      user.Email,
		"name":       user.Name,
		"reset_url":  s.resetLink(token),
		"expires_at": exp,
	}))

	l.Info("forgot_password_success", "user_id", user.ID)
	s.record("forgot_password", "success")
	return nil
}

func (s *AuthService) resetLink(token string) string {
	u, err := url.Parse(s.ResetURL)
	if err != nil || s.ResetURL == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResetPassword consumes a reset link. The link is bound to the password it
// was minted for, so after one successful use it no longer verifies. Every
// refresh token of the user is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	if token == "" || newPassword == "" {
		l.Warn("reset_password_failed", "status", 400, "reason", "token and new password are required")
		return fmt.Errorf("%w: token and new password are required", ErrValidation)
	}

	sub, err := s.Issuer.VerifyReset(token)
	if err != nil {
		l.Warn("reset_password_failed", "status", 400, "reason", "verification failed", "error", err)
		s.record("reset_password", "invalid")
		return fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}

	user, err := s.Users.GetUserByID(ctx, sub.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("reset_password_failed", "status", 404, "reason", "user not found", "user_id", sub.UserID)
			return ErrUserNotFound
		}
		return err
	}
	if tokens.PasswordStamp(user.PasswordHash) != sub.Stamp {
		l.Warn("reset_password_failed", "status", 400, "reason", "link already used", "user_id", user.ID)
		s.record("reset_password", "used")
		return ErrInvalidResetToken
	}

	pw, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, user.ID, user.PasswordHash, pw); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("reset_password_failed", "status", 400, "reason", "lost reset race", "user_id", user.ID)
			s.record("reset_password", "used")
			return ErrInvalidResetToken
		}
		l.Error("reset_password_failed", "status", 500, "error", err)
		return err
	}

	revoked, err := s.Tokens.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		l.Error("reset_password_failed", "status", 500, "reason", "cannot revoke sessions", "error", err)
		return err
	}

	s.publish(ctx, mykafka.NewEvent(mykafka.EventPasswordResetCompleted, user.ID, user.ID, map[string]string{
		"email": user.Email,
	}))
	l.Info("reset_password_success", "user_id", user.ID, "revoked", revoked)
	s.record("reset_password", "success")
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.PublicUser, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logging.FromContext(ctx).Warn("me_failed", "status", 404, "user_id", userID)
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

// validEmail accepts a bare address only: "Bob <bob@x.com>" parses as mail
// but is not something a user can log in with.
func validEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return nil
}

func validateAccount(name, email, password string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}
	return validEmail(strings.TrimSpace(email))
}

// Register creates an account on behalf of an admin. Only a superadmin may
// create admins, and superadmins are never created here.
func (s *AuthService) Register(ctx context.Context, actorID uint, actorRole string, req transport.RegisterRequest) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "actor_id", actorID)

	if err := validateAccount(req.Name, req.Email, req.Password); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return nil, err
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		l.Warn("register_error", "status", 400, "reason", "unknown role", "role", role)
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	switch {
	case actorRole != models.RoleAdmin && actorRole != models.RoleSuperAdmin,
		role == models.RoleSuperAdmin,
		role == models.RoleAdmin && actorRole != models.RoleSuperAdmin:
		l.Warn("register_error", "status", 403, "reason", "role not allowed", "role", role, "actor_role", actorRole)
		return nil, ErrForbiddenRole
	}

	pw, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: pw,
		Role:         role,
	}
	if err := s.Users.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			return nil, ErrUserExists
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, mykafka.NewEvent(mykafka.EventUserRegistered, user.ID, actorID, map[string]string{
		"email": user.Email,
		"role":  user.Role,
	}))

	l.Info("register_success", "user_id", user.ID, "role", user.Role)
	pub := user.Public()
	return &pub, nil
}

// CreateSuperAdmin provisions the first account. It fails once any user exists.
func (s *AuthService) CreateSuperAdmin(ctx context.Context, name, email, password string) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "auth.create_superadmin")

	if err := validateAccount(name, email, password); err != nil {
		l.Warn("create_superadmin_error", "status", 400, "error", err)
		return nil, err
	}

	pw, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		PasswordHash: pw,
		Role:         models.RoleSuperAdmin,
	}
	if err := s.Users.CreateFirstUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUsersExist) {
			l.Warn("create_superadmin_error", "status", 400, "reason", "super admin already created")
			return nil, ErrSuperAdminExists
		}
		l.Error("create_superadmin_error", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, mykafka.NewEvent(mykafka.EventSuperAdminCreated, user.ID, 0, map[string]string{
		"email": user.Email,
	}))

	l.Info("create_superadmin_success", "user_id", user.ID)
	pub := user.Public()
	return &pub, nil
}

// SweepTokens deletes refresh token rows whose expiry has passed.
func (s *AuthService) SweepTokens(ctx context.Context) (int64, error) {
	n, err := s.Tokens.PurgeExpired(ctx, s.now())
	if err != nil {
		logging.FromContext(ctx).Error("token_sweep_failed", "error", err)
		return 0, err
	}
	if s.Metrics != nil {
		s.Metrics.TokensPurged(n)
	}
	logging.FromContext(ctx).Info("token_sweep_done", "purged", n)
	return n, nil
}

// RunSweeper calls SweepTokens every interval until ctx is done.
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepTokens(ctx)
		}
	}
}
