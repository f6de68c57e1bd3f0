package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/ratelimit"
)

// Service manages share-link users and resolves request actors.
type Service struct {
	users   *UserStore
	audit   auditlog.Recorder
	cfg     Config
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(users *UserStore, audit auditlog.Recorder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = DefaultActor
	}
	return &Service{
		users:   users,
		audit:   audit,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.LoginRatePerMinute, time.Minute),
		logger:  logger,
		now:     time.Now,
	}
}

// CreateUser issues a share token for username.
func (s *Service) CreateUser(ctx context.Context, actorID, username string) (User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return User{}, apperr.Missing("username")
	}
	hash, err := HashPassword(s.cfg.DefaultPassword, s.cfg)
	if err != nil {
		return User{}, fmt.Errorf("hash default password: %w", err)
	}

	var user User
	err = s.users.Update(ctx, func(users map[string]User) error {
		token := GenerateToken()
		for users[token].Token != "" {
			token = GenerateToken()
		}
		user = User{Username: username, Token: token, PasswordHash: hash, CreatedAt: s.now().UTC()}
		users[token] = user
		return nil
	})
	if err != nil {
		return User{}, err
	}

	if _, _, err := s.audit.Append(ctx, actorID, auditlog.ActionCreateUser, map[string]string{
		"username": username,
		"token":    user.Token,
	}); err != nil {
		return User{}, apperr.AuditError{Action: auditlog.ActionCreateUser, Err: err}
	}
	s.logger.Info("user created", "username", username, "actorId", actorID)
	return user.Public(), nil
}

// DeleteUser removes the user holding token.
func (s *Service) DeleteUser(ctx context.Context, actorID, token string) error {
	if token == "" {
		return apperr.Missing("token")
	}
	var removed User
	err := s.users.Update(ctx, func(users map[string]User) error {
		u, ok := users[token]
		if !ok {
			return apperr.NotFoundError{Kind: "user token", Key: token}
		}
		removed = u
		delete(users, token)
		return nil
	})
	if err != nil {
		return err
	}

	if _, _, err := s.audit.Append(ctx, actorID, auditlog.ActionDeleteUser, map[string]string{
		"username": removed.Username,
		"token":    token,
	}); err != nil {
		return apperr.AuditError{Action: auditlog.ActionDeleteUser, Err: err}
	}
	s.logger.Info("user deleted", "username", removed.Username, "actorId", actorID)
	return nil
}

// Login returns the user whose name and password match.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return User{}, apperr.Missing("username")
	}
	if password == "" {
		return User{}, apperr.Missing("password")
	}
	if ok, retryAfter := s.limiter.Allow(username); !ok {
		return User{}, apperr.RateLimitError{RetryAfter: retryAfter}
	}

	users, err := s.users.Load(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.Username == username && VerifyPassword(password, u.PasswordHash) {
			s.limiter.Reset(username)
			return u.Public(), nil
		}
	}
	return User{}, apperr.UnauthorizedError{Reason: "invalid username or password"}
}

// Users returns every user without password hashes, keyed by token.
func (s *Service) Users(ctx context.Context) (map[string]User, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	for token, u := range users {
		users[token] = u.Public()
	}
	return users, nil
}

// ResolveActor maps the first known token among the candidates to its
// username. Unknown or absent tokens resolve to the default actor.
func (s *Service) ResolveActor(ctx context.Context, candidates ...string) (string, error) {
	var users map[string]User
	for _, token := range candidates {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if users == nil {
			loaded, err := s.users.Load(ctx)
			if err != nil {
				return "", err
			}
			users = loaded
		}
		if u, ok := users[token]; ok {
			return u.Username, nil
		}
	}
	return s.cfg.DefaultActor, nil
}

// refererToken returns the first path segment of a Referer URL, which is the
// share token of the page the request was made from.
func refererToken(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	segment, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return strings.ToLower(segment)
}
