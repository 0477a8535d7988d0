package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

// unknownUserHash is compared against when the username does not exist so a
// failed lookup costs about as much as a wrong password.
var unknownUserHash, _ = bcrypt.GenerateFromPassword([]byte("no-such-user"), bcrypt.DefaultCost)

type Service struct {
	db  *gorm.DB
	jwt *JWTService
	now func() time.Time
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt, now: time.Now}
}

type LoginInput struct {
	Username string
	Password string
}

// Session is a signed-in user and the token that carries it.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Agent.Sites").
		Where("username = ?", strings.TrimSpace(input.Username)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(unknownUserHash, []byte(input.Password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	// Checked after the password so the response does not reveal which
	// accounts exist but are disabled.
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).
		UpdateColumn("last_login_at", now).Error; err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		ExpiresAt: now.Add(s.jwt.Expiry()),
		User:      &user,
	}, nil
}

// GetUserByID loads the user with its agent and the agent's sites.
func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Agent.Sites").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
