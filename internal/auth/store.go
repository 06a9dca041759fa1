package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"DecorStore/internal/apperr"
	"DecorStore/internal/filedb"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	minPasswordLen = 8
)

var (
	ErrUserExists         = fmt.Errorf("%w: username or email already registered", apperr.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type userMapper struct{}

func (userMapper) Columns() []string {
	return []string{"username", "email", "password_hash", "role", "created_at"}
}

func (userMapper) ToRecord(u User) filedb.Record {
	return filedb.Record{
		filedb.IDField:  u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          u.Role,
		"created_at":    filedb.FormatTime(u.CreatedAt),
	}
}

func (userMapper) FromRecord(r filedb.Record) (User, error) {
	created, err := filedb.ParseTime(r["created_at"])
	if err != nil {
		return User{}, err
	}
	role := r["role"]
	// Older exports carry an is_admin flag instead of a role.
	if role == "" {
		role = RoleUser
		if filedb.ParseBool(r["is_admin"]) {
			role = RoleAdmin
		}
	}
	return User{
		ID:           r.ID(),
		Username:     r["username"],
		Email:        r["email"],
		PasswordHash: r["password_hash"],
		Role:         role,
		CreatedAt:    created,
	}, nil
}

// Store keeps accounts in the users table.
type Store struct {
	users *filedb.Collection[User]
	cost  int
	now   func() time.Time
}

func NewStore(db *filedb.DB) (*Store, error) {
	t, err := db.Table(filedb.Users)
	if err != nil {
		return nil, err
	}
	return &Store{
		users: filedb.NewCollection[User](t, userMapper{}),
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}, nil
}

// Create registers a new account. Username and email are unique, compared
// case-insensitively.
func (s *Store) Create(ctx context.Context, username, email, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	switch {
	case username == "" || email == "" || password == "":
		return User{}, fmt.Errorf("%w: username, email and password required", apperr.ErrValidation)
	case !strings.Contains(email, "@"):
		return User{}, fmt.Errorf("%w: email is not valid", apperr.ErrValidation)
	case len(password) < minPasswordLen:
		return User{}, fmt.Errorf("%w: password must be at least %d chars", apperr.ErrValidation, minPasswordLen)
	}
	if role != RoleAdmin {
		role = RoleUser
	}

	// Hash outside the table lock.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}

	var out User
	err = s.users.Mutate(ctx, func(tx *filedb.CollectionTx[User]) error {
		all, err := tx.All()
		if err != nil {
			return err
		}
		for _, u := range all {
			if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
				return ErrUserExists
			}
		}
		out, err = tx.Insert(User{
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			Role:         role,
			CreatedAt:    s.now(),
		})
		return err
	})
	return out, err
}

// Verify checks a password for the account named by login, which may be a
// username, an email or a user id.
func (s *Store) Verify(ctx context.Context, login, password string) (User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	matches, err := s.users.Find(ctx, func(u User) bool {
		return u.ID == login || strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login)
	})
	if err != nil {
		return User{}, err
	}
	if len(matches) == 0 || matches[0].PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}

	u := matches[0]
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id string) (User, error) {
	return s.users.Get(ctx, id)
}

// SeedAdmin creates the admin account unless an admin already exists.
// It reports whether an account was created.
func (s *Store) SeedAdmin(ctx context.Context, username, email, password string) (bool, error) {
	admins, err := s.users.Find(ctx, User.IsAdmin)
	if err != nil {
		return false, err
	}
	if len(admins) > 0 {
		return false, nil
	}

	_, err = s.Create(ctx, username, email, password, RoleAdmin)
	if errors.Is(err, apperr.ErrConflict) {
		return false, nil
	}
	return err == nil, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
