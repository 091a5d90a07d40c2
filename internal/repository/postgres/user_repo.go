package postgres

import (
	"database/sql"
	"fmt"
	"time"
)

type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

// Role values for accounts.
const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

type User struct {
	ID           int64
	Username     string
	Name         string
	Role         string
	Email        sql.NullString
	PasswordHash string
	CreatedAt    time.Time
}

// UserResponse returns a consistent JSON-friendly map of user data
func (u *User) UserResponse() map[string]interface{} {
	email := ""
	if u.Email.Valid {
		email = u.Email.String
	}
	return map[string]interface{}{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"role":     u.Role,
		"email":    email,
	}
}

// CreateUser creates a new account with a hashed password.
func (r *UserRepo) CreateUser(username, name, role, passwordHash, email string) (int64, error) {
	query := `
	INSERT INTO users (username, name, role, password_hash, email)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	RETURNING id;
	`
	var id int64
	if err := r.DB.QueryRow(query, username, name, role, passwordHash, email).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create user: %v", err)
	}
	return id, nil
}

// GetUserByIdentifier looks up an account by username or email.
func (r *UserRepo) GetUserByIdentifier(identifier string) (*User, error) {
	query := `
	SELECT id, username, name, role, email, password_hash, created_at
	FROM users
	WHERE username = $1 OR email = $1;
	`
	return r.scanOne(r.DB.QueryRow(query, identifier))
}

// GetUserByID looks up an account by primary key.
func (r *UserRepo) GetUserByID(id int64) (*User, error) {
	query := `
	SELECT id, username, name, role, email, password_hash, created_at
	FROM users
	WHERE id = $1;
	`
	return r.scanOne(r.DB.QueryRow(query, id))
}

func (r *UserRepo) scanOne(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return &u, nil
}
