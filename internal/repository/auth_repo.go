package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bombona_tracker/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure implementation of Authorization interface at compile time.
var _ Authorization = (*UserRepository)(nil)

const (
	insertUserSQL        = `INSERT INTO users (email, full_name, role, password_hash) VALUES (?, ?, ?, ?)`
	selectUserByEmailSQL = `SELECT id, email, full_name, role, password_hash FROM users WHERE email = ?`
	selectUserByIDSQL    = `SELECT id, email, full_name, role, password_hash FROM users WHERE id = ?`
)

// Create inserts a new user and returns its ID. Emails are stored lower-case.
func (r *UserRepository) Create(email, fullName, role, passwordHash string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.db.Exec(insertUserSQL, email, fullName, role, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", email, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user %q: %w", email, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", email, err)
	}
	return int(lastID), nil
}

// GetByEmail fetches a user by email. Returns (nil, nil) if not found.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.get(selectUserByEmailSQL, email)
}

// GetByID fetches a user by id. Returns (nil, nil) if not found.
func (r *UserRepository) GetByID(id int) (*models.User, error) {
	return r.get(selectUserByIDSQL, id)
}

func (r *UserRepository) get(query string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(query, arg).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user %v: %w", arg, err)
	}
	return &u, nil
}
