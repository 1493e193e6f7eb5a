package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// UserRepo reads and writes the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, full_name, email, password, role, created_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Password, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// CreateTx inserts user and returns its ID.  Email is expected to be
// normalized already.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (full_name, email, password, role, created_at) VALUES (?,?,?,?,?)",
		u.FullName, u.Email, u.Password, u.Role, u.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = uint64(id)
	return u.ID, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetEmailTx reads the email of id inside a transaction, locking the row so
// a concurrent update cannot swap it out before the purge finishes.
func (r *UserRepo) GetEmailTx(ctx context.Context, tx *sql.Tx, id uint64) (string, error) {
	var email string
	err := tx.QueryRowContext(ctx, "SELECT email FROM users WHERE id=? FOR UPDATE", id).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return email, err
}

// ExistsWithRole reports whether id exists and has role.
func (r *UserRepo) ExistsWithRole(ctx context.Context, id uint64, role model.Role) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE id=? AND role=? LIMIT 1", id, role).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateTx changes the display name and email of id.
func (r *UserRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, fullName, email string) error {
	_, err := tx.ExecContext(ctx, "UPDATE users SET full_name=?, email=? WHERE id=?", fullName, email, id)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// DeleteTx removes the user row.  ErrNoRowsAffected is returned when it
// did not exist.
func (r *UserRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// AdminUserRow is a user joined with its optional provider profile, as shown
// on the admin dashboard.
type AdminUserRow struct {
	ID         uint64     `json:"id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
	Phone      *string    `json:"phone"`
	City       *string    `json:"city"`
	Profession *string    `json:"profession"`
	Bio        *string    `json:"bio"`
	Image      *string    `json:"-"`
}

// ListWithProfiles returns all users, newest id first.
func (r *UserRepo) ListWithProfiles(ctx context.Context) ([]AdminUserRow, error) {
	const q = `SELECT u.id, u.full_name, u.email, u.role,
                      pp.phone, pp.city, pp.profession, pp.bio, pp.image
               FROM users u
               LEFT JOIN provider_profiles pp ON pp.user_id = u.id
               ORDER BY u.id DESC`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminUserRow, 0)
	for rows.Next() {
		var (
			row                                 AdminUserRow
			phone, city, profession, bio, image sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.FullName, &row.Email, &row.Role,
			&phone, &city, &profession, &bio, &image); err != nil {
			return nil, err
		}
		row.Phone, row.City, row.Profession = nullToPtr(phone), nullToPtr(city), nullToPtr(profession)
		row.Bio, row.Image = nullToPtr(bio), nullToPtr(image)
		out = append(out, row)
	}
	return out, rows.Err()
}
