package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// ProfileRepo reads and writes provider_profiles.  A profile row exists
// exactly when its user has the provider role; creation and deletion happen
// inside the same transactions that create or delete the user.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// CreateTx inserts the profile for p.UserID.
func (r *ProfileRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.ProviderProfile) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO provider_profiles (user_id, phone, city, profession, bio, image)
         VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Phone, p.City, p.Profession, p.Bio, p.Image)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByUserID returns the profile owned by userID or ErrNotFound.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID uint64) (*model.ProviderProfile, error) {
	var (
		p                 model.ProviderProfile
		phone, bio, image sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, phone, city, profession, bio, image
         FROM provider_profiles WHERE user_id = ?`, userID).
		Scan(&p.ID, &p.UserID, &phone, &p.City, &p.Profession, &bio, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Phone, p.Bio, p.Image = nullToPtr(phone), nullToPtr(bio), nullToPtr(image)
	return &p, nil
}

// GetImageTx returns the stored image name of userID's profile, or nil when
// there is no profile or no image.
func (r *ProfileRepo) GetImageTx(ctx context.Context, tx *sql.Tx, userID uint64) (*string, error) {
	var image sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT image FROM provider_profiles WHERE user_id = ?`, userID).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nullToPtr(image), nil
}

// UpdateTx rewrites the editable profile fields.  When image is nil the
// stored image is left untouched.
func (r *ProfileRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.ProviderProfile) error {
	if p.Image != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE provider_profiles SET phone=?, city=?, profession=?, bio=?, image=? WHERE user_id=?`,
			p.Phone, p.City, p.Profession, p.Bio, *p.Image, p.UserID)
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE provider_profiles SET phone=?, city=?, profession=?, bio=? WHERE user_id=?`,
		p.Phone, p.City, p.Profession, p.Bio, p.UserID)
	return err
}

// DeleteByUserTx removes userID's profile if present.
func (r *ProfileRepo) DeleteByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM provider_profiles WHERE user_id = ?`, userID)
	return err
}

// ProviderSearchRow is one search hit.
type ProviderSearchRow struct {
	ProfileID      uint64  `json:"providerProfileId"`
	ProviderUserID uint64  `json:"providerUserId"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone"`
	City           string  `json:"city"`
	Profession     string  `json:"profession"`
	Bio            *string `json:"bio"`
	Image          *string `json:"-"`
}

// Search lists providers filtered by city and profession.  An empty filter
// matches everything.  Results are ordered by full name.
func (r *ProfileRepo) Search(ctx context.Context, city, profession string) ([]ProviderSearchRow, error) {
	const q = `SELECT p.id, p.user_id, u.full_name, u.email, p.phone, p.city, p.profession, p.bio, p.image
               FROM provider_profiles p
               JOIN users u ON u.id = p.user_id
               WHERE (? = '' OR p.city = ?)
                 AND (? = '' OR p.profession = ?)
               ORDER BY u.full_name ASC`
	rows, err := r.DB.QueryContext(ctx, q, city, city, profession, profession)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ProviderSearchRow, 0)
	for rows.Next() {
		var (
			row               ProviderSearchRow
			phone, bio, image sql.NullString
		)
		if err := rows.Scan(&row.ProfileID, &row.ProviderUserID, &row.FullName, &row.Email,
			&phone, &row.City, &row.Profession, &bio, &image); err != nil {
			return nil, err
		}
		row.Phone, row.Bio, row.Image = nullToPtr(phone), nullToPtr(bio), nullToPtr(image)
		out = append(out, row)
	}
	return out, rows.Err()
}
