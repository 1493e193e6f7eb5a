package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// RequestRepo is the only writer of the service_requests table.  Status
// changes go through TransitionStatus, which is a single conditional UPDATE
// so that two concurrent transitions cannot both observe 'pending'.  All
// timestamps are stored in UTC.
type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo returns a new RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

// ProviderRequestView is a request as listed for its provider, joined with
// the requester's display name and email.
type ProviderRequestView struct {
	ID          uint64       `json:"id"`
	Description string       `json:"description"`
	Address     *string      `json:"address"`
	Status      model.Status `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UserName    string       `json:"userName"`
	UserEmail   string       `json:"userEmail"`
}

// UserRequestView is a request as listed for its requester, joined with the
// provider's name, city and profession.  City and profession are nullable
// because the profile join is a LEFT JOIN.
type UserRequestView struct {
	ID                 uint64       `json:"id"`
	Description        string       `json:"description"`
	Address            *string      `json:"address"`
	Status             model.Status `json:"status"`
	CreatedAt          time.Time    `json:"created_at"`
	ProviderName       string       `json:"providerName"`
	ProviderCity       *string      `json:"providerCity"`
	ProviderProfession *string      `json:"providerProfession"`
}

// Create inserts a new pending request and populates its generated ID.  The
// caller supplies CreatedAt; Status is forced to pending.
func (r *RequestRepo) Create(ctx context.Context, req *model.ServiceRequest) error {
	const q = `INSERT INTO service_requests (user_id, provider_user_id, description, address, status, created_at)
               VALUES (?, ?, ?, ?, 'pending', ?)`
	res, err := r.db.ExecContext(ctx, q, req.RequesterID, req.ProviderID, req.Description, req.Address, req.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	req.Status = model.StatusPending
	return nil
}

// GetByID returns a single request.  ErrNotFound is returned when no row
// matches.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (*model.ServiceRequest, error) {
	const q = `SELECT id, user_id, provider_user_id, description, address, status, created_at
               FROM service_requests WHERE id = ?`
	var (
		req     model.ServiceRequest
		address sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&req.ID, &req.RequesterID, &req.ProviderID, &req.Description, &address, &req.Status, &req.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	req.Address = nullToPtr(address)
	return &req, nil
}

// ListByProvider returns every request addressed to providerID, newest
// first.  An empty slice (never nil) is returned when there are none.
func (r *RequestRepo) ListByProvider(ctx context.Context, providerID uint64) ([]ProviderRequestView, error) {
	const q = `SELECT r.id, r.description, r.address, r.status, r.created_at,
                      u.full_name, u.email
               FROM service_requests r
               JOIN users u ON u.id = r.user_id
               WHERE r.provider_user_id = ?
               ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ProviderRequestView, 0)
	for rows.Next() {
		var (
			v       ProviderRequestView
			address sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Description, &address, &v.Status, &v.CreatedAt, &v.UserName, &v.UserEmail); err != nil {
			return nil, err
		}
		v.Address = nullToPtr(address)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns every request created by userID, newest first.
func (r *RequestRepo) ListByUser(ctx context.Context, userID uint64) ([]UserRequestView, error) {
	const q = `SELECT r.id, r.description, r.address, r.status, r.created_at,
                      p.full_name, pp.city, pp.profession
               FROM service_requests r
               JOIN users p ON p.id = r.provider_user_id
               LEFT JOIN provider_profiles pp ON pp.user_id = r.provider_user_id
               WHERE r.user_id = ?
               ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]UserRequestView, 0)
	for rows.Next() {
		var (
			v                      UserRequestView
			address, city, profess sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Description, &address, &v.Status, &v.CreatedAt, &v.ProviderName, &city, &profess); err != nil {
			return nil, err
		}
		v.Address = nullToPtr(address)
		v.ProviderCity = nullToPtr(city)
		v.ProviderProfession = nullToPtr(profess)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus moves a pending request owned by providerID into status.
// The guard and the write are one statement evaluated by the database; when
// the request is missing, belongs to someone else or is no longer pending,
// zero rows match and ErrNoRowsAffected is returned.
func (r *RequestRepo) TransitionStatus(ctx context.Context, requestID, providerID uint64, status model.Status) error {
	const q = `UPDATE service_requests
               SET status = ?
               WHERE id = ? AND provider_user_id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, status, requestID, providerID)
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

// DeleteByUserTx removes every request where userID is either party.  It
// runs inside the caller's transaction and returns the number of rows
// removed.
func (r *RequestRepo) DeleteByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM service_requests WHERE user_id = ? OR provider_user_id = ?`, userID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
