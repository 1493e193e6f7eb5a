package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/database"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
	"github.com/iliyamo/maallem-marketplace/internal/queue"
	"github.com/iliyamo/maallem-marketplace/internal/repository"
)

// ImageReleaser frees a stored image.
type ImageReleaser interface {
	Release(name string) error
}

// Purger deletes a user together with every dependent record.
type Purger struct {
	db       *sql.DB
	users    *repository.UserRepo
	profiles *repository.ProfileRepo
	requests *repository.RequestRepo
	images   ImageReleaser
	policy   *policy.Policy
	events   Publisher
	cache    CacheInvalidator
	log      *slog.Logger
	now      func() time.Time
}

// NewPurger wires a Purger over db.
func NewPurger(db *sql.DB, images ImageReleaser, pol *policy.Policy, events Publisher, log *slog.Logger) *Purger {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Purger{
		db:       db,
		users:    repository.NewUserRepo(db),
		profiles: repository.NewProfileRepo(db),
		requests: repository.NewRequestRepo(db),
		images:   images,
		policy:   pol,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// SetCacheInvalidator makes every committed purge drop cached search and
// dropdown responses.
func (p *Purger) SetCacheInvalidator(c CacheInvalidator) { p.cache = c }

// PurgeResult summarizes a committed purge.
type PurgeResult struct {
	UserID          uint64 `json:"userId"`
	RequestsDeleted int64  `json:"requestsDeleted"`
	ImageReleased   bool   `json:"imageReleased"`
}

// DeleteUser removes targetID, its provider profile and every request that
// references it on either side.  All row deletions share one transaction;
// the profile image is released only after the commit and a failure to
// release it is logged, not returned.
func (p *Purger) DeleteUser(ctx context.Context, admin identity.Identity, targetID uint64) (PurgeResult, error) {
	if err := p.policy.Authorize(admin, policy.OpAdminDeleteUser, policy.Owners{}).Err(); err != nil {
		return PurgeResult{}, err
	}
	if targetID == 0 {
		return PurgeResult{}, apperror.New(apperror.Validation, "invalid user id")
	}

	var (
		email   string
		image   *string
		deleted int64
	)
	err := database.RunInTransaction(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		email, err = p.users.GetEmailTx(ctx, tx, targetID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.New(apperror.NotFound, "user not found")
		}
		if err != nil {
			return err
		}
		if err := p.policy.Authorize(admin, policy.OpAdminDeleteUser, policy.Owners{TargetEmail: email}).Err(); err != nil {
			return err
		}

		if image, err = p.profiles.GetImageTx(ctx, tx, targetID); err != nil {
			return err
		}
		if deleted, err = p.requests.DeleteByUserTx(ctx, tx, targetID); err != nil {
			return err
		}
		if err := p.profiles.DeleteByUserTx(ctx, tx, targetID); err != nil {
			return err
		}
		if err := p.users.DeleteTx(ctx, tx, targetID); err != nil {
			if errors.Is(err, repository.ErrNoRowsAffected) {
				return apperror.New(apperror.NotFound, "user not found")
			}
			return err
		}
		return nil
	})
	if err != nil {
		var ae *apperror.Error
		if errors.As(err, &ae) {
			return PurgeResult{}, err
		}
		p.log.Error("purge transaction failed", "user_id", targetID, "error", err)
		return PurgeResult{}, apperror.StorageFailure(err)
	}

	res := PurgeResult{UserID: targetID, RequestsDeleted: deleted}
	if image != nil && *image != "" && p.images != nil {
		if err := p.images.Release(*image); err != nil {
			p.log.Warn("image release after purge failed", "user_id", targetID, "image", *image, "error", err)
		} else {
			res.ImageReleased = true
		}
	}

	invalidate(ctx, p.cache, p.log, "user purged")
	p.log.Info("user purged", "user_id", targetID, "admin_id", admin.ID, "requests_deleted", deleted)
	emit(ctx, p.events, p.log, queue.KeyUserPurged, queue.UserPurgedEvent{
		UserID:          targetID,
		Email:           email,
		AdminID:         admin.ID,
		RequestsDeleted: deleted,
		ImageReleased:   res.ImageReleased,
		OccurredAt:      timestamp(p.now()),
	})
	return res, nil
}
