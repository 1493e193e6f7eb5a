// Package service holds the business operations behind the HTTP handlers:
// the request lifecycle engine, the admin purge and the user directory.
// Every operation takes the caller's identity explicitly and consults the
// access policy before touching storage.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
	"github.com/iliyamo/maallem-marketplace/internal/model"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
	"github.com/iliyamo/maallem-marketplace/internal/queue"
	"github.com/iliyamo/maallem-marketplace/internal/repository"
)

// RequestStore is the persistence the engine needs.  TransitionStatus must
// apply its guard and write as one atomic operation and report
// repository.ErrNoRowsAffected when the guard does not hold.
type RequestStore interface {
	Create(ctx context.Context, req *model.ServiceRequest) error
	GetByID(ctx context.Context, id uint64) (*model.ServiceRequest, error)
	ListByProvider(ctx context.Context, providerID uint64) ([]repository.ProviderRequestView, error)
	ListByUser(ctx context.Context, userID uint64) ([]repository.UserRequestView, error)
	TransitionStatus(ctx context.Context, requestID, providerID uint64, status model.Status) error
}

// DirectoryGateway answers questions about accounts owned elsewhere.
type DirectoryGateway interface {
	UserExists(ctx context.Context, id uint64, role model.Role) (bool, error)
	GetProviderProfile(ctx context.Context, userID uint64) (*model.ProviderProfile, error)
}

// Engine enforces the service request state machine.
type Engine struct {
	store  RequestStore
	dir    DirectoryGateway
	policy *policy.Policy
	events Publisher
	log    *slog.Logger
	now    func() time.Time
}

// NewEngine wires an Engine.  A nil publisher disables events.
func NewEngine(store RequestStore, dir DirectoryGateway, pol *policy.Policy, events Publisher, log *slog.Logger) *Engine {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, dir: dir, policy: pol, events: events, log: log, now: time.Now}
}

// CreateInput is the payload of CreateRequest.
type CreateInput struct {
	ProviderUserID uint64
	Description    string
	Address        string
}

// CreateRequest records a new pending request from the calling user to a
// provider.  Duplicate requests to the same provider are allowed.
func (e *Engine) CreateRequest(ctx context.Context, id identity.Identity, in CreateInput) (*model.ServiceRequest, error) {
	if err := e.policy.Authorize(id, policy.OpCreateRequest, policy.Owners{RequesterID: id.ID}).Err(); err != nil {
		return nil, err
	}

	desc := strings.TrimSpace(in.Description)
	if in.ProviderUserID == 0 || desc == "" {
		return nil, apperror.New(apperror.Validation, "missing providerUserId or description")
	}
	if in.ProviderUserID == id.ID {
		return nil, apperror.New(apperror.Validation, "cannot send a request to yourself")
	}

	ok, err := e.dir.UserExists(ctx, id.ID, model.RoleUser)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	if !ok {
		return nil, apperror.New(apperror.Validation, "requester is not an existing user")
	}
	ok, err = e.dir.UserExists(ctx, in.ProviderUserID, model.RoleProvider)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	if !ok {
		return nil, apperror.New(apperror.Validation, "provider does not exist")
	}

	req := &model.ServiceRequest{
		RequesterID: id.ID,
		ProviderID:  in.ProviderUserID,
		Description: desc,
		Status:      model.StatusPending,
		CreatedAt:   e.now().UTC(),
	}
	if addr := strings.TrimSpace(in.Address); addr != "" {
		req.Address = &addr
	}
	if err := e.store.Create(ctx, req); err != nil {
		return nil, apperror.StorageFailure(err)
	}

	emit(ctx, e.events, e.log, queue.KeyRequestCreated, e.event(req))
	return req, nil
}

// ListForProvider returns the requests addressed to the calling provider,
// newest first.
func (e *Engine) ListForProvider(ctx context.Context, id identity.Identity) ([]repository.ProviderRequestView, error) {
	if err := e.policy.Authorize(id, policy.OpListProviderRequests, policy.Owners{ProviderID: id.ID}).Err(); err != nil {
		return nil, err
	}
	out, err := e.store.ListByProvider(ctx, id.ID)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return out, nil
}

// ListForUser returns the requests created by the calling user, newest
// first.
func (e *Engine) ListForUser(ctx context.Context, id identity.Identity) ([]repository.UserRequestView, error) {
	if err := e.policy.Authorize(id, policy.OpListUserRequests, policy.Owners{RequesterID: id.ID}).Err(); err != nil {
		return nil, err
	}
	out, err := e.store.ListByUser(ctx, id.ID)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return out, nil
}

// TransitionStatus moves one of the calling provider's pending requests to
// accepted or rejected.  A request that is missing, owned by another
// provider or already terminal yields NotFoundOrForbidden; the three cases
// are indistinguishable to the caller.
func (e *Engine) TransitionStatus(ctx context.Context, id identity.Identity, requestID uint64, status string) (*model.ServiceRequest, error) {
	if err := e.policy.Authorize(id, policy.OpTransitionRequest, policy.Owners{ProviderID: id.ID}).Err(); err != nil {
		return nil, err
	}
	if requestID == 0 {
		return nil, apperror.New(apperror.Validation, "invalid request id")
	}
	target, ok := model.ParseTargetStatus(strings.TrimSpace(status))
	if !ok {
		return nil, apperror.New(apperror.Validation, "status must be accepted or rejected")
	}

	if err := e.store.TransitionStatus(ctx, requestID, id.ID, target); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return nil, apperror.New(apperror.NotFoundOrForbidden, "request not found (or it does not belong to you)")
		}
		return nil, apperror.StorageFailure(err)
	}

	// The write already succeeded; a failed reload only degrades the
	// response body.
	req, err := e.store.GetByID(ctx, requestID)
	if err != nil {
		e.log.Warn("reload after transition failed", "request_id", requestID, "error", err)
		req = &model.ServiceRequest{ID: requestID, ProviderID: id.ID, Status: target}
	}

	emit(ctx, e.events, e.log, queue.StatusKey(string(target)), e.event(req))
	return req, nil
}

func (e *Engine) event(req *model.ServiceRequest) queue.RequestEvent {
	return queue.RequestEvent{
		RequestID:      req.ID,
		UserID:         req.RequesterID,
		ProviderUserID: req.ProviderID,
		Status:         string(req.Status),
		OccurredAt:     timestamp(e.now()),
	}
}
