package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/database"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
	"github.com/iliyamo/maallem-marketplace/internal/model"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
	"github.com/iliyamo/maallem-marketplace/internal/repository"
	"github.com/iliyamo/maallem-marketplace/internal/utils"
)

// ImageStore persists provider images by generated name.
type ImageStore interface {
	ImageReleaser
	Save(original string, r io.Reader) (string, error)
	Base64(name string) (string, error)
}

// Upload is an optional image attached to signup or account update.
type Upload struct {
	Name string
	Body io.Reader
}

// TokenConfig controls access token issuance at login.
type TokenConfig struct {
	Secret string
	TTLMin int
}

// Directory owns user accounts, provider profiles and reference data.  It
// also serves as the DirectoryGateway of the lifecycle engine.
type Directory struct {
	db       *sql.DB
	users    *repository.UserRepo
	profiles *repository.ProfileRepo
	lookups  *repository.LookupRepo
	images   ImageStore
	cache    CacheInvalidator
	policy   *policy.Policy
	tokens   TokenConfig
	log      *slog.Logger
	now      func() time.Time
}

// NewDirectory wires a Directory over db.
func NewDirectory(db *sql.DB, images ImageStore, pol *policy.Policy, tokens TokenConfig, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		db:       db,
		users:    repository.NewUserRepo(db),
		profiles: repository.NewProfileRepo(db),
		lookups:  repository.NewLookupRepo(db),
		images:   images,
		policy:   pol,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
}

// SetCacheInvalidator makes committed provider changes drop cached search
// and dropdown responses.
func (d *Directory) SetCacheInvalidator(c CacheInvalidator) { d.cache = c }

// EnsureAdmin creates the account bound to the reserved admin email when it
// does not exist yet.  An existing row is left untouched, so a password
// changed after the first start survives restarts.  It reports whether a
// row was inserted.
func (d *Directory) EnsureAdmin(ctx context.Context, fullName, password string) (bool, error) {
	email := d.policy.AdminEmail
	if email == "" {
		return false, apperror.New(apperror.Validation, "no admin email configured")
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return false, apperror.New(apperror.Validation, "admin password is required to create the admin account")
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Admin"
	}

	_, err := d.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, apperror.StorageFailure(err)
	}

	u := &model.User{FullName: strings.TrimSpace(fullName), Email: email, Password: password, Role: model.RoleAdmin, CreatedAt: d.now().UTC()}
	err = database.RunInTransaction(ctx, d.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := d.users.CreateTx(ctx, tx, u)
		return err
	})
	if errors.Is(err, repository.ErrEmailExists) {
		// another instance seeded it first
		return false, nil
	}
	if err != nil {
		return false, apperror.StorageFailure(err)
	}
	d.log.Info("admin account created", "user_id", u.ID, "email", email)
	return true, nil
}

// UserExists reports whether id is an account with role.
func (d *Directory) UserExists(ctx context.Context, id uint64, role model.Role) (bool, error) {
	return d.users.ExistsWithRole(ctx, id, role)
}

// GetProviderProfile returns userID's provider profile, or nil when the user
// has none.
func (d *Directory) GetProviderProfile(ctx context.Context, userID uint64) (*model.ProviderProfile, error) {
	p, err := d.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// SignupInput is the signup form after transport decoding.
type SignupInput struct {
	FullName   string
	Email      string
	Password   string
	Role       string
	Phone      string
	City       string
	Profession string
	Bio        string
	Image      *Upload
}

// SignupResult identifies the new account.
type SignupResult struct {
	UserID uint64     `json:"userId"`
	Role   model.Role `json:"role"`
}

// Signup creates a user or provider account.  The admin role cannot be
// chosen and the reserved admin email cannot be registered.
func (d *Directory) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := model.NormalizeEmail(in.Email)
	password := strings.TrimSpace(in.Password)
	if fullName == "" || email == "" || password == "" || strings.TrimSpace(in.Role) == "" {
		return SignupResult{}, apperror.New(apperror.Validation, "missing required fields")
	}
	role, ok := model.ParseRole(in.Role)
	if !ok || role == model.RoleAdmin {
		return SignupResult{}, apperror.New(apperror.Validation, "invalid role")
	}
	if d.policy.IsReserved(email) {
		return SignupResult{}, apperror.New(apperror.Validation, "this email is reserved for admin, use another email")
	}

	var profile *model.ProviderProfile
	if role == model.RoleProvider {
		city, profession := strings.TrimSpace(in.City), strings.TrimSpace(in.Profession)
		if city == "" || profession == "" {
			return SignupResult{}, apperror.New(apperror.Validation, "providers must select city and profession")
		}
		profile = &model.ProviderProfile{
			Phone:      optional(in.Phone),
			City:       city,
			Profession: profession,
			Bio:        optional(in.Bio),
		}
		name, err := d.saveImage(in.Image)
		if err != nil {
			return SignupResult{}, err
		}
		profile.Image = name
	}

	u := &model.User{FullName: fullName, Email: email, Password: password, Role: role, CreatedAt: d.now().UTC()}
	err := database.RunInTransaction(ctx, d.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := d.users.CreateTx(ctx, tx, u); err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserID = u.ID
		return d.profiles.CreateTx(ctx, tx, profile)
	})
	if err != nil {
		if profile != nil {
			d.releaseImage(profile.Image)
		}
		if errors.Is(err, repository.ErrEmailExists) {
			return SignupResult{}, apperror.Wrap(apperror.Conflict, "email already exists", err)
		}
		return SignupResult{}, apperror.StorageFailure(err)
	}

	if profile != nil {
		invalidate(ctx, d.cache, d.log, "provider signed up")
	}
	d.log.Info("account created", "user_id", u.ID, "role", role)
	return SignupResult{UserID: u.ID, Role: role}, nil
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User        model.User `json:"user"`
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// Login checks credentials and issues an access token.  The admin role is
// assigned here, and only here, when the email is the reserved address.
func (d *Directory) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = model.NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return LoginResult{}, apperror.New(apperror.Validation, "missing email or password")
	}

	u, err := d.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, apperror.New(apperror.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return LoginResult{}, apperror.StorageFailure(err)
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return LoginResult{}, apperror.New(apperror.Unauthenticated, "invalid credentials")
	}
	if d.policy.IsReserved(u.Email) {
		u.Role = model.RoleAdmin
	}

	tok, err := utils.NewAccessToken(d.tokens.Secret, u.ID, string(u.Role), u.Email, d.tokens.TTLMin)
	if err != nil {
		return LoginResult{}, apperror.Wrap(apperror.Storage, "could not issue token", err)
	}
	return LoginResult{User: u, AccessToken: tok.Token, ExpiresAt: tok.Exp}, nil
}

// ProfileView is a provider profile with its image inlined as base64.
type ProfileView struct {
	Phone      *string `json:"phone"`
	City       string  `json:"city"`
	Profession string  `json:"profession"`
	Bio        *string `json:"bio"`
	Image      *string `json:"image"`
}

// AccountView is the caller's own account.
type AccountView struct {
	User            model.User   `json:"user"`
	ProviderProfile *ProfileView `json:"providerProfile,omitempty"`
}

// Account returns the caller's account and, for providers, their profile.
func (d *Directory) Account(ctx context.Context, id identity.Identity) (AccountView, error) {
	if err := d.policy.Authorize(id, policy.OpViewAccount, policy.Owners{SubjectID: id.ID}).Err(); err != nil {
		return AccountView{}, err
	}
	u, err := d.users.GetByID(ctx, id.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return AccountView{}, apperror.New(apperror.NotFound, "user not found")
	}
	if err != nil {
		return AccountView{}, apperror.StorageFailure(err)
	}
	view := AccountView{User: u}
	if id.Role == model.RoleAdmin || u.Role != model.RoleProvider {
		return view, nil
	}

	p, err := d.GetProviderProfile(ctx, id.ID)
	if err != nil {
		return AccountView{}, apperror.StorageFailure(err)
	}
	if p != nil {
		view.ProviderProfile = &ProfileView{
			Phone:      p.Phone,
			City:       p.City,
			Profession: p.Profession,
			Bio:        p.Bio,
			Image:      d.imageData(p.Image),
		}
	}
	return view, nil
}

// UpdateInput is the account form after transport decoding.
type UpdateInput struct {
	FullName   string
	Email      string
	Phone      string
	City       string
	Profession string
	Bio        string
	Image      *Upload
}

// UpdateAccount rewrites the caller's account.  Providers also update their
// profile; a replaced image is released once the update has committed.
func (d *Directory) UpdateAccount(ctx context.Context, id identity.Identity, in UpdateInput) error {
	if err := d.policy.Authorize(id, policy.OpUpdateAccount, policy.Owners{SubjectID: id.ID}).Err(); err != nil {
		return err
	}
	fullName := strings.TrimSpace(in.FullName)
	email := model.NormalizeEmail(in.Email)
	if fullName == "" || email == "" {
		return apperror.New(apperror.Validation, "missing fullName or email")
	}
	if d.policy.IsReserved(email) && !d.policy.IsReserved(id.Email) {
		return apperror.New(apperror.Validation, "this email is reserved for admin, use another email")
	}
	if d.policy.IsReserved(id.Email) && !d.policy.IsReserved(email) {
		return apperror.New(apperror.Validation, "the admin email cannot be changed")
	}

	var profile *model.ProviderProfile
	if id.Role == model.RoleProvider {
		city, profession := strings.TrimSpace(in.City), strings.TrimSpace(in.Profession)
		if city == "" || profession == "" {
			return apperror.New(apperror.Validation, "providers must select city and profession")
		}
		profile = &model.ProviderProfile{
			UserID:     id.ID,
			Phone:      optional(in.Phone),
			City:       city,
			Profession: profession,
			Bio:        optional(in.Bio),
		}
		name, err := d.saveImage(in.Image)
		if err != nil {
			return err
		}
		profile.Image = name
	}

	var oldImage *string
	err := database.RunInTransaction(ctx, d.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := d.users.UpdateTx(ctx, tx, id.ID, fullName, email); err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		var err error
		if oldImage, err = d.profiles.GetImageTx(ctx, tx, id.ID); err != nil {
			return err
		}
		return d.profiles.UpdateTx(ctx, tx, profile)
	})
	if err != nil {
		if profile != nil {
			d.releaseImage(profile.Image)
		}
		if errors.Is(err, repository.ErrEmailExists) {
			return apperror.Wrap(apperror.Conflict, "email already exists", err)
		}
		return apperror.StorageFailure(err)
	}

	if profile != nil && profile.Image != nil && oldImage != nil && *oldImage != *profile.Image {
		d.releaseImage(oldImage)
	}
	if profile != nil {
		invalidate(ctx, d.cache, d.log, "provider updated")
	}
	return nil
}

// ProviderHit is a search result with its image inlined as base64.
type ProviderHit struct {
	repository.ProviderSearchRow
	ImageData *string `json:"image"`
}

// SearchProviders lists providers by optional city and profession.
func (d *Directory) SearchProviders(ctx context.Context, city, profession string) ([]ProviderHit, error) {
	rows, err := d.profiles.Search(ctx, strings.TrimSpace(city), strings.TrimSpace(profession))
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	out := make([]ProviderHit, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProviderHit{ProviderSearchRow: r, ImageData: d.imageData(r.Image)})
	}
	return out, nil
}

// AdminUser is a dashboard row with its image inlined as base64.
type AdminUser struct {
	repository.AdminUserRow
	ImageData *string `json:"image"`
}

// ListUsers returns every account for the admin dashboard.
func (d *Directory) ListUsers(ctx context.Context, id identity.Identity) ([]AdminUser, error) {
	if err := d.policy.Authorize(id, policy.OpAdminListUsers, policy.Owners{}).Err(); err != nil {
		return nil, err
	}
	rows, err := d.users.ListWithProfiles(ctx)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	out := make([]AdminUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, AdminUser{AdminUserRow: r, ImageData: d.imageData(r.Image)})
	}
	return out, nil
}

// Lookup names a reference list.
type Lookup string

const (
	LookupCities              Lookup = "cities"
	LookupProfessions         Lookup = "professions"
	LookupProviderCities      Lookup = "provider_cities"
	LookupProviderProfessions Lookup = "provider_professions"
)

// Dropdown returns the named reference list.
func (d *Directory) Dropdown(ctx context.Context, which Lookup) ([]string, error) {
	var (
		out []string
		err error
	)
	switch which {
	case LookupCities:
		out, err = d.lookups.Cities(ctx)
	case LookupProfessions:
		out, err = d.lookups.Professions(ctx)
	case LookupProviderCities:
		out, err = d.lookups.ProviderCities(ctx)
	case LookupProviderProfessions:
		out, err = d.lookups.ProviderProfessions(ctx)
	default:
		return nil, apperror.New(apperror.NotFound, "unknown list")
	}
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return out, nil
}

func (d *Directory) saveImage(u *Upload) (*string, error) {
	if u == nil || u.Body == nil || d.images == nil {
		return nil, nil
	}
	name, err := d.images.Save(u.Name, u.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.Storage, "could not store image", err)
	}
	return &name, nil
}

func (d *Directory) releaseImage(name *string) {
	if name == nil || *name == "" || d.images == nil {
		return
	}
	if err := d.images.Release(*name); err != nil {
		d.log.Warn("image release failed", "image", *name, "error", err)
	}
}

func (d *Directory) imageData(name *string) *string {
	if name == nil || *name == "" || d.images == nil {
		return nil
	}
	enc, err := d.images.Base64(*name)
	if err != nil {
		d.log.Warn("image read failed", "image", *name, "error", err)
		return nil
	}
	if enc == "" {
		return nil
	}
	return &enc
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
