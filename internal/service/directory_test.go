package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
	"github.com/iliyamo/maallem-marketplace/internal/model"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
)

const testSecret = "test-secret"

type dirFixture struct {
	dir    *Directory
	mock   sqlmock.Sqlmock
	images *memImages
}

func newDirectory(t *testing.T) dirFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	images := newMemImages()
	d := NewDirectory(db, images, policy.New("admin@maallem.com"), TokenConfig{Secret: testSecret, TTLMin: 15}, quietLogger())
	return dirFixture{dir: d, mock: mock, images: images}
}

var userCols = []string{"id", "full_name", "email", "password", "role", "created_at"}

func TestSignupProviderWithImage(t *testing.T) {
	f := newDirectory(t)

	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (full_name, email, password, role, created_at)")).
		WithArgs("Pat Plumber", "pat@example.com", "pw", model.RoleProvider, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO provider_profiles")).
		WithArgs(uint64(7), "0300", "Beirut", "Plumber", nil, "stored_pat.png").
		WillReturnResult(sqlmock.NewResult(3, 1))
	f.mock.ExpectCommit()

	res, err := f.dir.Signup(context.Background(), SignupInput{
		FullName: " Pat Plumber ", Email: "PAT@example.com ", Password: "pw", Role: "provider",
		Phone: "0300", City: "Beirut", Profession: "Plumber",
		Image: &Upload{Name: "pat.png", Body: strings.NewReader("img")},
	})
	require.NoError(t, err)
	assert.Equal(t, SignupResult{UserID: 7, Role: model.RoleProvider}, res)
	assert.Contains(t, f.images.saved, "stored_pat.png")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignupDuplicateEmailReleasesImage(t *testing.T) {
	f := newDirectory(t)

	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	f.mock.ExpectRollback()

	_, err := f.dir.Signup(context.Background(), SignupInput{
		FullName: "Pat", Email: "pat@example.com", Password: "pw", Role: "provider",
		City: "Beirut", Profession: "Plumber",
		Image: &Upload{Name: "pat.png", Body: strings.NewReader("img")},
	})
	assert.True(t, apperror.Is(err, apperror.Conflict))
	assert.Equal(t, []string{"stored_pat.png"}, f.images.released)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignupValidation(t *testing.T) {
	f := newDirectory(t)

	tests := []struct {
		name string
		in   SignupInput
	}{
		{"missing fields", SignupInput{Email: "a@b.c", Password: "pw", Role: "user"}},
		{"admin role", SignupInput{FullName: "A", Email: "a@b.c", Password: "pw", Role: "admin"}},
		{"unknown role", SignupInput{FullName: "A", Email: "a@b.c", Password: "pw", Role: "owner"}},
		{"reserved email", SignupInput{FullName: "A", Email: "ADMIN@maallem.com", Password: "pw", Role: "user"}},
		{"provider without city", SignupInput{FullName: "A", Email: "a@b.c", Password: "pw", Role: "provider", Profession: "Plumber"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dir.Signup(context.Background(), tt.in)
			assert.True(t, apperror.Is(err, apperror.Validation), "got %v", err)
		})
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginDerivesAdminFromReservedEmail(t *testing.T) {
	f := newDirectory(t)

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("admin@maallem.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Admin", "admin@maallem.com", "pw", "user", time.Now()))

	res, err := f.dir.Login(context.Background(), " Admin@Maallem.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.User.Role)
	assert.NotEmpty(t, res.AccessToken)

	creds, err := identity.FromBearer(testSecret, res.AccessToken)
	require.NoError(t, err)
	id, err := identity.Resolve(creds)
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{ID: 1, Role: model.RoleAdmin, Email: "admin@maallem.com"}, id)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newDirectory(t)

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "Alice", "alice@example.com", "right", "user", time.Now()))
	_, err := f.dir.Login(context.Background(), "alice@example.com", "wrong")
	assert.True(t, apperror.Is(err, apperror.Unauthenticated))

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WillReturnRows(sqlmock.NewRows(userCols))
	_, err = f.dir.Login(context.Background(), "ghost@example.com", "pw")
	assert.True(t, apperror.Is(err, apperror.Unauthenticated))

	_, err = f.dir.Login(context.Background(), "", "pw")
	assert.True(t, apperror.Is(err, apperror.Validation))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAccountIncludesProviderProfile(t *testing.T) {
	f := newDirectory(t)
	f.images.saved["pat.png"] = "aW1n"

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(10, "Pat", "pat@example.com", "pw", "provider", time.Now()))
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM provider_profiles WHERE user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "phone", "city", "profession", "bio", "image"}).
			AddRow(3, 10, nil, "Beirut", "Plumber", "20 years", "pat.png"))

	view, err := f.dir.Account(context.Background(), identity.Identity{ID: 10, Role: model.RoleProvider})
	require.NoError(t, err)
	assert.Equal(t, "Pat", view.User.FullName)
	require.NotNil(t, view.ProviderProfile)
	assert.Equal(t, "Beirut", view.ProviderProfile.City)
	require.NotNil(t, view.ProviderProfile.Image)
	assert.Equal(t, "aW1n", *view.ProviderProfile.Image)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateAccountReplacesImageAfterCommit(t *testing.T) {
	f := newDirectory(t)
	f.images.saved["old.png"] = "b2xk"

	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET full_name=?, email=? WHERE id=?")).
		WithArgs("Pat P", "pat@example.com", uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT image FROM provider_profiles WHERE user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"image"}).AddRow("old.png"))
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE provider_profiles SET phone=?, city=?, profession=?, bio=?, image=? WHERE user_id=?")).
		WithArgs(nil, "Tripoli", "Plumber", nil, "stored_new.png", uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	var committed error
	f.images.onRelease = func(string) { committed = f.mock.ExpectationsWereMet() }

	err := f.dir.UpdateAccount(context.Background(), identity.Identity{ID: 10, Role: model.RoleProvider, Email: "pat@example.com"}, UpdateInput{
		FullName: "Pat P", Email: "pat@example.com", City: "Tripoli", Profession: "Plumber",
		Image: &Upload{Name: "new.png", Body: strings.NewReader("new")},
	})
	require.NoError(t, err)
	assert.NoError(t, committed)
	assert.Equal(t, []string{"old.png"}, f.images.released)
}

func TestUpdateAccountRejectsReservedEmail(t *testing.T) {
	f := newDirectory(t)

	err := f.dir.UpdateAccount(context.Background(), identity.Identity{ID: 2, Role: model.RoleUser, Email: "alice@example.com"}, UpdateInput{
		FullName: "Alice", Email: "admin@maallem.com",
	})
	assert.True(t, apperror.Is(err, apperror.Validation))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateAccountKeepsAdminEmail(t *testing.T) {
	f := newDirectory(t)

	admin := identity.Identity{ID: 1, Role: model.RoleAdmin, Email: "admin@maallem.com"}
	err := f.dir.UpdateAccount(context.Background(), admin, UpdateInput{FullName: "Admin", Email: "boss@example.com"})
	assert.True(t, apperror.Is(err, apperror.Validation))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDirectoryChangesInvalidateCache(t *testing.T) {
	f := newDirectory(t)
	cache := &countingInvalidator{}
	f.dir.SetCacheInvalidator(cache)
	insertUser := regexp.QuoteMeta("INSERT INTO users (full_name, email, password, role, created_at)")

	// plain users never show up in search or dropdowns
	f.mock.ExpectBegin()
	f.mock.ExpectExec(insertUser).WillReturnResult(sqlmock.NewResult(2, 1))
	f.mock.ExpectCommit()
	_, err := f.dir.Signup(context.Background(), SignupInput{FullName: "Alice", Email: "alice@example.com", Password: "pw", Role: "user"})
	require.NoError(t, err)
	assert.Zero(t, cache.count())

	f.mock.ExpectBegin()
	f.mock.ExpectExec(insertUser).WillReturnResult(sqlmock.NewResult(7, 1))
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO provider_profiles")).WillReturnResult(sqlmock.NewResult(3, 1))
	f.mock.ExpectCommit()
	_, err = f.dir.Signup(context.Background(), SignupInput{
		FullName: "Pat", Email: "pat@example.com", Password: "pw", Role: "provider",
		City: "Beirut", Profession: "Plumber",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.count())

	// a failed signup leaves the cache alone
	f.mock.ExpectBegin()
	f.mock.ExpectExec(insertUser).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	f.mock.ExpectRollback()
	_, err = f.dir.Signup(context.Background(), SignupInput{
		FullName: "Pat", Email: "pat@example.com", Password: "pw", Role: "provider",
		City: "Beirut", Profession: "Plumber",
	})
	assert.True(t, apperror.Is(err, apperror.Conflict))
	assert.Equal(t, 1, cache.count())

	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET full_name=?, email=? WHERE id=?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT image FROM provider_profiles WHERE user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"image"}))
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE provider_profiles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	err = f.dir.UpdateAccount(context.Background(), identity.Identity{ID: 7, Role: model.RoleProvider, Email: "pat@example.com"}, UpdateInput{
		FullName: "Pat", Email: "pat@example.com", City: "Tripoli", Profession: "Plumber",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.count())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnsureAdmin(t *testing.T) {
	byEmail := regexp.QuoteMeta("FROM users WHERE email=?")
	insert := regexp.QuoteMeta("INSERT INTO users (full_name, email, password, role, created_at)")

	t.Run("creates missing account", func(t *testing.T) {
		f := newDirectory(t)
		f.mock.ExpectQuery(byEmail).WithArgs("admin@maallem.com").WillReturnRows(sqlmock.NewRows(userCols))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(insert).
			WithArgs("Admin", "admin@maallem.com", "s3cret", model.RoleAdmin, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		f.mock.ExpectCommit()

		created, err := f.dir.EnsureAdmin(context.Background(), "", " s3cret ")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("existing account is left alone", func(t *testing.T) {
		f := newDirectory(t)
		f.mock.ExpectQuery(byEmail).WithArgs("admin@maallem.com").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Admin", "admin@maallem.com", "old", "admin", time.Now()))

		created, err := f.dir.EnsureAdmin(context.Background(), "Admin", "new")
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("concurrent seed", func(t *testing.T) {
		f := newDirectory(t)
		f.mock.ExpectQuery(byEmail).WillReturnRows(sqlmock.NewRows(userCols))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(insert).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
		f.mock.ExpectRollback()

		created, err := f.dir.EnsureAdmin(context.Background(), "Admin", "pw")
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("password required", func(t *testing.T) {
		f := newDirectory(t)
		_, err := f.dir.EnsureAdmin(context.Background(), "Admin", "  ")
		assert.True(t, apperror.Is(err, apperror.Validation))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

// The seeded admin logs in with its stored role.
func TestLoginSeededAdmin(t *testing.T) {
	f := newDirectory(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("admin@maallem.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Admin", "admin@maallem.com", "pw", "admin", time.Now()))

	res, err := f.dir.Login(context.Background(), "admin@maallem.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.User.Role)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	f := newDirectory(t)

	_, err := f.dir.ListUsers(context.Background(), identity.Identity{ID: 2, Role: model.RoleUser})
	assert.True(t, apperror.Is(err, apperror.RoleMismatch))

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM users u")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "role", "phone", "city", "profession", "bio", "image"}).
			AddRow(10, "Pat", "pat@example.com", "provider", nil, "Beirut", "Plumber", nil, "gone.png").
			AddRow(2, "Alice", "alice@example.com", "user", nil, nil, nil, nil, nil))

	rows, err := f.dir.ListUsers(context.Background(), identity.Identity{ID: 1, Role: model.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].ImageData, "missing image file reads as null")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGatewayProviderProfileMissing(t *testing.T) {
	f := newDirectory(t)

	f.mock.ExpectQuery(regexp.QuoteMeta("FROM provider_profiles WHERE user_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "phone", "city", "profession", "bio", "image"}))
	p, err := f.dir.GetProviderProfile(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = f.dir.Dropdown(context.Background(), Lookup("nope"))
	assert.True(t, apperror.Is(err, apperror.NotFound))
}
