package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDSN(t *testing.T) {
	dsn := Options{User: "root", Password: "s3cret", Host: "db", Port: "3306", Name: "maallem"}.DSN()

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "s3cret", cfg.Passwd)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "maallem", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "UTC", cfg.Loc.String())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
	assert.Equal(t, "00002_admin_role.sql", entries[1].Name())

	// the reserved admin account needs its own role value
	up, err := migrations.ReadFile("migrations/00002_admin_role.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "ENUM('user','provider','admin')")
}
