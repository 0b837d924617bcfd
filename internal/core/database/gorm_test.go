package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	cases := []struct {
		name, in, user, pass, want string
	}{
		{"native passthrough", "u:p@tcp(db:3306)/doof?parseTime=true", "", "", "u:p@tcp(db:3306)/doof?parseTime=true"},
		{"url", "mysql://u:p@db:3306/doof", "", "", "u:p@tcp(db:3306)/doof?charset=utf8mb4&parseTime=true"},
		{"jdbc with overrides", "jdbc:mysql://db:3306/doof?useSSL=false&characterEncoding=utf8", "root", "secret",
			"root:secret@tcp(db:3306)/doof?charset=utf8&parseTime=true&tls=false"},
		{"empty", "  ", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeMySQLDSN(tc.in, tc.user, tc.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db:3306)/doof", maskDSN("root:secret@tcp(db:3306)/doof"))
	assert.Equal(t, "tcp(db)/doof", maskDSN("tcp(db)/doof"))
}

func TestNewGormSQLite(t *testing.T) {
	db, err := NewGorm(Opts{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, Ping(context.Background(), db))
	require.NoError(t, Close(db))
}

func TestNewGormUnsupported(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"})
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}
