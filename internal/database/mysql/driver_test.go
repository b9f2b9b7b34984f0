package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	got, err := normalizeDSN("root:root@tcp(127.0.0.1:3306)/shop?multiStatements=true")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(got)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.False(t, cfg.MultiStatements)
	assert.Equal(t, "shop", cfg.DBName)

	_, err = normalizeDSN("not a dsn")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"duplicate", &mysql.MySQLError{Number: 1062, Message: "dup"}, errs.ErrKindConflict},
		{"fk parent", &mysql.MySQLError{Number: 1451}, errs.ErrKindConflict},
		{"fk child", &mysql.MySQLError{Number: 1452}, errs.ErrKindConflict},
		{"access denied", &mysql.MySQLError{Number: 1045}, errs.ErrKindPermissionDenied},
		{"unknown db", &mysql.MySQLError{Number: 1049}, errs.ErrKindConnectionFailed},
		{"bad field", &mysql.MySQLError{Number: 1054}, errs.ErrKindQueryFailed},
		{"interrupted", &mysql.MySQLError{Number: 3024}, errs.ErrKindTimeout},
		{"invalid conn", mysql.ErrInvalidConn, errs.ErrKindConnectionFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"other", errors.New("boom"), errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.err, "op").Kind)
		})
	}
	assert.Nil(t, mapError(nil, "op"))
}
