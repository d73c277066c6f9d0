package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL(`UPDATE invites SET status = ?`))
	assert.Equal(t, "SELECT", operationFromSQL(`WITH x AS (SELECT 1) SELECT * FROM x`))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "invites", tableFromSQL(`UPDATE invites SET status = ? WHERE id = ?`))
	assert.Equal(t, "invite_events", tableFromSQL(`INSERT INTO "invite_events" (id) VALUES (?)`))
	assert.Equal(t, "activation_tokens", tableFromSQL(`SELECT * FROM activation_tokens WHERE invite_id = ?`))
	assert.Equal(t, "", tableFromSQL(`VACUUM`))
}

func TestParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 WHERE token_hash = ?", "secret-hash")
	assert.Equal(t, "SELECT 1 WHERE token_hash = ?", sql)
	assert.Nil(t, params)
}
