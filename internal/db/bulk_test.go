package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIgnoreTx_EmptyRowsIsNoop(t *testing.T) {
	// No tx interaction happens for an empty batch.
	n, err := InsertIgnoreTx(context.Background(), nil, "messages", []string{"id"}, []string{"id"}, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertIgnoreTx_RequiresColumnsAndKeys(t *testing.T) {
	rows := [][]any{{"x"}}

	_, err := InsertIgnoreTx(context.Background(), nil, "messages", nil, []string{"id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")

	_, err = InsertIgnoreTx(context.Background(), nil, "messages", []string{"id"}, nil, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys")
}

func TestInsertIgnoreTx_StagesThroughTempTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "content"}
	rows := [][]any{{"m1", "hi"}, {"m2", "hello"}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_messages"}, cols).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	n, err := InsertIgnoreTx(context.Background(), tx, "messages", cols, []string{"id"}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "conflicting rows are skipped, not counted")

	require.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
