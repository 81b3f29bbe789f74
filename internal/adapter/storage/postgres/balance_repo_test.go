package postgres

import (
	"context"
	"errors"
	"testing"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceRepo_SaveBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	rows := []ports.BalanceRow{
		{AgentID: 10, Currency: "USD", Balance: 500, Tick: 3},
		{AgentID: 10, Currency: "EUR", Balance: 7, Tick: 3},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM agent_balances").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("INSERT INTO agent_balances").
		WithArgs(int64(10), "USD", int64(500), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO agent_balances").
		WithArgs(int64(10), "EUR", int64(7), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.SaveBalances(context.Background(), tx, rows)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_SaveBalances_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM agent_balances").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO agent_balances").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.SaveBalances(context.Background(), tx, []ports.BalanceRow{
		{AgentID: 1, Currency: "USD", Balance: 1, Tick: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_LoadBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)

	mock.ExpectQuery("SELECT agent_id, currency, balance FROM agent_balances").
		WillReturnRows(pgxmock.NewRows([]string{"agent_id", "currency", "balance"}).
			AddRow(int64(10), "EUR", int64(5)).
			AddRow(int64(10), "USD", int64(777)).
			AddRow(int64(11), "USD", int64(3)))

	result, err := repo.LoadBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.AgentID]map[domain.Currency]domain.Money{
		10: {"EUR": 5, "USD": 777},
		11: {"USD": 3},
	}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_LoadBalances_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	mock.ExpectQuery("SELECT .+ FROM agent_balances").
		WillReturnError(errors.New("connection refused"))

	result, err := repo.LoadBalances(context.Background())
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
