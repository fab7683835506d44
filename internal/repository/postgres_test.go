package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, v := range []string{"1.333", "7499.995", "0.125", "123456789012345678.6789", "0"} {
		t.Run(v, func(t *testing.T) {
			d := decimal.RequireFromString(v)

			var n pgtype.Numeric
			require.NoError(t, n.Scan(numericArg(&d)))

			got := fromNumeric(n)
			require.NotNil(t, got)
			assert.True(t, got.Equal(d), "got %s, want %s", got, d)
		})
	}

	assert.Nil(t, numericArg(nil))
	assert.Nil(t, fromNumeric(pgtype.Numeric{}))
}

func TestMigrationsKeepDecimalScale(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/00001_init.sql")
	require.NoError(t, err)

	// Масштаб сумм и часов не ограничивается.
	assert.NotRegexp(t, `(?i)numeric\s*\(`, string(sql))
	assert.Contains(t, string(sql), "duration_hours      NUMERIC NOT NULL")
}
