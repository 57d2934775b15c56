package obs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLOperation(t *testing.T) {
	require.Equal(t, "INSERT", sqlOperation("  insert into leads (id) values ($1)"))
	require.Equal(t, "QUERY", sqlOperation("   "))
}

func TestTruncateSQL(t *testing.T) {
	long := "SELECT " + strings.Repeat("x", maxStatementLen)
	require.Len(t, truncateSQL(long), maxStatementLen+3)
	require.Equal(t, "SELECT 1", truncateSQL(" SELECT 1 "))
}
