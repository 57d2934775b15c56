package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alexedwards/argon2id"
	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/config"
	"github.com/noah-isme/glassworks/internal/lead"
)

func TestBuildWithoutDatabase(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{
		RedisURL:        "redis://" + mr.Addr() + "/0",
		DataFile:        filepath.Join(t.TempDir(), "catalog.json"),
		LeadsMaxEntries: 10,
	}
	deps, err := Build(context.Background(), cfg, zerolog.Nop(), Options{})
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	require.Nil(t, deps.DB)
	require.IsType(t, &lead.RedisStore{}, deps.Leads)
	require.NotNil(t, deps.Tasks)
	require.NotNil(t, deps.Meter)

	doc, err := deps.Store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, doc.Products)
}

func TestBuildFailsWithoutRedis(t *testing.T) {
	_, err := Build(context.Background(), &config.Config{RedisURL: "://bad"}, zerolog.Nop(), Options{})
	require.Error(t, err)
	_, err = Build(context.Background(), nil, zerolog.Nop(), Options{})
	require.Error(t, err)
}

func TestRedisConnOpt(t *testing.T) {
	opt := RedisConnOpt(&redis.Options{Addr: "cache:6379", Password: "pw", DB: 2})
	require.Equal(t, "cache:6379", opt.Addr)
	require.Equal(t, "pw", opt.Password)
	require.Equal(t, 2, opt.DB)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	ok, err := argon2id.ComparePasswordAndHash("correct horse", hash)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = HashPassword("")
	require.Error(t, err)
}
