// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)

	out := map[string]Store{}
	for _, backend := range []string{"memory", "file", "sqlite", "badger", "redis"} {
		s, err := Open(Config{Backend: backend, Path: t.TempDir(), RedisAddr: mr.Addr()}, zerolog.Nop())
		require.NoError(t, err, backend)
		t.Cleanup(func() { _ = s.Close() })
		out[backend] = s
	}
	return out
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "resume", []byte(`{"trackId":"a"}`)))
			got, err := s.Get(ctx, "resume")
			require.NoError(t, err)
			assert.JSONEq(t, `{"trackId":"a"}`, string(got))

			require.NoError(t, s.Put(ctx, "resume", []byte(`{"trackId":"b"}`)))
			got, err = s.Get(ctx, "resume")
			require.NoError(t, err)
			assert.JSONEq(t, `{"trackId":"b"}`, string(got))

			require.NoError(t, s.Delete(ctx, "resume"))
			_, err = s.Get(ctx, "resume")
			require.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete(ctx, "resume"), "deleting a missing key is not an error")
		})
	}
}

func TestDurableBackendsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{"file", "sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			s, err := Open(Config{Backend: backend, Path: dir}, zerolog.Nop())
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, "volume", []byte("0.5")))
			require.NoError(t, s.Close())

			s, err = Open(Config{Backend: backend, Path: dir}, zerolog.Nop())
			require.NoError(t, err)
			defer func() { _ = s.Close() }()
			got, err := s.Get(ctx, "volume")
			require.NoError(t, err)
			assert.Equal(t, "0.5", string(got))
		})
	}
}

func TestRedisPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedisStore(RedisConfig{Addr: mr.Addr(), Prefix: "kiosk1:"}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Put(context.Background(), "muted", []byte("true")))
	v, err := mr.Get("kiosk1:muted")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(Config{Backend: "sqlite"}, zerolog.Nop())
	require.Error(t, err)
	_, err = Open(Config{Backend: "bolt", Path: t.TempDir()}, zerolog.Nop())
	require.Error(t, err)
	_, err = Open(Config{Backend: "redis"}, zerolog.Nop())
	require.Error(t, err)
}
