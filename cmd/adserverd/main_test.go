package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"adserver/observability/metrics"
	"adserver/storage"
)

func TestEnsureInstantiatedKeepsExistingRegistry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := storage.NewMemDB()
	engine := newEngine(db, metrics.NewAdServer(prometheus.NewRegistry()), logger)

	require.NoError(t, ensureInstantiated(engine, logger))
	_, err := engine.AddAd("a", "img", "tgt", "reward")
	require.NoError(t, err)

	require.NoError(t, ensureInstantiated(engine, logger))
	ads, err := engine.Ads()
	require.NoError(t, err)
	require.Len(t, ads.Ads, 1)
}

func TestEnsureInstantiatedLeavesCorruptBlob(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("state"), []byte{0xff}))
	engine := newEngine(db, nil, logger)

	require.NoError(t, ensureInstantiated(engine, logger))
	raw, err := db.Get([]byte("state"))
	require.NoError(t, err)
	require.Equal(t, []byte{0xff}, raw)
}
