package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pdsinstall/pkg/model"
)

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "journal.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, j.RunID())
	require.NoError(t, j.Record(ctx, "validate", model.StepSuccess, ""))
	require.NoError(t, j.Record(ctx, "launch", model.StepFailed, "docker compose up failed"))
	first := j.RunID()
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)
	defer j.Close()
	require.NotEqual(t, first, j.RunID())
	require.NoError(t, j.Record(ctx, "validate", model.StepFailed, "already configured"))

	recs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, j.RunID(), recs[0].RunID)
	require.Equal(t, "validate", recs[0].Name)
	require.Equal(t, "launch", recs[1].Name)
	require.Equal(t, "docker compose up failed", recs[1].Detail)
	require.Equal(t, first, recs[2].RunID)

	recs, err = j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, "validate", model.StepSuccess, ""))
	recs, err := j.Recent(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, recs)
	require.Empty(t, j.RunID())
	require.NoError(t, j.Close())
}
