package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"concurso-study-service/internal/app"
	"concurso-study-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestSlotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "data", "study.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "user_performance")
	require.ErrorIs(t, err, domain.ErrSlotNotFound)

	require.NoError(t, store.Put(ctx, "user_performance", []byte(`{"xp":5}`)))
	require.NoError(t, store.Put(ctx, "user_performance", []byte(`{"xp":30}`)))

	got, err := store.Get(ctx, "user_performance")
	require.NoError(t, err)
	require.JSONEq(t, `{"xp":30}`, string(got))
	require.NoError(t, store.Ping(ctx))
}

func TestSlotStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "study.db")

	store, err := Open(path)
	require.NoError(t, err)
	tracker := app.LoadPerformance(ctx, store, "", nil)
	tracker.QuestionAnswered(ctx, true, "Contabilidade Geral")
	tracker.QuestionAnswered(ctx, false, "Contabilidade Geral")
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got := app.LoadPerformance(ctx, reopened, "", nil).Snapshot()
	require.Equal(t, 2, got.TotalAnswered)
	require.Equal(t, 1, got.CorrectAnswers)
	require.Equal(t, 30, got.XP)
	require.Equal(t, domain.SubjectStat{Total: 2, Correct: 1}, got.SubjectStats["Contabilidade Geral"])
}
