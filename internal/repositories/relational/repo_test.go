package relational

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.RelationalModels()...))
	return db
}

func TestFactRepoAccumulatesDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewFactRepo(newTestDB(t))

	require.NoError(t, repo.Insert(ctx, &models.UserFact{Key: "name", Value: "John"}))
	require.NoError(t, repo.Insert(ctx, &models.UserFact{Key: "name", Value: "John"}))

	facts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.NotEqual(t, facts[0].ID, facts[1].ID)
}

func TestFactRepoDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewFactRepo(newTestDB(t))

	f := &models.UserFact{Key: "interest", Value: "football"}
	require.NoError(t, repo.Insert(ctx, f))
	require.NotZero(t, f.ID)

	require.NoError(t, repo.DeleteByID(ctx, f.ID))
	assert.ErrorIs(t, repo.DeleteByID(ctx, f.ID), utils.ErrNotFound)

	facts, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestTopicRepoListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTopicRepo(newTestDB(t))

	sports := &models.ConversationTopic{Topic: "sports", Keywords: "football"}
	music := &models.ConversationTopic{Topic: "music", Keywords: "jazz, piano"}
	require.NoError(t, repo.Insert(ctx, sports))
	require.NoError(t, repo.Insert(ctx, music))

	require.NoError(t, repo.DeleteByID(ctx, sports.ID))

	topics, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "music", topics[0].Topic)
	assert.ErrorIs(t, repo.DeleteByID(ctx, 999), utils.ErrNotFound)
}

func TestConversationRepoRecentIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepo(newTestDB(t))

	require.NoError(t, repo.Insert(ctx, &models.Conversation{Title: "Old Chat", Timestamp: 1000, DurationInMinutes: 3}))
	require.NoError(t, repo.Insert(ctx, &models.Conversation{Title: "New Chat", Timestamp: 3000, DurationInMinutes: 1}))
	require.NoError(t, repo.Insert(ctx, &models.Conversation{Title: "Mid Chat", Timestamp: 2000, DurationInMinutes: 2}))

	rows, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "New Chat", rows[0].Title)
	assert.Equal(t, "Mid Chat", rows[1].Title)
}
