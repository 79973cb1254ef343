package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tutorslot/internal/config"
	"tutorslot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")
	logger := zerolog.Nop()

	db, err := NewDB(config.DatabaseConfig{Path: filepath.Join(tempDir, "source.db")}, &logger)
	require.NoError(t, err)
	defer db.Close()
	seedParty(t, db, "T1", models.PartyTeacher, "Teacher")

	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)

		restored, err := NewDB(config.DatabaseConfig{Path: path}, &logger)
		require.NoError(t, err)
		defer restored.Close()

		p, err := restored.GetParty(context.Background(), "T1")
		require.NoError(t, err)
		assert.Equal(t, "Teacher", p.Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "backup_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		s.CleanupOldBackups()

		_, err := os.Stat(oldFile)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestBackupServiceInMemory(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: t.TempDir()}, &logger)

	_, err := s.PerformBackup(context.Background())
	assert.Error(t, err)
}

func TestBackupServiceDisabled(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	s := NewBackupService(db, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
