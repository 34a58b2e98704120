package historysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/suPer8Hu/prompt-history/internal/client"
)

var ErrBackupFailed = errors.New("historysync: backup failed")

// Backup is the per-account local copy of the history. It is advisory only.
type Backup interface {
	// Load returns nil with no error when the account has no backup.
	Load(ctx context.Context, accountID uint64) ([]client.Message, error)
	Save(ctx context.Context, accountID uint64, msgs []client.Message) error
	Delete(ctx context.Context, accountID uint64) error
}

const backupPrefix = "ai_prompt_history_user_v1_"

// BackupKey names the backup for accountID.
func BackupKey(accountID uint64) string {
	return fmt.Sprintf("%s%d", backupPrefix, accountID)
}

// FileBackup keeps one JSON file per account under Dir.
type FileBackup struct {
	Dir string
}

func NewFileBackup(dir string) *FileBackup {
	return &FileBackup{Dir: dir}
}

func (b *FileBackup) path(accountID uint64) string {
	return filepath.Join(b.Dir, BackupKey(accountID)+".json")
}

func (b *FileBackup) Load(_ context.Context, accountID uint64) ([]client.Message, error) {
	data, err := os.ReadFile(b.path(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	var msgs []client.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrBackupFailed, BackupKey(accountID), err)
	}
	return msgs, nil
}

// Save replaces the file atomically so a crash never leaves a torn backup.
func (b *FileBackup) Save(_ context.Context, accountID uint64, msgs []client.Message) error {
	if msgs == nil {
		msgs = []client.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if err := os.MkdirAll(b.Dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	tmp, err := os.CreateTemp(b.Dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if err := os.Rename(tmpName, b.path(accountID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	return nil
}

func (b *FileBackup) Delete(_ context.Context, accountID uint64) error {
	if err := os.Remove(b.path(accountID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	return nil
}

// MemoryBackup is an in-process Backup.
type MemoryBackup struct {
	mu   sync.Mutex
	data map[uint64][]client.Message
}

func NewMemoryBackup() *MemoryBackup {
	return &MemoryBackup{data: make(map[uint64][]client.Message)}
}

func (b *MemoryBackup) Load(_ context.Context, accountID uint64) ([]client.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs, ok := b.data[accountID]
	if !ok {
		return nil, nil
	}
	return append([]client.Message(nil), msgs...), nil
}

func (b *MemoryBackup) Save(_ context.Context, accountID uint64, msgs []client.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[accountID] = append([]client.Message{}, msgs...)
	return nil
}

func (b *MemoryBackup) Delete(_ context.Context, accountID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, accountID)
	return nil
}
