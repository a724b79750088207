package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/pairlink/pairing-server/internal/database"
)

const sqliteFileName = "session.db"

// CredentialStore keeps the linked device identity. It lives either in postgres
// or in a sqlite file inside the auth directory.
type CredentialStore struct {
	databaseURL string
	authDir     string
	logger      waLog.Logger

	mu        sync.Mutex
	db        *database.DB
	container *sqlstore.Container
}

func OpenCredentialStore(ctx context.Context, databaseURL, authDir string, logger waLog.Logger) (*CredentialStore, error) {
	s := &CredentialStore{
		databaseURL: databaseURL,
		authDir:     authDir,
		logger:      logger,
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CredentialStore) open(ctx context.Context) error {
	db, err := database.Open(s.databaseURL, filepath.Join(s.authDir, sqliteFileName))
	if err != nil {
		return err
	}

	container := sqlstore.NewWithDB(db.DB.DB, db.Dialect(), s.logger)
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return fmt.Errorf("upgrade credential store: %w", err)
	}

	s.db = db
	s.container = container
	return nil
}

// Device returns the stored device, or a blank one when nothing is linked yet.
func (s *CredentialStore) Device(ctx context.Context) (*store.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	return device, nil
}

func (s *CredentialStore) HasCredentials(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return false, fmt.Errorf("list devices: %w", err)
	}
	return len(devices) > 0, nil
}

// Clear wipes every stored credential. The sqlite backend removes the whole auth
// directory and starts over with an empty file.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.IsSQLite() {
		devices, err := s.container.GetAllDevices(ctx)
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		for _, device := range devices {
			if err := device.Delete(ctx); err != nil {
				return fmt.Errorf("delete device: %w", err)
			}
		}
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close credential store: %w", err)
	}
	if err := os.RemoveAll(s.authDir); err != nil {
		return fmt.Errorf("remove auth dir: %w", err)
	}
	return s.open(ctx)
}

func (s *CredentialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
