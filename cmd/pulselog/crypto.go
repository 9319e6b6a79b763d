// ABOUTME: End-to-end encryption setup for the pulselog Matrix bot
// ABOUTME: Wraps mautrix cryptohelper with a per-account SQLite key store

package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"

	"github.com/2389/pulselog/internal/report"
)

// e2ee owns the crypto helper attached to the Matrix client.
type e2ee struct {
	helper *cryptohelper.CryptoHelper
	logger *slog.Logger
}

// setupCrypto enables encryption for client. Keys live in dataDir, one
// database per bot account. A database left behind by a previous device
// is discarded, since its keys can never decrypt for the new device. The
// recovery key verifies the device for cross-signing.
func setupCrypto(ctx context.Context, client *mautrix.Client, recoveryKey, dataDir string, logger *slog.Logger) (*e2ee, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	userID := client.UserID.String()
	dbPath := filepath.Join(dataDir, fmt.Sprintf("crypto-%s.db", report.Slugify(userID)))
	logger = logger.With("component", "crypto")
	logger.Info("setting up encryption", "db", dbPath)

	stale, err := staleDevice(dbPath, client.DeviceID.String())
	if err != nil {
		logger.Debug("could not check device ID", "error", err)
	} else if stale {
		logger.Warn("crypto database belongs to another device, resetting")
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("removing old crypto database: %w", err)
			}
		}
	}

	helper, err := cryptohelper.NewCryptoHelper(client, pickleKey(userID), dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}
	client.Crypto = helper

	e := &e2ee{helper: helper, logger: logger}

	machine := helper.Machine()
	if machine == nil {
		logger.Warn("crypto machine not initialized, skipping cross-signing")
		return e, nil
	}
	if err := machine.VerifyWithRecoveryKey(ctx, recoveryKey); err != nil {
		// Encryption still works, other devices just see us as unverified.
		logger.Warn("failed to verify with recovery key", "error", err)
	} else {
		logger.Info("encryption initialized with cross-signing verification")
	}
	return e, nil
}

// Close releases the crypto store.
func (e *e2ee) Close() error {
	if e == nil || e.helper == nil {
		return nil
	}
	return e.helper.Close()
}

// pickleKey derives the key encrypting the local crypto store.
func pickleKey(userID string) []byte {
	h := sha256.Sum256([]byte("pulselog-crypto:" + userID))
	return h[:]
}

// staleDevice reports whether the crypto database at dbPath was written
// for a device other than deviceID. A missing database is not stale.
func staleDevice(dbPath, deviceID string) (bool, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return false, nil
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRow("SELECT device_id FROM crypto_account LIMIT 1").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != deviceID, nil
}
