// Package sqlite stores undelivered relay messages in a SQLite database.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/protonlink/webauth/server/db"
	"github.com/protonlink/webauth/server/db/sqlite/migration"
	_ "modernc.org/sqlite"
)

// DbName is the file name of the database inside the data directory.
const DbName = "webauth_relay.db"

var _ db.DB = &DB{}

// DB is the SQLite message store.
type DB struct {
	db *sql.DB
}

// NewDB opens or creates the database in path and brings its schema up to
// date.
func NewDB(path string) (*DB, error) {
	fp := filepath.Join(path, DbName)
	log.Debug("Opening SQLite db", "path", fp)
	sdb, err := sql.Open("sqlite", fp)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	sdb.SetMaxOpenConns(1)
	d := &DB{db: sdb}
	if err := d.CreateDB(); err != nil {
		_ = sdb.Close()
		return nil, err
	}
	return d, nil
}

// CreateDB runs the migrations that haven't been applied yet.
func (me *DB) CreateDB() error {
	if err := migration.Validate(); err != nil {
		return err
	}
	return me.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateVersionTable); err != nil {
			return err
		}
		current, err := me.selectVersion(tx)
		if err != nil {
			return err
		}
		for _, m := range migration.Migrations {
			if m.Version <= current {
				continue
			}
			log.Info("applying migration", "version", m.Version, "name", m.Name)
			if _, err := tx.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d %q: %w", m.Version, m.Name, err)
			}
			if _, err := tx.Exec(sqlInsertVersion, m.Version, m.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Version returns the applied migration with the highest version.
func (me *DB) Version() (migration.Version, error) {
	var v migration.Version
	r := me.db.QueryRow(sqlSelectLatestVersion)
	err := r.Scan(&v.Version, &v.Name)
	return v, err
}

// PutMessage stores body for channel until expiresAt.
func (me *DB) PutMessage(channel string, body []byte, expiresAt time.Time) error {
	_, err := me.db.Exec(sqlInsertMessage, uuid.New().String(), channel, body, expiresAt.UnixNano())
	return err
}

// TakeMessage removes and returns the oldest unexpired message of channel.
func (me *DB) TakeMessage(channel string, now time.Time) ([]byte, error) {
	var body []byte
	err := me.wrapTransaction(func(tx *sql.Tx) error {
		var id int64
		r := tx.QueryRow(sqlSelectMessage, channel, now.UnixNano())
		if err := r.Scan(&id, &body); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNoMessage
			}
			return err
		}
		_, err := tx.Exec(sqlDeleteMessage, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// ExpireMessages deletes messages that expired before now.
func (me *DB) ExpireMessages(now time.Time) (int64, error) {
	res, err := me.db.Exec(sqlDeleteExpiredMessages, now.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MessageCount returns the number of stored messages.
func (me *DB) MessageCount() (int, error) {
	var c int
	r := me.db.QueryRow(sqlCountMessages)
	if err := r.Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (me *DB) selectVersion(tx *sql.Tx) (int, error) {
	var v sql.NullInt64
	if err := tx.QueryRow(sqlSelectMaxVersion).Scan(&v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func (me *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	tx, err := me.db.Begin()
	if err != nil {
		log.Error("Transaction error", "err", err)
		return err
	}
	err = f(tx)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			log.Error("Rollback error", "err", rerr)
		}
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (me *DB) Close() error {
	return me.db.Close()
}
