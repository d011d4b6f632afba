package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store"
	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"

	_ "github.com/mattn/go-sqlite3"
)

const (
	CREATE_TABLE_STATEMENT = `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT,
		id         TEXT,
		sort_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		data       BLOB,
		version    INTEGER DEFAULT 1,
		created_on INTEGER,
		updated_on INTEGER,
		UNIQUE (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, sort_id);`

	DROP_TABLE_STATEMENT = `
	DROP TABLE records;`

	RECORD_SELECT_STATEMENT = `
	SELECT
		collection, id, data, version, created_on, updated_on, sort_id
	FROM
		records
	WHERE
		collection = ? AND id = ?`

	RECORD_SELECT_ALL_STATEMENT = `
	SELECT
		collection, id, data, version, created_on, updated_on, sort_id
	FROM
		records
	WHERE
		collection = ?1 AND (?2 IS NULL OR sort_id > ?2)
	ORDER BY
		sort_id ASC
	LIMIT
		?3`

	RECORD_INSERT_STATEMENT = `
	INSERT INTO records
		(collection, id, data, version, created_on, updated_on)
	VALUES
		(?, ?, ?, 1, ?, ?)
	ON CONFLICT(collection, id) DO NOTHING`

	RECORD_UPDATE_STATEMENT = `
	UPDATE
		records
	SET
		data = ?, version = version + 1, updated_on = ?
	WHERE
		collection = ? AND id = ?`

	RECORD_DELETE_STATEMENT = `
	DELETE FROM records WHERE collection = ? AND id = ?`
)

var statements = &store.Statements{
	Select:    RECORD_SELECT_STATEMENT,
	SelectAll: RECORD_SELECT_ALL_STATEMENT,
	Insert:    RECORD_INSERT_STATEMENT,
	Update:    RECORD_UPDATE_STATEMENT,
	Delete:    RECORD_DELETE_STATEMENT,
}

type Config struct {
	Path      string        `flag:"path" desc:"sqlite database path" default:"syncevents.db"`
	TxTimeout time.Duration `flag:"tx-timeout" desc:"sqlite transaction timeout" default:"10s"`
	Reset     bool          `flag:"reset" desc:"reset sqlite db on shutdown" default:"false"`
}

type SqliteStore struct {
	config *Config
	db     *sql.DB
}

type SqliteStoreWorker struct {
	*SqliteStore
}

func New(config *Config) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, err
	}

	// in memory databases exist per connection
	db.SetMaxOpenConns(1)

	return &SqliteStore{
		config: config,
		db:     db,
	}, nil
}

func (s *SqliteStore) String() string {
	return "store:sqlite"
}

func (s *SqliteStore) Start() error {
	if _, err := s.db.Exec(CREATE_TABLE_STATEMENT); err != nil {
		return err
	}

	return nil
}

func (s *SqliteStore) Stop() error {
	if err := s.db.Close(); err != nil {
		return err
	}

	if s.config.Reset {
		return s.Reset()
	}

	return nil
}

func (s *SqliteStore) Reset() error {
	if s.config.Path == ":memory:" {
		return nil
	}

	if _, err := os.Stat(s.config.Path); err != nil {
		return nil
	}

	return os.Remove(s.config.Path)
}

func (s *SqliteStore) NewWorker(int) aio.Worker {
	return &SqliteStoreWorker{
		SqliteStore: s,
	}
}

func (w *SqliteStoreWorker) Process(sqes []*bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.CQE[t_aio.Submission, t_aio.Completion] {
	return store.Process(w, sqes)
}

func (w *SqliteStoreWorker) Execute(transactions []*t_aio.Transaction) ([][]*t_aio.Result, error) {
	util.Assert(len(transactions) > 0, "expected a transaction")

	ctx, cancel := context.WithTimeout(context.Background(), w.config.TxTimeout)
	defer cancel()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	results, err := store.Perform(tx, statements, transactions)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("tx failed: %v, unable to rollback: %v", err, rbErr)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return results, nil
}
