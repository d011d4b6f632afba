package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store"
	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"

	_ "github.com/lib/pq"
)

const (
	CREATE_TABLE_STATEMENT = `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT,
		id         TEXT,
		sort_id    SERIAL PRIMARY KEY,
		data       BYTEA,
		version    BIGINT DEFAULT 1,
		created_on BIGINT,
		updated_on BIGINT,
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
		collection = $1 AND id = $2`

	RECORD_SELECT_ALL_STATEMENT = `
	SELECT
		collection, id, data, version, created_on, updated_on, sort_id
	FROM
		records
	WHERE
		collection = $1 AND ($2::bigint IS NULL OR sort_id > $2)
	ORDER BY
		sort_id ASC
	LIMIT
		$3`

	RECORD_INSERT_STATEMENT = `
	INSERT INTO records
		(collection, id, data, version, created_on, updated_on)
	VALUES
		($1, $2, $3, 1, $4, $5)
	ON CONFLICT(collection, id) DO NOTHING`

	RECORD_UPDATE_STATEMENT = `
	UPDATE
		records
	SET
		data = $1, version = version + 1, updated_on = $2
	WHERE
		collection = $3 AND id = $4`

	RECORD_DELETE_STATEMENT = `
	DELETE FROM records WHERE collection = $1 AND id = $2`
)

var statements = &store.Statements{
	Select:    RECORD_SELECT_STATEMENT,
	SelectAll: RECORD_SELECT_ALL_STATEMENT,
	Insert:    RECORD_INSERT_STATEMENT,
	Update:    RECORD_UPDATE_STATEMENT,
	Delete:    RECORD_DELETE_STATEMENT,
}

type Config struct {
	Host      string            `flag:"host" desc:"postgres host" default:"localhost"`
	Port      string            `flag:"port" desc:"postgres port" default:"5432"`
	Username  string            `flag:"username" desc:"postgres username"`
	Password  string            `flag:"password" desc:"postgres password"`
	Database  string            `flag:"database" desc:"postgres database" default:"syncevents"`
	Query     map[string]string `flag:"query" desc:"postgres connection query params" default:"{\"sslmode\":\"disable\"}"`
	TxTimeout time.Duration     `flag:"tx-timeout" desc:"postgres transaction timeout" default:"10s"`
	Reset     bool              `flag:"reset" desc:"drop the records table on shutdown" default:"false"`
}

type PostgresStore struct {
	config *Config
	db     *sql.DB
}

type PostgresStoreWorker struct {
	*PostgresStore
	i int
}

func New(config *Config, workers int) (*PostgresStore, error) {
	rawQuery := url.Values{}
	for key, val := range config.Query {
		rawQuery.Set(key, val)
	}

	dbUrl := &url.URL{
		User:     url.UserPassword(config.Username, config.Password),
		Host:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Path:     config.Database,
		Scheme:   "postgres",
		RawQuery: rawQuery.Encode(),
	}

	db, err := sql.Open("postgres", dbUrl.String())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(workers)
	db.SetMaxIdleConns(workers)
	db.SetConnMaxIdleTime(0)

	return &PostgresStore{
		config: config,
		db:     db,
	}, nil
}

func (s *PostgresStore) String() string {
	return "store:postgres"
}

func (s *PostgresStore) Start() error {
	if _, err := s.db.Exec(CREATE_TABLE_STATEMENT); err != nil {
		return err
	}

	return nil
}

func (s *PostgresStore) Stop() error {
	if s.config.Reset {
		if err := s.Reset(); err != nil {
			return err
		}
	}

	return s.db.Close()
}

func (s *PostgresStore) Reset() error {
	if _, err := s.db.Exec(DROP_TABLE_STATEMENT); err != nil {
		return err
	}

	return nil
}

func (s *PostgresStore) NewWorker(i int) aio.Worker {
	return &PostgresStoreWorker{
		PostgresStore: s,
		i:             i,
	}
}

func (w *PostgresStoreWorker) Process(sqes []*bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.CQE[t_aio.Submission, t_aio.Completion] {
	return store.Process(w, sqes)
}

func (w *PostgresStoreWorker) Execute(transactions []*t_aio.Transaction) ([][]*t_aio.Result, error) {
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
