package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"
	"github.com/resonatehq/syncevents/pkg/record"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Store interface {
	Execute([]*t_aio.Transaction) ([][]*t_aio.Result, error)
}

// Statements are the dialect specific queries a store runs commands with.
type Statements struct {
	Select    string
	SelectAll string
	Insert    string
	Update    string
	Delete    string
}

func Process(store Store, sqes []*bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.CQE[t_aio.Submission, t_aio.Completion] {
	var cqes []*bus.CQE[t_aio.Submission, t_aio.Completion]
	var transactions []*t_aio.Transaction

	for _, sqe := range sqes {
		util.Assert(sqe.Submission.Store != nil, "submission must not be nil")
		transactions = append(transactions, sqe.Submission.Store.Transaction)
	}

	results, err := store.Execute(transactions)
	if err == nil {
		util.Assert(len(transactions) == len(results), "transactions and results must have equal length")
	}

	for i, sqe := range sqes {
		cqe := &bus.CQE[t_aio.Submission, t_aio.Completion]{
			Callback: sqe.Callback,
		}

		if err != nil {
			slog.Error("failed store execution", "err", err)
			cqe.Error = err
		} else {
			cqe.Completion = &t_aio.Completion{
				Kind: t_aio.Store,
				Store: &t_aio.StoreCompletion{
					Results: results[i],
				},
			}
		}

		cqes = append(cqes, cqe)
	}

	return cqes
}

// Perform runs every command of transactions within tx.
func Perform(tx *sql.Tx, stmts *Statements, transactions []*t_aio.Transaction) ([][]*t_aio.Result, error) {
	results := make([][]*t_aio.Result, len(transactions))

	for i, transaction := range transactions {
		util.Assert(len(transaction.Commands) > 0, "expected a command")
		results[i] = make([]*t_aio.Result, len(transaction.Commands))

		for j, command := range transaction.Commands {
			var err error

			switch command.Kind {
			case t_aio.ReadRecord:
				util.Assert(command.ReadRecord != nil, "command must not be nil")
				results[i][j], err = readRecord(tx, stmts, command.ReadRecord)
			case t_aio.ReadRecords:
				util.Assert(command.ReadRecords != nil, "command must not be nil")
				results[i][j], err = readRecords(tx, stmts, command.ReadRecords)
			case t_aio.CreateRecord:
				util.Assert(command.CreateRecord != nil, "command must not be nil")
				results[i][j], err = createRecord(tx, stmts, command.CreateRecord)
			case t_aio.UpdateRecord:
				util.Assert(command.UpdateRecord != nil, "command must not be nil")
				results[i][j], err = updateRecord(tx, stmts, command.UpdateRecord)
			case t_aio.PatchRecord:
				util.Assert(command.PatchRecord != nil, "command must not be nil")
				results[i][j], err = patchRecord(tx, stmts, command.PatchRecord)
			case t_aio.DeleteRecord:
				util.Assert(command.DeleteRecord != nil, "command must not be nil")
				results[i][j], err = deleteRecord(tx, stmts, command.DeleteRecord)
			default:
				panic(fmt.Sprintf("invalid command: %s", command.Kind))
			}

			if err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

func scan(row interface{ Scan(...any) error }) (*record.Row, error) {
	r := &record.Row{}
	if err := row.Scan(
		&r.Collection,
		&r.Id,
		&r.Data,
		&r.Version,
		&r.CreatedOn,
		&r.UpdatedOn,
		&r.SortId,
	); err != nil {
		return nil, err
	}
	return r, nil
}

func readRecord(tx *sql.Tx, stmts *Statements, cmd *t_aio.ReadRecordCommand) (*t_aio.Result, error) {
	var records []*record.Row

	r, err := scan(tx.QueryRow(stmts.Select, cmd.Collection, cmd.Id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	} else {
		records = append(records, r)
	}

	return &t_aio.Result{
		Kind: t_aio.ReadRecord,
		ReadRecord: &t_aio.QueryRecordsResult{
			RowsReturned: int64(len(records)),
			Records:      records,
		},
	}, nil
}

func readRecords(tx *sql.Tx, stmts *Statements, cmd *t_aio.ReadRecordsCommand) (*t_aio.Result, error) {
	rows, err := tx.Query(stmts.SelectAll, cmd.Collection, cmd.SortId, cmd.Limit)
	if err != nil {
		return nil, err
	}
	defer util.DeferAndLog(rows.Close)

	var records []*record.Row
	var lastSortId int64

	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, r)
		lastSortId = r.SortId
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &t_aio.Result{
		Kind: t_aio.ReadRecords,
		ReadRecords: &t_aio.QueryRecordsResult{
			RowsReturned: int64(len(records)),
			LastSortId:   lastSortId,
			Records:      records,
		},
	}, nil
}

func createRecord(tx *sql.Tx, stmts *Statements, cmd *t_aio.CreateRecordCommand) (*t_aio.Result, error) {
	res, err := tx.Exec(stmts.Insert, cmd.Collection, cmd.Id, cmd.Data, cmd.CreatedOn, cmd.CreatedOn)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	return &t_aio.Result{
		Kind: t_aio.CreateRecord,
		CreateRecord: &t_aio.AlterRecordsResult{
			RowsAffected: rowsAffected,
		},
	}, nil
}

func updateRecord(tx *sql.Tx, stmts *Statements, cmd *t_aio.UpdateRecordCommand) (*t_aio.Result, error) {
	rowsAffected, err := update(tx, stmts, cmd.Collection, cmd.Id, cmd.Data, cmd.UpdatedOn)
	if err != nil {
		return nil, err
	}

	return &t_aio.Result{
		Kind: t_aio.UpdateRecord,
		UpdateRecord: &t_aio.AlterRecordsResult{
			RowsAffected: rowsAffected,
		},
	}, nil
}

func patchRecord(tx *sql.Tx, stmts *Statements, cmd *t_aio.PatchRecordCommand) (*t_aio.Result, error) {
	var rowsAffected int64

	r, err := scan(tx.QueryRow(stmts.Select, cmd.Collection, cmd.Id))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err == nil {
		data, err := record.Merge(r.Data, cmd.Patch)
		if err != nil {
			return nil, err
		}

		rowsAffected, err = update(tx, stmts, cmd.Collection, cmd.Id, data, cmd.UpdatedOn)
		if err != nil {
			return nil, err
		}
	}

	return &t_aio.Result{
		Kind: t_aio.PatchRecord,
		PatchRecord: &t_aio.AlterRecordsResult{
			RowsAffected: rowsAffected,
		},
	}, nil
}

func update(tx *sql.Tx, stmts *Statements, collection string, id string, data []byte, updatedOn int64) (int64, error) {
	res, err := tx.Exec(stmts.Update, data, updatedOn, collection, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func deleteRecord(tx *sql.Tx, stmts *Statements, cmd *t_aio.DeleteRecordCommand) (*t_aio.Result, error) {
	res, err := tx.Exec(stmts.Delete, cmd.Collection, cmd.Id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	return &t_aio.Result{
		Kind: t_aio.DeleteRecord,
		DeleteRecord: &t_aio.AlterRecordsResult{
			RowsAffected: rowsAffected,
		},
	}, nil
}
