package t_aio

import (
	"fmt"

	"github.com/resonatehq/syncevents/pkg/record"
)

type StoreKind int

const (
	ReadRecord StoreKind = iota
	ReadRecords
	CreateRecord
	UpdateRecord
	PatchRecord
	DeleteRecord
)

func (k StoreKind) String() string {
	switch k {
	case ReadRecord:
		return "ReadRecord"
	case ReadRecords:
		return "ReadRecords"
	case CreateRecord:
		return "CreateRecord"
	case UpdateRecord:
		return "UpdateRecord"
	case PatchRecord:
		return "PatchRecord"
	case DeleteRecord:
		return "DeleteRecord"
	default:
		panic("invalid store kind")
	}
}

type StoreSubmission struct {
	Transaction *Transaction
}

func (s *StoreSubmission) String() string {
	return fmt.Sprintf("Store(transaction=Transaction(commands=%s))", s.Transaction.Commands)
}

type StoreCompletion struct {
	Results []*Result
}

func (c *StoreCompletion) String() string {
	return fmt.Sprintf("Store(results=%s)", c.Results)
}

type Transaction struct {
	Commands []*Command
}

type Command struct {
	Kind StoreKind

	ReadRecord   *ReadRecordCommand
	ReadRecords  *ReadRecordsCommand
	CreateRecord *CreateRecordCommand
	UpdateRecord *UpdateRecordCommand
	PatchRecord  *PatchRecordCommand
	DeleteRecord *DeleteRecordCommand
}

func (c *Command) String() string {
	return c.Kind.String()
}

type Result struct {
	Kind StoreKind

	ReadRecord   *QueryRecordsResult
	ReadRecords  *QueryRecordsResult
	CreateRecord *AlterRecordsResult
	UpdateRecord *AlterRecordsResult
	PatchRecord  *AlterRecordsResult
	DeleteRecord *AlterRecordsResult
}

func (r *Result) String() string {
	return r.Kind.String()
}

// Record commands

type ReadRecordCommand struct {
	Collection string
	Id         string
}

type ReadRecordsCommand struct {
	Collection string
	Limit      int
	SortId     *int64
}

type CreateRecordCommand struct {
	Collection string
	Id         string
	Data       []byte
	CreatedOn  int64
}

type UpdateRecordCommand struct {
	Collection string
	Id         string
	Data       []byte
	UpdatedOn  int64
}

type PatchRecordCommand struct {
	Collection string
	Id         string
	Patch      map[string]any
	UpdatedOn  int64
}

type DeleteRecordCommand struct {
	Collection string
	Id         string
}

// Record results

type QueryRecordsResult struct {
	RowsReturned int64
	LastSortId   int64
	Records      []*record.Row
}

type AlterRecordsResult struct {
	RowsAffected int64
}
