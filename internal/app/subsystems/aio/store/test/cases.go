package test

import (
	"testing"

	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"
	"github.com/resonatehq/syncevents/pkg/record"
	"github.com/stretchr/testify/assert"
)

type testCase struct {
	name     string
	panic    bool
	commands []*t_aio.Command
	expected []*t_aio.Result
}

func (c *testCase) Run(t *testing.T, store store.Store) {
	t.Run(c.name, func(t *testing.T) {
		// assert panic occurs
		if c.panic {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("The function did not panic as expected")
				}
			}()
		}

		results, err := store.Execute([]*t_aio.Transaction{{Commands: c.commands}})
		if err != nil {
			t.Fatal(err)
		}

		assert.Len(t, results, 1)
		assert.Equal(t, c.expected, results[0])
	})
}

func (c *testCase) Panic() bool {
	return c.panic
}

var TestCases = []*testCase{
	{
		name: "CreateRecord",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{"title":"foo"}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.ReadRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.QueryRecordsResult{
					RowsReturned: 1,
					Records: []*record.Row{{
						Collection: "todos",
						Id:         "foo",
						Data:       []byte(`{"title":"foo"}`),
						Version:    1,
						CreatedOn:  1,
						UpdatedOn:  1,
						SortId:     1,
					}},
				},
			},
		},
	},
	{
		name: "CreateRecordConflict",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{"title":"foo"}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{"title":"bar"}`),
					CreatedOn:  2,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.ReadRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 0,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.QueryRecordsResult{
					RowsReturned: 1,
					Records: []*record.Row{{
						Collection: "todos",
						Id:         "foo",
						Data:       []byte(`{"title":"foo"}`),
						Version:    1,
						CreatedOn:  1,
						UpdatedOn:  1,
						SortId:     1,
					}},
				},
			},
		},
	},
	{
		name: "ReadRecordNotFound",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.ReadRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.QueryRecordsResult{
					RowsReturned: 0,
				},
			},
		},
	},
	{
		name: "UpdateRecord",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{"title":"foo"}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.UpdateRecord,
				UpdateRecord: &t_aio.UpdateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{"title":"bar"}`),
					UpdatedOn:  2,
				},
			},
			{
				Kind: t_aio.UpdateRecord,
				UpdateRecord: &t_aio.UpdateRecordCommand{
					Collection: "todos",
					Id:         "bar",
					Data:       []byte(`{"title":"bar"}`),
					UpdatedOn:  2,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.ReadRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.UpdateRecord,
				UpdateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.UpdateRecord,
				UpdateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 0,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.QueryRecordsResult{
					RowsReturned: 1,
					Records: []*record.Row{{
						Collection: "todos",
						Id:         "foo",
						Data:       []byte(`{"title":"bar"}`),
						Version:    2,
						CreatedOn:  1,
						UpdatedOn:  2,
						SortId:     1,
					}},
				},
			},
		},
	},
	{
		name: "PatchRecord",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{"done":false,"title":"foo"}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.PatchRecord,
				PatchRecord: &t_aio.PatchRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Patch:      map[string]any{"done": true},
					UpdatedOn:  3,
				},
			},
			{
				Kind: t_aio.PatchRecord,
				PatchRecord: &t_aio.PatchRecordCommand{
					Collection: "todos",
					Id:         "bar",
					Patch:      map[string]any{"done": true},
					UpdatedOn:  3,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.ReadRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.PatchRecord,
				PatchRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.PatchRecord,
				PatchRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 0,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.QueryRecordsResult{
					RowsReturned: 1,
					Records: []*record.Row{{
						Collection: "todos",
						Id:         "foo",
						Data:       []byte(`{"done":true,"title":"foo"}`),
						Version:    2,
						CreatedOn:  1,
						UpdatedOn:  3,
						SortId:     1,
					}},
				},
			},
		},
	},
	{
		name: "DeleteRecord",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "foo",
					Data:       []byte(`{}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.DeleteRecord,
				DeleteRecord: &t_aio.DeleteRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
			{
				Kind: t_aio.DeleteRecord,
				DeleteRecord: &t_aio.DeleteRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.ReadRecordCommand{
					Collection: "todos",
					Id:         "foo",
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.DeleteRecord,
				DeleteRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.DeleteRecord,
				DeleteRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 0,
				},
			},
			{
				Kind: t_aio.ReadRecord,
				ReadRecord: &t_aio.QueryRecordsResult{
					RowsReturned: 0,
				},
			},
		},
	},
	{
		name: "ReadRecords",
		commands: []*t_aio.Command{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "a",
					Data:       []byte(`{}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "notes",
					Id:         "b",
					Data:       []byte(`{}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "c",
					Data:       []byte(`{}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.CreateRecordCommand{
					Collection: "todos",
					Id:         "d",
					Data:       []byte(`{}`),
					CreatedOn:  1,
				},
			},
			{
				Kind: t_aio.ReadRecords,
				ReadRecords: &t_aio.ReadRecordsCommand{
					Collection: "todos",
					Limit:      2,
				},
			},
			{
				Kind: t_aio.ReadRecords,
				ReadRecords: &t_aio.ReadRecordsCommand{
					Collection: "todos",
					Limit:      2,
					SortId:     util.ToPointer(int64(3)),
				},
			},
		},
		expected: []*t_aio.Result{
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.CreateRecord,
				CreateRecord: &t_aio.AlterRecordsResult{
					RowsAffected: 1,
				},
			},
			{
				Kind: t_aio.ReadRecords,
				ReadRecords: &t_aio.QueryRecordsResult{
					RowsReturned: 2,
					LastSortId:   3,
					Records: []*record.Row{
						{Collection: "todos", Id: "a", Data: []byte(`{}`), Version: 1, CreatedOn: 1, UpdatedOn: 1, SortId: 1},
						{Collection: "todos", Id: "c", Data: []byte(`{}`), Version: 1, CreatedOn: 1, UpdatedOn: 1, SortId: 3},
					},
				},
			},
			{
				Kind: t_aio.ReadRecords,
				ReadRecords: &t_aio.QueryRecordsResult{
					RowsReturned: 1,
					LastSortId:   4,
					Records: []*record.Row{
						{Collection: "todos", Id: "d", Data: []byte(`{}`), Version: 1, CreatedOn: 1, UpdatedOn: 1, SortId: 4},
					},
				},
			},
		},
	},
	{
		name:  "PanicsWithoutCommands",
		panic: true,
	},
}
