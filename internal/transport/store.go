package transport

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/record"
)

// DefaultLimit is the number of records a collection read returns.
const DefaultLimit = 1000

func storeSubmission(s *persist.Settings, path string) (*t_aio.Submission, completer, error) {
	collection, id := util.SplitPath(path)
	if collection == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedUrl, s.URL)
	}

	attrs, err := attributes(s.Body)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UnixMilli()
	var commands []*t_aio.Command

	switch s.Method {
	case persist.Read:
		if id == "" {
			commands = append(commands, &t_aio.Command{
				Kind: t_aio.ReadRecords,
				ReadRecords: &t_aio.ReadRecordsCommand{
					Collection: collection,
					Limit:      DefaultLimit,
				},
			})
		}
	case persist.Create:
		if id == "" {
			if v, ok := attrs["id"].(string); ok && v != "" {
				id = v
			} else {
				id = uuid.NewString()
			}
		}

		data, err := record.Encode(attrs)
		if err != nil {
			return nil, nil, err
		}

		commands = append(commands, &t_aio.Command{
			Kind: t_aio.CreateRecord,
			CreateRecord: &t_aio.CreateRecordCommand{
				Collection: collection,
				Id:         id,
				Data:       data,
				CreatedOn:  now,
			},
		})
	case persist.Update:
		data, err := record.Encode(attrs)
		if err != nil {
			return nil, nil, err
		}

		commands = append(commands, &t_aio.Command{
			Kind: t_aio.UpdateRecord,
			UpdateRecord: &t_aio.UpdateRecordCommand{
				Collection: collection,
				Id:         id,
				Data:       data,
				UpdatedOn:  now,
			},
		})
	case persist.Patch:
		delete(attrs, "id")
		commands = append(commands, &t_aio.Command{
			Kind: t_aio.PatchRecord,
			PatchRecord: &t_aio.PatchRecordCommand{
				Collection: collection,
				Id:         id,
				Patch:      attrs,
				UpdatedOn:  now,
			},
		})
	case persist.Delete:
		commands = append(commands, &t_aio.Command{
			Kind: t_aio.DeleteRecord,
			DeleteRecord: &t_aio.DeleteRecordCommand{
				Collection: collection,
				Id:         id,
			},
		})
	}

	if id == "" {
		if s.Method != persist.Read {
			return nil, nil, fmt.Errorf("%w: %s requires a record id", ErrUnsupportedUrl, s.Method)
		}
	} else if s.Method != persist.Delete {
		// every write answers with the record as stored
		commands = append(commands, &t_aio.Command{
			Kind: t_aio.ReadRecord,
			ReadRecord: &t_aio.ReadRecordCommand{
				Collection: collection,
				Id:         id,
			},
		})
	}

	submission := &t_aio.Submission{
		Kind: t_aio.Store,
		Store: &t_aio.StoreSubmission{
			Transaction: &t_aio.Transaction{Commands: commands},
		},
	}

	return submission, func(c *t_aio.Completion) (any, int, error) {
		return result(s.Method, c.Store.Results)
	}, nil
}

func result(method persist.Method, results []*t_aio.Result) (any, int, error) {
	util.Assert(len(results) > 0, "expected a result")

	switch first := results[0]; first.Kind {
	case t_aio.ReadRecords:
		items := make([]any, len(first.ReadRecords.Records))
		for i, row := range first.ReadRecords.Records {
			r, err := row.Record()
			if err != nil {
				return nil, 0, err
			}
			items[i] = r.Attributes()
		}
		return items, http.StatusOK, nil
	case t_aio.ReadRecord:
		return read(first.ReadRecord, http.StatusOK)
	case t_aio.CreateRecord:
		if first.CreateRecord.RowsAffected == 0 {
			return nil, 0, &StatusError{Code: http.StatusConflict, Err: store.ErrConflict}
		}
		return read(results[1].ReadRecord, http.StatusCreated)
	case t_aio.UpdateRecord:
		if first.UpdateRecord.RowsAffected == 0 {
			return nil, 0, &StatusError{Code: http.StatusNotFound, Err: store.ErrNotFound}
		}
		return read(results[1].ReadRecord, http.StatusOK)
	case t_aio.PatchRecord:
		if first.PatchRecord.RowsAffected == 0 {
			return nil, 0, &StatusError{Code: http.StatusNotFound, Err: store.ErrNotFound}
		}
		return read(results[1].ReadRecord, http.StatusOK)
	case t_aio.DeleteRecord:
		if first.DeleteRecord.RowsAffected == 0 {
			return nil, 0, &StatusError{Code: http.StatusNotFound, Err: store.ErrNotFound}
		}
		return nil, http.StatusNoContent, nil
	default:
		panic(fmt.Sprintf("invalid result %s for method %s", first.Kind, method))
	}
}

func read(res *t_aio.QueryRecordsResult, code int) (any, int, error) {
	if res.RowsReturned == 0 {
		return nil, 0, &StatusError{Code: http.StatusNotFound, Err: store.ErrNotFound}
	}

	r, err := res.Records[0].Record()
	if err != nil {
		return nil, 0, err
	}
	return r.Attributes(), code, nil
}

// attributes returns body as a json object.
func attributes(body any) (map[string]any, error) {
	switch b := body.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return maps.Clone(b), nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("body must be a json object: %w", err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}
