package record

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Record is a JSON document stored under a collection.
type Record struct {
	Collection string         `json:"-"`
	Id         string         `json:"id"`
	Data       map[string]any `json:"data"`
	Version    int64          `json:"version"`
	CreatedOn  int64          `json:"createdOn"`
	UpdatedOn  int64          `json:"updatedOn"`
}

func (r *Record) String() string {
	return fmt.Sprintf("Record(collection=%s, id=%s, version=%d)", r.Collection, r.Id, r.Version)
}

// Attributes returns the record data with its id, the shape targets expect.
func (r *Record) Attributes() map[string]any {
	attrs := make(map[string]any, len(r.Data)+1)
	maps.Copy(attrs, r.Data)
	attrs["id"] = r.Id
	return attrs
}

// Row is a record as persisted by a store.
type Row struct {
	Collection string
	Id         string
	Data       []byte
	Version    int64
	CreatedOn  int64
	UpdatedOn  int64
	SortId     int64
}

func (r *Row) Record() (*Record, error) {
	var data map[string]any
	if r.Data != nil {
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return nil, err
		}
	}

	return &Record{
		Collection: r.Collection,
		Id:         r.Id,
		Data:       data,
		Version:    r.Version,
		CreatedOn:  r.CreatedOn,
		UpdatedOn:  r.UpdatedOn,
	}, nil
}

// Encode returns the stored form of attrs. The id is part of the row, not
// of its data.
func Encode(attrs map[string]any) ([]byte, error) {
	data := maps.Clone(attrs)
	delete(data, "id")
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(data)
}

// Merge applies a patch of top level keys onto stored data.
func Merge(data []byte, patch map[string]any) ([]byte, error) {
	var attrs map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &attrs); err != nil {
			return nil, err
		}
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	maps.Copy(attrs, patch)
	return Encode(attrs)
}
