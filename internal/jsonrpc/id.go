package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ID is the JSON-RPC request/response identifier. The wire format allows an
// id to be either a number or a string; we keep it as a small tagged union
// instead of normalizing both cases to a string, so that 1 and "1" remain
// distinct keys the way the spec requires.
type ID struct {
	isString bool
	i        int64
	s        string
}

// IntID builds a numeric id.
func IntID(i int64) ID { return ID{i: i} }

// StringID builds a string id.
func StringID(s string) ID { return ID{isString: true, s: s} }

// IsString reports whether the id was a JSON string on the wire.
func (id ID) IsString() bool { return id.isString }

// Int returns the numeric value. Only meaningful when !IsString().
func (id ID) Int() int64 { return id.i }

// String returns the string value when IsString(), otherwise a decimal
// rendering of the numeric value (used for log/diagnostic messages only,
// never for map-key comparisons).
func (id ID) String() string {
	if id.isString {
		return id.s
	}
	return fmt.Sprintf("%d", id.i)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.s)
	}
	return json.Marshal(id.i)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID{isString: true, s: s}
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*id = ID{i: i}
		return nil
	}
	return fmt.Errorf("jsonrpc: id is neither a string nor a number: %s", data)
}

// OptionalID is an ID that may additionally be JSON null, as responses
// allow when the request id could not be recovered (e.g. parse errors).
type OptionalID struct {
	Valid bool
	ID    ID
}

// SomeID wraps a present id.
func SomeID(id ID) OptionalID { return OptionalID{Valid: true, ID: id} }

// NullID represents the absence of a recoverable id.
var NullID = OptionalID{}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return o.ID.MarshalJSON()
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalID{}
		return nil
	}
	var id ID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*o = OptionalID{Valid: true, ID: id}
	return nil
}
