// Package serialize provides the pluggable Serializer the manager uses
// to turn typed values into the bytes every backend stores.
package serialize

import (
	"encoding/json"
	"fmt"

	"github.com/chronocache/chronocache/cerr"
	"github.com/vmihailenco/msgpack/v5"
)

// Serializer converts between a Go value and its wire bytes.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, out any) error
}

// JSON is the default Serializer, backed by encoding/json.
type JSON struct{}

func (JSON) Serialize(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cerr.ErrSerialization, err)
	}
	return b, nil
}

func (JSON) Deserialize(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s", cerr.ErrDeserialization, err)
	}
	return nil
}

// MsgPack is an alternate Serializer backed by
// github.com/vmihailenco/msgpack/v5, denser on the wire than JSON for
// struct-heavy values.
type MsgPack struct{}

func (MsgPack) Serialize(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cerr.ErrSerialization, err)
	}
	return b, nil
}

func (MsgPack) Deserialize(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s", cerr.ErrDeserialization, err)
	}
	return nil
}

var (
	_ Serializer = JSON{}
	_ Serializer = MsgPack{}
)
