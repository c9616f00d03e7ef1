package kvstore

import (
	"encoding/json"
	"errors"
)

var (
	ErrKeyEmpty    = errors.New("key is empty")
	ErrKeyNotFound = errors.New("key not found")
	ErrValueNil    = errors.New("value is nil")
)

type KVPair struct {
	Key   string
	Value []byte
}

// KVStore is the narrow key-value surface the ledger store is built on.
// Keys under a common prefix list in lexicographic order.
type KVStore interface {
	GetName() string
	Set(k string, v string) error
	Get(k string) (v string, err error)
	// SetAny/GetAny marshal structured values through the store codec.
	SetAny(k string, v any) error
	GetAny(k string, v any) (found bool, err error)

	List(prefix string) ([]*KVPair, error)
	// LastUnderPrefix returns the lexicographically greatest key under prefix,
	// or found=false when the prefix is empty.
	LastUnderPrefix(prefix string) (kv *KVPair, found bool, err error)
	Delete(k string) error
	Close() error
}

// Codec encodes/decodes Go values to/from slices of bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the default codec.
var JSON = JSONCodec{}

type JSONCodec struct{}

func (c JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func checkKeyAndValue(k string, v any) error {
	if k == "" {
		return ErrKeyEmpty
	}
	if v == nil {
		return ErrValueNil
	}
	return nil
}
