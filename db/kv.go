package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

//Store is a category-scoped key/value persistence backend. Values are opaque JSON documents.
type Store interface {
	//GetRaw returns the value stored under key, with found set to false if there is none.
	GetRaw(ctx context.Context, category, key string) (value []byte, found bool, err error)
	SetRaw(ctx context.Context, category, key string, value []byte) error
	//GetAllRaw returns every value in a category keyed by their key.
	GetAllRaw(ctx context.Context, category string) (map[string][]byte, error)
	Remove(ctx context.Context, category, key string) error
	Close() error
}

//ErrInvalidCategory is returned for category names that cannot be used as a table name.
var ErrInvalidCategory = errors.New("invalid category name")

//PersistenceError wraps a failure from the underlying store.
type PersistenceError struct {
	Op       string
	Category string
	Key      string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v %v: %v", e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("%v %v/%v: %v", e.Op, e.Category, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceErr(op, category, key string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Category: category, Key: key, Err: err}
}

//Get fetches and decodes a single value. A missing key yields (nil, nil).
func Get[T any](ctx context.Context, s Store, category, key string) (*T, error) {
	raw, found, err := s.GetRaw(ctx, category, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var res T
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, persistenceErr("decode", category, key, err)
	}
	return &res, nil
}

//Set encodes and stores a value, replacing any existing one.
func Set[T any](ctx context.Context, s Store, category, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return persistenceErr("encode", category, key, err)
	}
	return s.SetRaw(ctx, category, key, raw)
}

//GetAll fetches and decodes every value in a category.
func GetAll[T any](ctx context.Context, s Store, category string) ([]T, error) {
	raws, err := s.GetAllRaw(ctx, category)
	if err != nil {
		return nil, err
	}
	res := make([]T, 0, len(raws))
	for key, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, persistenceErr("decode", category, key, err)
		}
		res = append(res, v)
	}
	return res, nil
}

func validCategory(category string) bool {
	if category == "" || len(category) > 48 {
		return false
	}
	for _, r := range category {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}
