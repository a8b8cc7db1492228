// Package redis provides a Redis implementation of storage.Store. Records are
// stored as JSON strings keyed by "<prefix><entity>:<pk>", which keeps the
// single-key operations atomic: Create uses SETNX, Update uses SETXX, and
// Delete checks the DEL count.
//
// List scans matching keys and filters in process, so it is suited to the
// modest cardinalities of clients, codes, and tokens rather than analytics.
package redis

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/dpup/grantkit/errors"
	"github.com/dpup/grantkit/storage"
)

const scanCount = 100

// Option is a functional option for configuring the store.
type Option func(*store)

// WithPrefix overrides the default prefix for keys.
func WithPrefix(prefix string) Option {
	return func(s *store) {
		s.prefix = prefix
	}
}

// New returns a store backed by the given Redis client.
func New(client *redis.Client, opts ...Option) storage.Store {
	s := &store{
		client: client,
		prefix: "grantkit:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type store struct {
	client *redis.Client
	prefix string
}

func (s *store) Create(ctx context.Context, models ...storage.Model) error {
	for _, model := range models {
		value, err := json.Marshal(model)
		if err != nil {
			return errors.Mark(storage.ErrInvalidModel, 0).Append(err.Error())
		}
		ok, err := s.client.SetNX(ctx, s.key(model, model.PK()), value, 0).Result()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		if !ok {
			return errors.Mark(storage.ErrAlreadyExists, 0)
		}
	}
	return nil
}

func (s *store) Read(ctx context.Context, id string, model storage.Model) error {
	if err := storage.ValidateReceiver(model); err != nil {
		return err
	}
	value, err := s.client.Get(ctx, s.key(model, id)).Bytes()
	if err != nil {
		return translateError(err)
	}
	return errors.MaybeWrap(json.Unmarshal(value, model), 0)
}

func (s *store) Update(ctx context.Context, models ...storage.Model) error {
	for _, model := range models {
		value, err := json.Marshal(model)
		if err != nil {
			return errors.Mark(storage.ErrInvalidModel, 0).Append(err.Error())
		}
		ok, err := s.client.SetXX(ctx, s.key(model, model.PK()), value, 0).Result()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		if !ok {
			return errors.Mark(storage.ErrNotFound, 0)
		}
	}
	return nil
}

func (s *store) Upsert(ctx context.Context, models ...storage.Model) error {
	for _, model := range models {
		value, err := json.Marshal(model)
		if err != nil {
			return errors.Mark(storage.ErrInvalidModel, 0).Append(err.Error())
		}
		if err := s.client.Set(ctx, s.key(model, model.PK()), value, 0).Err(); err != nil {
			return errors.Wrap(err, 0)
		}
	}
	return nil
}

// Delete uses the DEL reply count, so two concurrent deletes of the same
// record yield one success and one ErrNotFound.
func (s *store) Delete(ctx context.Context, model storage.Model) error {
	n, err := s.client.Del(ctx, s.key(model, model.PK())).Result()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if n == 0 {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	return nil
}

func (s *store) List(ctx context.Context, models any, filter storage.Model) error {
	modelsVal := reflect.ValueOf(models)
	if modelsVal.Kind() != reflect.Ptr || modelsVal.Elem().Kind() != reflect.Slice {
		return errors.Mark(storage.ErrSliceRequired, 0)
	}
	sliceVal := modelsVal.Elem()
	elemType := sliceVal.Type().Elem()
	if elemType != reflect.TypeOf(filter) {
		return errors.Mark(storage.ErrTypeMismatch, 0)
	}

	filterValue := reflect.ValueOf(filter)
	pattern := s.prefix + storage.Name(filter) + ":*"

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, 0)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// Expired or deleted between scan and fetch.
			continue
		} else if err != nil {
			return errors.Wrap(err, 0)
		}

		newElemPtr := reflect.New(elemType)
		newElem := newElemPtr.Elem()
		if err := json.Unmarshal(value, newElem.Addr().Interface()); err != nil {
			return errors.Mark(storage.ErrInvalidModel, 0).Append(err.Error())
		}

		if storage.MatchesFilter(newElem, filterValue) {
			sliceVal.Set(reflect.Append(sliceVal, newElem))
		}
	}

	return nil
}

func (s *store) Exists(ctx context.Context, id string, model storage.Model) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(model, id)).Result()
	if err != nil {
		return false, errors.Wrap(err, 0)
	}
	return n > 0, nil
}

func (s *store) key(model storage.Model, id string) string {
	return s.prefix + storage.Name(model) + ":" + id
}

func translateError(err error) error {
	if err == redis.Nil {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	return errors.MaybeWrap(err, 0)
}
