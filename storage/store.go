// Package storage contains an extensible interface for providing persistence
// to the OAuth lifecycle packages and to applications built on them.
//
// Stores provide simple create, read, update, delete, and list operations.
// Models are represented as structs and should have a `PK() string` method.
// Lookups that are not by primary key are expressed as List with a filter
// model, where every non-zero field of the filter must match.
//
// The contract is deliberately small so the same entities can be persisted
// in memory, SQLite, PostgreSQL, or Redis; see the sub-packages.
package storage

import (
	"context"

	"google.golang.org/grpc/codes"

	"github.com/dpup/grantkit/errors"
)

var (
	// Returned when a record does not exist.
	ErrNotFound = errors.NewC("record not found", codes.NotFound)

	// Returned when a record conflicts with an existing key.
	ErrAlreadyExists = errors.NewC("primary key already exists", codes.AlreadyExists)

	// Returned when List is called with a non-slice.
	ErrSliceRequired = errors.NewC("pointer slice required", codes.InvalidArgument)

	// Returned when a store can not marshal/unmarshal a model.
	ErrInvalidModel = errors.NewC("invalid model", codes.InvalidArgument)

	// Returned when List is called with a filter and slice of mismatching types.
	ErrTypeMismatch = errors.NewC("type mismatch", codes.InvalidArgument)

	// Returned when a store is passed an uninitialized pointer.
	ErrNilModel = errors.NewC("uninitialized pointer passed as model", codes.InvalidArgument)
)

// Store offers a basic CRUUDLE (Create Read Update Upsert Delete List Exists)
// interface for persisting models.
type Store interface {
	// Create multiple entities. Fails with ErrAlreadyExists if any primary
	// key is taken.
	Create(ctx context.Context, models ...Model) error

	// Read a record with the given id.
	Read(ctx context.Context, id string, model Model) error

	// Update multiple entities. Fails with ErrNotFound for absent records.
	Update(ctx context.Context, models ...Model) error

	// Update or insert multiple entities.
	Upsert(ctx context.Context, models ...Model) error

	// Delete a record. Only the primary key needs to be populated. Fails with
	// ErrNotFound if no record was deleted, which lets callers detect races
	// on single-use records.
	Delete(ctx context.Context, model Model) error

	// List populates the slice of models with records that have fields which
	// match the fields of filter. Zero-value fields will be ignored, unless
	// the field is a pointer.
	List(ctx context.Context, models any, filter Model) error

	// Exists returns true if a record with the given id exists.
	Exists(ctx context.Context, id string, model Model) (bool, error)
}

// ModelInitializer is an optional interface that stores can implement in
// order to support per-model configuration — for example table per model in
// SQL databases.
type ModelInitializer interface {
	// InitModel is called by an application to initialize a model before it
	// is used. Stores will still work without initialization, however data
	// will be stored in a shared table.
	InitModel(model Model) error
}

// InitModels initializes each model against the store, for stores which
// support per-model setup. It is a no-op for stores that don't.
func InitModels(store Store, models ...Model) error {
	i, ok := store.(ModelInitializer)
	if !ok {
		return nil
	}
	for _, m := range models {
		if err := i.InitModel(m); err != nil {
			return err
		}
	}
	return nil
}
