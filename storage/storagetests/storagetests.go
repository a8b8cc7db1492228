// Package storagetests provides common acceptance tests for storage.Store
// implementations. Each backend's test file calls Run with a factory that
// yields a fresh, empty store.
package storagetests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/grantkit/storage"
)

// Session approximates a token-like record: keyed by an opaque string, with
// fields that lookups filter on.
type Session struct {
	Token    string
	UserID   string
	ClientID string
	Uses     *int // Ptr fields allow filtering on zero values.
}

func (s Session) PK() string {
	return s.Token
}

type Realm struct {
	ID   string
	Name string
}

func (r Realm) PK() string {
	return r.ID
}

type BadModel struct {
	ID    string
	Cycle *BadModel
}

func (b BadModel) PK() string {
	return b.ID
}

func pint(i int) *int {
	return &i
}

//nolint:funlen // This is a test helper.
func Run(t *testing.T, newStore func() storage.Store) {
	ctx := context.Background()

	t.Run("TestCreateReadRoundTrip", func(t *testing.T) {
		s1 := Session{Token: "tok-1", UserID: "u1", ClientID: "c1"}
		s2 := Session{Token: "tok-2", UserID: "u2", ClientID: "c1"}

		out1 := Session{}
		out2 := Session{}

		store := newStore()
		err := store.Create(ctx, s1, s2)
		require.NoError(t, err, "unexpected error putting records")

		err = store.Read(ctx, "tok-1", &out1)
		require.NoError(t, err, "unexpected error getting tok-1")
		assert.Equal(t, s1, out1)

		err = store.Read(ctx, "tok-2", &out2)
		require.NoError(t, err, "unexpected error getting tok-2")
		assert.Equal(t, s2, out2)
	})

	t.Run("TestCreateConflict", func(t *testing.T) {
		store := newStore()
		err := store.Create(ctx, Session{Token: "tok-1", UserID: "u1"})
		require.NoError(t, err, "unexpected error putting records")

		err = store.Create(ctx, Session{Token: "tok-1", UserID: "u2"})
		require.ErrorIs(t, err, storage.ErrAlreadyExists, "expected conflict error")
	})

	t.Run("TestCreateBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Create(ctx, bm)
		require.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestReadNotFound", func(t *testing.T) {
		store := newStore()
		err := store.Read(ctx, "tok-1", &Session{})
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = store.Create(ctx, &Session{Token: "tok-1"})
		require.NoError(t, err, "unexpected error creating records")

		err = store.Read(ctx, "tok-2", &Session{})
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestReadWithNilPointer", func(t *testing.T) {
		var out *Session

		store := newStore()
		err := store.Create(ctx, Session{Token: "tok-1"})
		require.NoError(t, err, "unexpected error putting records")

		err = store.Read(ctx, "tok-1", out)
		require.ErrorIs(t, err, storage.ErrNilModel, "expected nil model error")
	})

	t.Run("TestUpdate", func(t *testing.T) {
		sess := Session{Token: "tok-1", UserID: "u1"}
		out := Session{}

		store := newStore()
		err := store.Create(ctx, sess)
		require.NoError(t, err, "unexpected error putting records")

		sess.UserID = "u2"
		err = store.Update(ctx, sess)
		require.NoError(t, err, "unexpected error updating record")

		err = store.Read(ctx, "tok-1", &out)
		require.NoError(t, err, "unexpected error getting record")
		assert.Equal(t, sess, out)
	})

	t.Run("TestUpdateNotExists", func(t *testing.T) {
		store := newStore()
		err := store.Update(ctx, Session{Token: "tok-1"})
		require.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestUpsert", func(t *testing.T) {
		sess := Session{Token: "tok-1", UserID: "u1"}

		out1 := Session{}
		out2 := Session{}

		store := newStore()
		err := store.Create(ctx, sess)
		require.NoError(t, err, "unexpected error putting records")

		sess.UserID = "u9"
		other := Session{Token: "tok-2", UserID: "u2"}
		err = store.Upsert(ctx, sess, other)
		require.NoError(t, err, "unexpected error upserting records")

		err = store.Read(ctx, "tok-1", &out1)
		require.NoError(t, err)
		assert.Equal(t, sess, out1)

		err = store.Read(ctx, "tok-2", &out2)
		require.NoError(t, err)
		assert.Equal(t, other, out2)
	})

	t.Run("TestDelete", func(t *testing.T) {
		store := newStore()
		err := store.Create(ctx, &Session{Token: "tok-4"})
		require.NoError(t, err)

		exists, err := store.Exists(ctx, "tok-4", &Session{})
		assert.True(t, exists)
		require.NoError(t, err)

		err = store.Delete(ctx, &Session{Token: "tok-4"})
		require.NoError(t, err)

		exists, err = store.Exists(ctx, "tok-4", &Session{})
		assert.False(t, exists)
		require.NoError(t, err)

		// Second delete reports not found, the contract single-use
		// revocation depends on.
		err = store.Delete(ctx, &Session{Token: "tok-4"})
		require.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestListErrorCases", func(t *testing.T) {
		store := newStore()

		out := []Session{}

		tests := []struct {
			name    string
			models  any
			filter  storage.Model
			wantErr error
		}{
			{"Ok", &out, Session{}, nil},
			{"Not a slice", Session{}, Session{}, storage.ErrSliceRequired},
			{"Not a pointer", out, Session{}, storage.ErrSliceRequired},
			{"Mismatched type", &out, Realm{}, storage.ErrTypeMismatch},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := store.List(ctx, tt.models, tt.filter)
				require.ErrorIs(t, err, tt.wantErr, "store.List() error = %v, wantErr %v", err, tt.wantErr)
			})
		}
	})

	t.Run("TestList", func(t *testing.T) {
		store := newStore()
		err := store.Create(ctx,
			Session{"tok-1", "u1", "c1", nil},
			Session{"tok-2", "u2", "c1", nil},
			Session{"tok-3", "u3", "c2", nil},
		)
		require.NoError(t, err)

		actual := []Session{}
		err = store.List(ctx, &actual, Session{})
		require.NoError(t, err)

		expected := []Session{
			{"tok-1", "u1", "c1", nil},
			{"tok-2", "u2", "c1", nil},
			{"tok-3", "u3", "c2", nil},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestListFilter", func(t *testing.T) {
		store := newStore()
		err := store.Create(ctx,
			Session{"tok-1", "u1", "c1", nil},
			Session{"tok-2", "u2", "c1", nil},
			Session{"tok-3", "u1", "c2", nil},
			Session{"tok-4", "u1", "c1", nil},
		)
		require.NoError(t, err)

		actual := []Session{}
		err = store.List(ctx, &actual, Session{UserID: "u1", ClientID: "c1"})
		require.NoError(t, err)

		expected := []Session{
			{"tok-1", "u1", "c1", nil},
			{"tok-4", "u1", "c1", nil},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestListFilterZero", func(t *testing.T) {
		store := newStore()
		err := store.Create(ctx,
			Session{"tok-1", "u1", "c1", pint(4)},
			Session{"tok-2", "u2", "c1", pint(0)},
			Session{"tok-3", "u3", "c2", pint(0)},
			Session{"tok-4", "u4", "c1", nil},
		)
		require.NoError(t, err)

		actual := []Session{}
		err = store.List(ctx, &actual, Session{Uses: pint(0)})
		require.NoError(t, err)

		expected := []Session{
			{"tok-2", "u2", "c1", pint(0)},
			{"tok-3", "u3", "c2", pint(0)},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestExists", func(t *testing.T) {
		store := newStore()
		exists, err := store.Exists(ctx, "tok-3", &Session{})
		assert.False(t, exists)
		require.NoError(t, err)

		err = store.Create(ctx, &Session{Token: "tok-3"})
		require.NoError(t, err)

		exists, err = store.Exists(ctx, "tok-3", &Session{})
		assert.True(t, exists)
		require.NoError(t, err)
	})
}
