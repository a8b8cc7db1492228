package storage

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type AccessToken struct {
	AccessToken string
	ClientID    string
}

func (t AccessToken) PK() string { return t.AccessToken }

type legacyRecord struct {
	ID string
}

func (l legacyRecord) PK() string   { return l.ID }
func (l legacyRecord) Name() string { return "legacy" }

func TestName(t *testing.T) {
	assert.Equal(t, "access_tokens", Name(AccessToken{}))
	assert.Equal(t, "access_tokens", Name(&AccessToken{}), "pointers should resolve to the same name")
	assert.Equal(t, "access_tokens", Name([]AccessToken{}), "slices should resolve to the same name")
	assert.Equal(t, "legacy", Name(legacyRecord{}), "Namer should override derived names")
}

func TestValidateReceiver(t *testing.T) {
	var nilToken *AccessToken
	assert.ErrorIs(t, ValidateReceiver(nilToken), ErrNilModel)
	assert.ErrorIs(t, ValidateReceiver(nil), ErrNilModel)
	assert.NoError(t, ValidateReceiver(&AccessToken{}))
}

func TestMatchesFilter(t *testing.T) {
	model := reflect.ValueOf(AccessToken{AccessToken: "t1", ClientID: "c1"})

	assert.True(t, MatchesFilter(model, reflect.ValueOf(AccessToken{})))
	assert.True(t, MatchesFilter(model, reflect.ValueOf(AccessToken{ClientID: "c1"})))
	assert.False(t, MatchesFilter(model, reflect.ValueOf(AccessToken{ClientID: "c2"})))
}
