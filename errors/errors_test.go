package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestGrpcCode(t *testing.T) {
	assert.Equal(t, codes.OK, Code(nil), "code should be OK")

	err := fmt.Errorf("test error")
	assert.Equal(t, codes.Unknown, Code(err), "code should be unknown")

	err = WithCode(err, codes.InvalidArgument)
	assert.Equal(t, codes.InvalidArgument, Code(err), "code should be InvalidArgument")

	err = WithCode(err, codes.AlreadyExists)
	assert.Equal(t, codes.AlreadyExists, Code(err), "code should be AlreadyExists")

	err = WrapPrefix(err, "wrapped", 0)
	assert.Equal(t, codes.AlreadyExists, Code(err), "code should still be AlreadyExists")
}

func TestHttpStatusCode(t *testing.T) {
	assert.Equal(t, 200, HTTPStatusCode(nil), "non errors should 200")

	err := fmt.Errorf("test error")
	assert.Equal(t, 500, HTTPStatusCode(err), "should default to 500")

	coded := WithCode(err, codes.FailedPrecondition)
	assert.Equal(t, 412, HTTPStatusCode(coded), "GRPC error should map to 412 http error")

	coded = WithCode(err, codes.Unauthenticated)
	assert.Equal(t, 401, HTTPStatusCode(coded))

	coded = coded.WithHTTPStatusCode(409)
	assert.Equal(t, 409, HTTPStatusCode(coded), "http status code should override grpc code")
}

func TestPrefix(t *testing.T) {
	err := fmt.Errorf("test error")
	wrapped := WrapPrefix(err, "wrapped", 0)
	assert.Equal(t, "wrapped: test error", wrapped.Error(), "error should have prefix")
	assert.True(t, Is(wrapped, err), "wrapped error should still match cause")
}

func TestAppend(t *testing.T) {
	err := New("base").Append("more detail")
	assert.Equal(t, "base: more detail", err.Error())
}

func TestPublicMessage(t *testing.T) {
	err := New("test error")
	assert.Equal(t, "test error", err.GRPCStatus().Message())

	err = err.WithPublicMessage("public message")
	assert.Equal(t, "public message", err.GRPCStatus().Message())
	assert.Equal(t, "test error", err.Error(), "internal message should be unchanged")
}

func TestWrappedError(t *testing.T) {
	err := NewC("test error", codes.InvalidArgument)
	wrappedErr := fmt.Errorf("%w : wrapped error", err)

	assert.Equal(t, codes.InvalidArgument, Code(wrappedErr))
}

func TestMark(t *testing.T) {
	err := NewC("test error", codes.InvalidArgument)
	markedErr := Mark(err, 0)

	assert.NotSame(t, err, markedErr, "mark should copy the sentinel")
	assert.True(t, Is(markedErr, err), "marked error should still satisfy Is")
	assert.Equal(t, codes.InvalidArgument, Code(markedErr))
}

func TestMarkDoesNotMutateSentinel(t *testing.T) {
	sentinel := NewC("sentinel", codes.NotFound)
	marked := Mark(sentinel, 0).Append("context")

	assert.Equal(t, "sentinel", sentinel.Error())
	assert.Equal(t, "sentinel: context", marked.Error())
}

func TestMaybeWrap(t *testing.T) {
	assert.NoError(t, MaybeWrap(nil, 0))
	assert.Error(t, MaybeWrap(fmt.Errorf("boom"), 0))
}

func TestErrorStack(t *testing.T) {
	err := New("boom")
	stack := err.ErrorStack()
	assert.Contains(t, stack, "boom")
	assert.Contains(t, stack, "errors_test.go", "stack should point at the caller")
}
