package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := NotFound("store.Get", "list %q not found", "abc")
	wrapped := fmt.Errorf("outer: %w", err)

	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, `store.Get: list "abc" not found`, err.Error())
}

func TestTransportKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport("store.List", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrRemoteTransport)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindRemoteTransport, KindOf(errors.New("boom")))
}

func TestAuthenticationRequiredMessage(t *testing.T) {
	err := AuthenticationRequired("createList", nil)
	assert.Equal(t, "createList: user not authenticated", err.Error())
}

func TestPartialDeleteErrorUnwraps(t *testing.T) {
	cause := Transport("products.Delete", errors.New("timeout"))
	err := &PartialDeleteError{ListID: "l1", Deleted: []string{"a"}, Orphaned: []string{"b", "c"}, Err: cause}

	assert.ErrorIs(t, err, ErrRemoteTransport)
	assert.Contains(t, err.Error(), "2 left orphaned")
}
