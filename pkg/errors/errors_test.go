package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	cloned := Clone(ErrVersionConflict, "vigil v1 is at version 4")
	wrapped := fmt.Errorf("sign minute: %w", cloned)

	assert.ErrorIs(t, wrapped, ErrVersionConflict)
	assert.NotErrorIs(t, wrapped, ErrConflict)
}

func TestFromErrorHidesUnknownErrors(t *testing.T) {
	e := FromError(errors.New("pq: deadlock detected"))

	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, ErrInternal.Message, e.Message)
	assert.Nil(t, FromError(nil))
}

func TestWithDetailsCopies(t *testing.T) {
	details := map[string]string{"email": "required"}
	e := WithDetails(ErrValidation, details)
	details["email"] = "changed"

	assert.Equal(t, "required", e.Details["email"])
	assert.Empty(t, ErrValidation.Details)
}
