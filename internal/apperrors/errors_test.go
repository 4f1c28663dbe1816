package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("classified errors keep their kind through wrapping", func(t *testing.T) {
		err := fmt.Errorf("archive order: %w", Conflict("order %s is already archived", "ORD-1"))
		assert.Equal(t, KindConflict, KindOf(err))
		assert.True(t, Is(err, KindConflict))
		assert.Equal(t, "archive order: order ORD-1 is already archived", err.Error())
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("connection reset")))
		assert.False(t, Is(nil, KindInternal))
	})
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("order").Kind))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindForbidden))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}

func TestWithDetail(t *testing.T) {
	err := Forbidden("missing capability %s", "share").WithDetail("capability", "share")
	assert.Equal(t, "missing capability share", err.Error())
	assert.Equal(t, "share", err.Details["capability"])
}
