package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"shophub/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		nil: http.StatusOK,
		fmt.Errorf("%w: quantity must be positive", apperr.ErrValidation): http.StatusBadRequest,
		fmt.Errorf("%w: product p1", apperr.ErrInvalidProductSet):        http.StatusBadRequest,
		fmt.Errorf("%w: order o1", apperr.ErrNotFound):                   http.StatusNotFound,
		apperr.ErrSignatureMismatch:                                      http.StatusBadRequest,
		apperr.ErrInvalidOperation:                                       http.StatusBadRequest,
		apperr.ErrInsufficientStock:                                      http.StatusConflict,
		apperr.ErrGatewayUnavailable:                                     http.StatusInternalServerError,
		errors.New("disk on fire"):                                       http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, apperr.StatusCode(err), "error: %v", err)
	}
}

func TestInvalidProductSetIsValidation(t *testing.T) {
	err := fmt.Errorf("%w: product p1 is not published", apperr.ErrInvalidProductSet)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorIs(t, err, apperr.ErrInvalidProductSet)
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "Internal server error", apperr.Message(errors.New("pq: relation orders does not exist")))
	assert.Contains(t, apperr.Message(fmt.Errorf("%w: dial tcp: timeout", apperr.ErrGatewayUnavailable)), "payment")
	assert.Equal(t, "not found: order o1", apperr.Message(fmt.Errorf("%w: order o1", apperr.ErrNotFound)))
}
