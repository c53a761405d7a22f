package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.Validation("title is required"), http.StatusBadRequest},
		{errs.ErrMissingIdentity, http.StatusUnauthorized},
		{errs.ErrNotOwner, http.StatusForbidden},
		{errs.ErrNoMerchant, http.StatusForbidden},
		{errs.Wrap(errs.ErrDealNotFound, "get deal"), http.StatusNotFound},
		{errs.ErrCodeNotFound, http.StatusNotFound},
		{errs.ErrAlreadyRedeemed, http.StatusConflict},
		{errs.ErrSoldOut, http.StatusConflict},
		{errs.ErrDealNotExpired, http.StatusConflict},
		{errs.ErrShortCodeExhausted, http.StatusConflict},
		{errs.ErrDealNotActive, http.StatusUnprocessableEntity},
		{errs.Unexpected(errors.New("connection reset"), "count"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusFor(c.err), "%v", c.err)
	}
}

func TestWriteErrorHidesUnexpectedDetails(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()

	WriteError(rec, logger.NewWithWriter(&logs), "REDEMPTION", errs.Unexpected(errors.New("pq: password authentication failed"), "count"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, logs.String(), "password authentication failed")

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "UnexpectedError", body.Error)
}

func TestWriteErrorDomainMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, logger.NewWithWriter(&bytes.Buffer{}), "REDEMPTION", errs.Wrap(errs.ErrAlreadyRedeemed, "HJKMN"))

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AlreadyRedeemed", body.Error)
	assert.Equal(t, "redemption code already redeemed", body.Message)
}
