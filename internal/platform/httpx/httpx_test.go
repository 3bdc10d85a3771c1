package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tipbook/backoffice/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("reports: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("reports: finalized: %w", shared.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", shared.ErrInvalidInput), http.StatusBadRequest},
		{shared.ErrUnauthenticated, http.StatusUnauthorized},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
		if tc.status == http.StatusInternalServerError {
			require.Empty(t, body.Detail, "internal errors are not leaked")
		}
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	require.ErrorIs(t, DecodeJSON(req, &target), shared.ErrInvalidInput)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "a", target.Name)
}

func TestRequireActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := RequireActor(req)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	actor := shared.Actor{ID: 7, Name: "Sam", Kind: shared.ActorUser}
	req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	got, err := RequireActor(req)
	require.NoError(t, err)
	require.Equal(t, actor, got)
}
