package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/handler"
	"github.com/dmitrymomot/schoolpay/pkg/binder"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

type createRequest struct {
	ID   string `path:"id" json:"-"`
	Name string `json:"name"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	pathID := func(r *http.Request, name string) string {
		if name == "id" {
			return "abc"
		}
		return ""
	}

	echo := func(ctx handler.Context, req createRequest) handler.Response {
		return handler.JSON(req, handler.WithJSONStatus(http.StatusCreated))
	}

	t.Run("applies binders in order", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo,
			handler.WithBinders[handler.Context, createRequest](binder.Path(pathID), binder.JSON()),
		)

		req := httptest.NewRequest(http.MethodPost, "/items/abc", bytes.NewBufferString(`{"name":"Lagos Academy"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decodeEnvelope(t, rec)
		data, ok := body.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Lagos Academy", data["name"])
	})

	t.Run("skips binders that do not apply", func(t *testing.T) {
		t.Parallel()
		var got createRequest
		h := handler.Wrap(func(ctx handler.Context, req createRequest) handler.Response {
			got = req
			return handler.JSON(nil, handler.WithJSONStatus(http.StatusAccepted))
		}, handler.WithBinders[handler.Context, createRequest](binder.Path(pathID), binder.JSON()))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/items/abc", nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "abc", got.ID)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo,
			handler.Endpoint[handler.Context, createRequest](handler.NewErrorHandler(logger.Nop()), binder.JSON()),
		)

		req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(`{"name":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeEnvelope(t, rec)
		require.NotNil(t, body.Error)
		assert.Equal(t, "bad_request", body.Error.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo, handler.WithBinders[handler.Context, createRequest](binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(`name=x`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(ctx handler.Context, req createRequest) handler.Response {
			return nil
		})

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("decorators wrap outermost first", func(t *testing.T) {
		t.Parallel()
		var order []string
		mark := func(name string) handler.Decorator[handler.Context, createRequest] {
			return func(next handler.HandlerFunc[handler.Context, createRequest]) handler.HandlerFunc[handler.Context, createRequest] {
				return func(ctx handler.Context, req createRequest) handler.Response {
					order = append(order, name)
					return next(ctx, req)
				}
			}
		}

		h := handler.Wrap(func(ctx handler.Context, req createRequest) handler.Response {
			order = append(order, "handler")
			return handler.JSON(order)
		}, handler.WithDecorators(mark("outer"), mark("inner")))

		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{"http error", handler.ErrNotFound, http.StatusNotFound, "not_found"},
		{"wrapped http error", errors.Join(handler.ErrConflict, errors.New("dup")), http.StatusConflict, "conflict"},
		{"custom http error", handler.NewHTTPError(http.StatusPaymentRequired, "billing.errors.inactive"), http.StatusPaymentRequired, "billing.errors.inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			body := decodeEnvelope(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Nil(t, body.Data)
		})
	}

	t.Run("validation error details", func(t *testing.T) {
		t.Parallel()
		verr := handler.NewValidationError()
		verr.Add("email", "is required")
		verr.Add("plan", "is unknown")

		rec := httptest.NewRecorder()
		require.NoError(t, handler.JSONError(verr).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeEnvelope(t, rec)
		require.NotNil(t, body.Error)
		assert.Equal(t, "validation_error", body.Error.Code)
		assert.Equal(t, []string{"is required"}, body.Error.Details["email"])
		assert.Equal(t, "validation error: email: is required, plan: is unknown", verr.Error())
	})

	t.Run("explicit detail with status", func(t *testing.T) {
		t.Parallel()
		detail := &handler.ErrorDetail{Code: "quota", Details: map[string][]string{"limit": {"300"}}}

		rec := httptest.NewRecorder()
		resp := handler.JSONError(detail, handler.WithJSONStatus(http.StatusForbidden), handler.WithJSONMeta(map[string]any{"resource": "student"}))
		require.NoError(t, resp.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, "student", body.Meta["resource"])
		assert.Equal(t, []string{"300"}, body.Error.Details["limit"])
	})
}

func TestValidationError_OrNil(t *testing.T) {
	t.Parallel()

	verr := handler.NewValidationError()
	assert.NoError(t, verr.OrNil())

	verr.Add("plan", "is required")
	assert.True(t, verr.Has("plan"))
	assert.Equal(t, "is required", verr.Get("plan"))
	assert.Error(t, verr.OrNil())
}

type ctxKey struct{}

func TestNewContext(t *testing.T) {
	t.Parallel()

	base, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "greenfield"))
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(base)
	rec := httptest.NewRecorder()
	ctx := handler.NewContext(rec, req)

	assert.Equal(t, "greenfield", ctx.Value(ctxKey{}))
	assert.Same(t, req, ctx.Request())
	assert.Same(t, rec, ctx.ResponseWriter())
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	require.NoError(t, ctx.Err())
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
