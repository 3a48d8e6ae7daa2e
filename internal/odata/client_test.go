package odata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oskarih/fmcloud-go/internal/batch"
)

// staticTokens is a TokenProvider returning a fixed header or error.
type staticTokens struct {
	header string
	err    error
}

func (s staticTokens) AuthorizationHeader(context.Context) (string, error) {
	return s.header, s.err
}

// batchReply frames a single 200 response as a one-part multipart body.
func batchReply(w http.ResponseWriter, payload string) {
	body := "--reply\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-Transfer-Encoding: binary\r\n" +
		"\r\n" +
		"HTTP/1.1 200 OK\r\n" +
		"Content-Type: application/json\r\n" +
		"\r\n" +
		payload + "\r\n" +
		"--reply--\r\n"

	w.Header().Set("Content-Type", "multipart/mixed; boundary=reply")
	w.Header().Set("OData-Version", "4.0")
	_, _ = w.Write([]byte(body))
}

func TestBatch_RoundTrip(t *testing.T) {
	var gotAuth, gotVersion, gotPath, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("OData-Version")
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "GET Customers HTTP/1.1")

		batchReply(w, `{"value":[]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/fmi/odata/v4/Sales", nil, staticTokens{header: "FMID tok"}, nil)

	responses, err := client.Batch(context.Background(), []batch.Operation{
		{Method: http.MethodGet, URL: "Customers"},
	})
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.Equal(t, 200, responses[0].StatusCode)
	assert.Equal(t, `{"value":[]}`, string(responses[0].Body))

	assert.Equal(t, "FMID tok", gotAuth)
	assert.Equal(t, "4.0", gotVersion)
	assert.Equal(t, "/fmi/odata/v4/Sales/$batch", gotPath)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/mixed; boundary=batch_"))
}

func TestBatch_TokenErrorPropagates(t *testing.T) {
	tokenErr := errors.New("password changed")

	client := NewClient("https://example.test", nil, staticTokens{err: tokenErr}, nil)

	_, err := client.Batch(context.Background(), []batch.Operation{
		{Method: http.MethodGet, URL: "Customers"},
	})
	require.ErrorIs(t, err, tokenErr)
}

func TestBatch_TransportErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("token rejected"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, staticTokens{header: "FMID stale"}, nil)

	_, err := client.Batch(context.Background(), []batch.Operation{
		{Method: http.MethodGet, URL: "Customers"},
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.Contains(t, te.Message, "token rejected")
}

func TestBatch_MalformedReplyIsFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// 200 but no multipart framing at all.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"surprise"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, nil, staticTokens{header: "FMID tok"}, nil)

	_, err := client.Batch(context.Background(), []batch.Operation{
		{Method: http.MethodGet, URL: "Customers"},
	})
	require.ErrorIs(t, err, batch.ErrFormat)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusBadGateway, ErrServerError},
		{http.StatusTeapot, nil},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, classifyStatus(tc.code), "status %d", tc.code)
	}
}
