package httpx_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/seb7887/gofw/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func response(status int, body io.Reader) (*http.Response, *trackingBody) {
	tb := &trackingBody{Reader: body}
	return &http.Response{StatusCode: status, Body: tb}, tb
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		classified bool
	}{
		{name: "bad request", status: 400, body: `{"error":"Bad Request"}`, classified: true},
		{name: "unauthorized", status: 401, body: `{"error":"bad credentials"}`, classified: true},
		{name: "not found", status: 404, body: "Not Found", classified: true},
		{name: "teapot empty body", status: 418, body: "", classified: true},
		{name: "upper 4xx bound", status: 499, body: "x", classified: true},
		{name: "server error", status: 500, body: "boom", classified: false},
		{name: "unavailable", status: 503, body: "", classified: false},
		{name: "redirect", status: 302, body: "", classified: false},
		{name: "informational", status: 101, body: "", classified: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := response(tt.status, strings.NewReader(tt.body))

			err := httpx.Classify("PokeAPI#GetByName", resp)
			require.Error(t, err)
			assert.True(t, body.closed, "body is always closed")

			if tt.classified {
				var ce *httpx.ClassifiedError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, tt.status, ce.StatusCode)
				assert.Equal(t, tt.body, ce.Body)
				assert.Equal(t, "PokeAPI#GetByName", ce.OperationKey)
				return
			}

			var pe *httpx.ProtocolError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.body, pe.Body)
		})
	}
}

func TestClassify_SuccessLeavesBodyUnread(t *testing.T) {
	for _, status := range []int{200, 201, 204, 299} {
		resp, body := response(status, strings.NewReader("payload"))

		assert.NoError(t, httpx.Classify("op", resp))
		assert.False(t, body.closed)

		rest, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "payload", string(rest))
	}
}

func TestClassify_InvalidUTF8IsReplaced(t *testing.T) {
	resp, _ := response(400, strings.NewReader("bad \xff byte"))

	var ce *httpx.ClassifiedError
	require.ErrorAs(t, httpx.Classify("op", resp), &ce)
	assert.Equal(t, "bad \uFFFD byte", ce.Body)
}

func TestClassify_ReadFailureGivesEmptyBody(t *testing.T) {
	resp, body := response(404, failingReader{})

	var ce *httpx.ClassifiedError
	require.ErrorAs(t, httpx.Classify("op", resp), &ce)
	assert.Empty(t, ce.Body)
	assert.Equal(t, 404, ce.StatusCode)
	assert.True(t, body.closed)
}

func TestClassify_NilBody(t *testing.T) {
	var ce *httpx.ClassifiedError
	require.ErrorAs(t, httpx.Classify("op", &http.Response{StatusCode: 409}), &ce)
	assert.Empty(t, ce.Body)
}
