package apigw

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWriteBlob(t *testing.T) {
	p := NewRequestParser()
	r := httptest.NewRequest("POST", "/v1/blobs", strings.NewReader(`{"id":"a","data":"QUJD"}`))
	r.Header.Set("Content-Type", "application/json")

	req, err := p.Parse(r)
	require.NoError(t, err)
	assert.Equal(t, WriteBlob, req.Operation)
	assert.Equal(t, "application/json", req.ContentType)
	assert.JSONEq(t, `{"id":"a","data":"QUJD"}`, string(req.Body))
	assert.Empty(t, req.Bearer)
}

func TestParseReadBlob(t *testing.T) {
	p := NewRequestParser()
	r := httptest.NewRequest("GET", "/v1/blobs/hello.txt", nil)

	req, err := p.Parse(r)
	require.NoError(t, err)
	assert.Equal(t, ReadBlob, req.Operation)
	assert.Equal(t, "hello.txt", req.ID)
}

func TestParseReadBlobEscapedID(t *testing.T) {
	p := NewRequestParser()
	r := httptest.NewRequest("GET", "/v1/blobs/dir%2Ffile", nil)

	req, err := p.Parse(r)
	require.NoError(t, err)
	assert.Equal(t, "dir/file", req.ID)
}

func TestParseRejectsUnknownRoutes(t *testing.T) {
	p := NewRequestParser()

	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{"wrong prefix", "GET", "/v2/blobs/x"},
		{"missing id", "GET", "/v1/blobs"},
		{"missing id trailing slash", "GET", "/v1/blobs/"},
		{"unsupported method", "DELETE", "/v1/blobs/x"},
		{"post with id", "POST", "/v1/blobs/x"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, tc.path, nil)
			_, err := p.Parse(r)
			assert.Error(t, err)
		})
	}
}

func TestParseBearer(t *testing.T) {
	testCases := []struct {
		header   string
		expected string
	}{
		{"Bearer tok-A", "tok-A"},
		{"Bearer    padded-token   ", "padded-token"},
		{"Bearer", ""},
		{"Basic dXNlcg==", ""},
		{"bearer lowercase-scheme", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.header, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseBearer(tc.header))
		})
	}
}

func TestParseBearerFromRequest(t *testing.T) {
	p := NewRequestParser()
	r := httptest.NewRequest("GET", "/v1/blobs/x", nil)
	r.Header.Set("Authorization", "Bearer tok-42")

	req, err := p.Parse(r)
	require.NoError(t, err)
	assert.Equal(t, "tok-42", req.Bearer)
}
