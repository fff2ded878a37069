package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coinbase/chaingateway/internal/utils/testutil"
)

func TestReverseProxy(t *testing.T) {
	require := testutil.Require(t)

	var upstreamPath string
	var upstreamQuery string
	var upstreamHeader http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		upstreamPath = request.URL.Path
		upstreamQuery = request.URL.RawQuery
		upstreamHeader = request.Header.Clone()
		_, _ = writer.Write([]byte(`{"data":{}}`))
	}))
	defer upstream.Close()

	proxy, err := NewReverseProxy("/v1/graphql", upstream.URL+"/graphql", http.Header{
		"Content-Type": []string{"application/json"},
	})
	require.NoError(err)
	require.Equal("/v1/graphql", proxy.Path())

	request := httptest.NewRequest(http.MethodGet, "/v1/graphql?query=%7Bblock%7Bnumber%7D%7D", nil)
	request.Header.Set("Authorization", "Bearer secret")
	recorder := httptest.NewRecorder()
	proxy.Handler().ServeHTTP(recorder, request)

	require.Equal(http.StatusOK, recorder.Code)
	require.Equal(`{"data":{}}`, recorder.Body.String())

	// The inbound path is replaced by the upstream path, while the query is kept.
	require.Equal("/graphql", upstreamPath)
	require.Equal("query=%7Bblock%7Bnumber%7D%7D", upstreamQuery)

	// Only the hardcoded header is forwarded.
	require.Equal("application/json", upstreamHeader.Get("Content-Type"))
	require.Empty(upstreamHeader.Get("Authorization"))
}

func TestReverseProxy_UnauthorizedMappedToUnavailable(t *testing.T) {
	require := testutil.Require(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	proxy, err := NewReverseProxy("/v1/graphql", upstream.URL+"/graphql", http.Header{
		"Content-Type": []string{"application/json"},
	})
	require.NoError(err)

	request := httptest.NewRequest(http.MethodPost, "/v1/graphql", nil)
	recorder := httptest.NewRecorder()
	proxy.Handler().ServeHTTP(recorder, request)

	require.Equal(http.StatusServiceUnavailable, recorder.Code)
}

func TestReverseProxy_InvalidTarget(t *testing.T) {
	require := testutil.Require(t)

	_, err := NewReverseProxy("/v1/graphql", "://invalid", http.Header{})
	require.Error(err)
}
