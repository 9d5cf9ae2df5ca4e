package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "default", User: "default"}
	for _, opt := range []ClientOption{
		WithAddress("ch.local", 9440),
		WithDatabase("forecasts"),
		WithCredentials("svc", "p@ss"),
		WithTimeouts(2*time.Second, 0),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(time.Minute),
	} {
		opt(&cfg)
	}

	u, err := url.Parse(BuildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9440", u.Host)
	assert.Equal(t, "/forecasts", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "2s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "60", u.Query().Get("max_execution_time"))
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))
	assert.False(t, u.Query().Has("read_timeout"))
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg := ClientConfig{Host: "h", Port: 8123, Database: "d", User: "u"}
	WithHTTP(true)(&cfg)
	u, err := url.Parse(BuildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
}
