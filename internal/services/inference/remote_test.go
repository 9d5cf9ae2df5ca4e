package inference

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
)

func TestRemoteRegressorRoundTrip(t *testing.T) {
	var seen predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_ = json.NewEncoder(w).Encode(predictResponse{Predictions: []float64{1.5, 2.5}})
	}))
	defer srv.Close()

	rr := NewRemoteRegressor("gru", srv.URL, time.Second)
	got, err := rr.PredictSequences(context.Background(), [][][]float64{{{1}}, {{2}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, got)
	assert.Equal(t, "gru", seen.Model)
}

func TestRemoteRegressorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[1]}`))
	}))
	defer srv.Close()

	rr := NewRemoteRegressor("lgbm", srv.URL, time.Second)
	_, err := rr.Predict(context.Background(), [][]float64{{1}, {2}})
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestRemoteRegressorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rr := NewRemoteRegressor("meta", srv.URL, time.Second)
	_, err := rr.Predict(context.Background(), [][]float64{{1, 2}})
	assert.ErrorIs(t, err, models.ErrComputation)
	var statusErr *xhttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestRemoteRegressorKeepsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[1]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rr := NewRemoteRegressor("lgbm", srv.URL, time.Second)
	_, err := rr.Predict(ctx, [][]float64{{1}})
	assert.ErrorIs(t, err, models.ErrComputation)
	assert.ErrorIs(t, err, context.Canceled)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = NewRemoteRegressor("lgbm", url, time.Second).Predict(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, models.ErrComputation)
	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
}
