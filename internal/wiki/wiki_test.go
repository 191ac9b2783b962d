package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, hourly string, fail string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mapping", func(w http.ResponseWriter, r *http.Request) {
		if fail == "/mapping" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"id":2,"name":"Cannonball","limit":11000},{"id":4151,"name":"Abyssal whip","limit":70},{"id":385,"name":"Shark"}]`))
	})
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		if fail == "/latest" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":{"2":{"high":180,"highTime":1700000000,"low":175,"lowTime":1700000010},"385":{"high":900,"highTime":null,"low":880,"lowTime":1700000000},"99999":{"high":1,"low":1}}}`))
	})
	mux.HandleFunc("/1h", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hourly))
	})
	mux.HandleFunc("/5m", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"2":{"avgHighPrice":181,"highPriceVolume":5000,"avgLowPrice":176,"lowPriceVolume":4000}},"timestamp":1700000000}`))
	})
	return httptest.NewServer(mux)
}

func TestFetchSnapshot_NormalizesObjectPayloads(t *testing.T) {
	srv := newFeedServer(t, `{"data":{"2":{"avgHighPrice":182,"highPriceVolume":60000,"avgLowPrice":177,"lowPriceVolume":50000},"385":{"avgLowPrice":870,"lowPriceVolume":1200}}}`, "")
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, 4)
	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Items, 3)
	assert.Equal(t, int64(11000), snap.Items[2].TradeLimit())
	assert.Equal(t, int64(0), snap.Items[385].TradeLimit(), "missing limit resolves to 0")

	require.Contains(t, snap.Latest, 2)
	assert.Equal(t, int64(175), snap.Latest[2].Low)
	assert.Equal(t, int64(0), snap.Latest[385].HighTime, "null timestamp decodes as zero")

	assert.Equal(t, int64(60000), snap.Hourly[2].Volume())
	assert.Equal(t, int64(1200), snap.Hourly[385].Volume(), "falls back to low-side volume")
	assert.Equal(t, int64(5000), snap.FiveMin[2].Volume())

	assert.Equal(t, []int{2, 385}, snap.CandidateIDs(), "ids without a catalog entry are not candidates")
}

func TestFetchSnapshot_NormalizesArrayPayloads(t *testing.T) {
	srv := newFeedServer(t, `{"data":[{"id":2,"avgHighPrice":182,"volume":777},{"avgHighPrice":1},null]}`, "")
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, 4)
	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Hourly, 1, "records without id are dropped")
	assert.Equal(t, int64(777), snap.Hourly[2].Volume(), "generic volume field is the last fallback")
	assert.Equal(t, 2, snap.Hourly[2].ItemID)
}

func TestFetchSnapshot_AnyFailureAborts(t *testing.T) {
	srv := newFeedServer(t, `{"data":{}}`, "/latest")
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, 4)
	snap, err := c.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, ErrFeedUnavailable))
	assert.Contains(t, err.Error(), "/latest")
}

func TestIntervalStatVolume_PresentZeroWins(t *testing.T) {
	var st IntervalStat
	require.NoError(t, json.Unmarshal([]byte(`{"highPriceVolume":0,"lowPriceVolume":50}`), &st))
	assert.Equal(t, int64(0), st.Volume())

	assert.Equal(t, int64(0), IntervalStat{}.Volume())
}

func TestFetchSeries_CachesByItemAndTimestep(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/timeseries", r.URL.Path)
		w.Write([]byte(`{"data":[{"timestamp":200,"avgHighPrice":10},{"timestamp":100,"avgHighPrice":null,"avgLowPrice":8}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, 4)
	ctx := context.Background()

	pts, err := c.FetchSeries(ctx, 2, "5m")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, int64(100), pts[0].Timestamp, "points are ordered by timestamp")
	assert.Nil(t, pts[0].AvgHighPrice)

	_, err = c.FetchSeries(ctx, 2, "5m")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second call served from cache")

	_, err = c.FetchSeries(ctx, 2, "1h")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "different timestep is a different key")
	assert.Equal(t, 2, c.SeriesCache().Len())
}

func TestFetchSeries_FailureNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, 4)
	_, err := c.FetchSeries(context.Background(), 2, "5m")
	require.Error(t, err)
	assert.Equal(t, 0, c.SeriesCache().Len())

	_, err = c.FetchSeries(context.Background(), 2, "2m")
	require.Error(t, err, "unknown timestep rejected")
}

func TestSeriesCacheClear(t *testing.T) {
	sc := NewSeriesCache()
	sc.Put(1, "5m", nil)
	sc.Put(1, "1h", nil)
	assert.Equal(t, 2, sc.Clear())
	_, ok := sc.Get(1, "5m")
	assert.False(t, ok)
}
