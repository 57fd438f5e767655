package dhlottery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainPage = `<!DOCTYPE html>
<html lang="ko">
<head><meta charset="UTF-8"><title>동행복권</title></head>
<body>
<div class="content">
  <h3><strong id="lottoDrwNo">1102</strong>회 당첨결과</h3>
  <p class="desc">(2024년 01월 13일 추첨)</p>
  <div class="win_result">
    <div class="num win">
      <span class="ball_645 lrg ball1">6</span>
      <span class="ball_645 lrg ball2">14</span>
      <span class="ball_645 lrg ball3">19</span>
      <span class="ball_645 lrg ball3">21</span>
      <span class="ball_645 lrg ball4">23</span>
      <span class="ball_645 lrg ball5">31</span>
    </div>
    <div class="num bonus">
      <span class="ball_645 lrg ball2">13</span>
    </div>
  </div>
  <div class="previous">
    <span class="ball_645 sml">1</span>
  </div>
</div>
</body>
</html>`

func TestParse(t *testing.T) {
	published, err := Parse(strings.NewReader(mainPage))
	require.NoError(t, err)

	assert.Equal(t, 1102, published.Round)
	assert.Equal(t, "2024-01-13", published.Draw.DateString())
	assert.Equal(t, [6]int{6, 14, 19, 21, 23, 31}, published.Draw.Numbers)
	assert.Equal(t, 13, published.Draw.Bonus)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{
			name: "missing round",
			html: strings.Replace(mainPage, `<strong id="lottoDrwNo">1102</strong>`, "", 1),
		},
		{
			name: "missing date",
			html: strings.Replace(mainPage, "(2024년 01월 13일 추첨)", "(추첨)", 1),
		},
		{
			name: "too few balls",
			html: `<strong id="lottoDrwNo">1</strong><p class="desc">(2002년 12월 07일 추첨)</p>
<span class="ball_645">10</span><span class="ball_645">23</span>`,
		},
		{
			name: "non-numeric ball",
			html: strings.Replace(mainPage, `ball1">6<`, `ball1">six<`, 1),
		},
		{
			name: "duplicate ball",
			html: strings.Replace(mainPage, `ball2">14<`, `ball2">6<`, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.html))
			assert.Error(t, err)
		})
	}
}

func TestFetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("method"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		_, _ = w.Write([]byte(mainPage))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/common.do?method=main", 5*time.Second, ClientConfig{})
	published, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1102, published.Round)
	assert.Equal(t, [6]int{6, 14, 19, 21, 23, 31}, published.Draw.Numbers)
}

func TestFetchLatest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(mainPage))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, ClientConfig{MaxRetries: 3, RetryDelayBase: time.Millisecond})
	published, err := c.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1102, published.Round)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchLatest_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, ClientConfig{MaxRetries: 2, RetryDelayBase: time.Millisecond})
	_, err := c.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchLatest_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, ClientConfig{MaxRetries: 3, RetryDelayBase: time.Millisecond})
	_, err := c.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", time.Second, ClientConfig{})
	assert.Equal(t, DefaultURL, c.url)
	assert.Equal(t, 3, c.maxRetries)
	assert.Equal(t, time.Second, c.retryDelayBase)
}
