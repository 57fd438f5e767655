// Package dhlottery scrapes the latest 6/45 draw from the official lottery site.
// The main page carries the round number, the draw date and seven balls (six main
// numbers followed by the bonus); the client parses those out of the HTML and
// returns them as a models.PublishedDraw.
package dhlottery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
)

// DefaultURL is the lottery operator's main page.
const DefaultURL = "https://dhlottery.co.kr/common.do?method=main"

const userAgent = "Mozilla/5.0 (compatible; lottoracle/1.0)"

// Selectors on the main page.
const (
	roundSelector = "strong#lottoDrwNo"
	dateSelector  = "p.desc"
	ballSelector  = "span.ball_645"
)

var kstZone = time.FixedZone("KST", 9*60*60)

// dateRe matches "(2024년 01월 06일 추첨)".
var dateRe = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`)

// ClientConfig holds HTTP tuning parameters.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client fetches draw results from the lottery site.
type Client struct {
	url            string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new lottery site client
func NewClient(url string, timeout time.Duration, cfg ClientConfig) *Client {
	if url == "" {
		url = DefaultURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}

	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchLatest retrieves and parses the most recent draw.
func (c *Client) FetchLatest(ctx context.Context) (*models.PublishedDraw, error) {
	resp, err := c.doRequest(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest draw: %w", err)
	}
	defer resp.Body.Close()

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect page encoding: %w", err)
	}

	published, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse latest draw: %w", err)
	}

	logger.Debug("Fetched round %d (%s): %v + %d",
		published.Round, published.Draw.DateString(), published.Draw.Numbers, published.Draw.Bonus)
	return published, nil
}

// Parse extracts the latest draw from a main-page HTML document.
func Parse(r io.Reader) (*models.PublishedDraw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	roundText := strings.TrimSpace(doc.Find(roundSelector).First().Text())
	round, err := strconv.Atoi(roundText)
	if err != nil {
		return nil, fmt.Errorf("invalid round %q: %w", roundText, err)
	}

	date, err := parseDrawDate(doc.Find(dateSelector).First().Text())
	if err != nil {
		return nil, err
	}

	balls := make([]int, 0, models.NumbersPerDraw+1)
	var ballErr error
	doc.Find(ballSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		n, err := strconv.Atoi(text)
		if err != nil {
			ballErr = fmt.Errorf("invalid ball %d %q: %w", i+1, text, err)
			return false
		}
		balls = append(balls, n)
		return len(balls) < models.NumbersPerDraw+1
	})
	if ballErr != nil {
		return nil, ballErr
	}
	if len(balls) < models.NumbersPerDraw+1 {
		return nil, fmt.Errorf("expected %d balls, found %d", models.NumbersPerDraw+1, len(balls))
	}

	var numbers [models.NumbersPerDraw]int
	copy(numbers[:], balls[:models.NumbersPerDraw])
	draw := models.NewDraw(date, numbers, balls[models.NumbersPerDraw])
	if err := draw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid draw for round %d: %w", round, err)
	}

	return &models.PublishedDraw{Round: round, Draw: draw}, nil
}

func parseDrawDate(text string) (time.Time, error) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, fmt.Errorf("no draw date in %q", strings.TrimSpace(text))
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid draw date %q", m[0])
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, kstZone), nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "text/html")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if sleepErr := c.backoff(ctx, i); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if sleepErr := c.backoff(ctx, i); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	if attempt == c.maxRetries-1 {
		return nil
	}

	timer := time.NewTimer(c.retryDelayBase * time.Duration(attempt+1))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
