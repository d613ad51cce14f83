package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/masjidconnect/reminder-service/internal/config"
	"github.com/masjidconnect/reminder-service/internal/domain"
)

// requestDateLayout is the DD-MM-YYYY path segment the timetable API expects.
const requestDateLayout = "02-01-2006"

// AladhanClient implements domain.TimetableProvider against the Aladhan API.
type AladhanClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewAladhanClient(cfg config.PrayerTimesConfig, logger *slog.Logger) *AladhanClient {
	if logger == nil {
		logger = slog.Default()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &AladhanClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

type aladhanEnvelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type hijriBlock struct {
	Day   string `json:"day"`
	Month struct {
		En string `json:"en"`
	} `json:"month"`
	Year string `json:"year"`
}

func (h *hijriBlock) String() string {
	if h == nil || h.Day == "" {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", h.Day, h.Month.En, h.Year))
}

type timingsData struct {
	Timings struct {
		Fajr      string `json:"Fajr"`
		Sunrise   string `json:"Sunrise"`
		Dhuhr     string `json:"Dhuhr"`
		Asr       string `json:"Asr"`
		Maghrib   string `json:"Maghrib"`
		Isha      string `json:"Isha"`
		Lastthird string `json:"Lastthird"`
	} `json:"timings"`
	Date struct {
		Hijri *hijriBlock `json:"hijri"`
	} `json:"date"`
}

// Timings fetches the computed timetable for one day and location.
func (c *AladhanClient) Timings(ctx context.Context, req domain.TimetableRequest) (*domain.Timetable, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	params.Set("method", strconv.Itoa(req.Method))
	params.Set("school", strconv.Itoa(req.School))

	raw, err := c.get(ctx, "/timings/"+req.Date.Format(requestDateLayout), params)
	if err != nil {
		return nil, err
	}

	var data timingsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode timings: %w", err)
	}

	t := data.Timings
	table := &domain.Timetable{
		Adhan: domain.AdhanTimes{
			Fajr:    stripZone(t.Fajr),
			Sunrise: stripZone(t.Sunrise),
			Dhuhr:   stripZone(t.Dhuhr),
			Asr:     stripZone(t.Asr),
			Maghrib: stripZone(t.Maghrib),
			Isha:    stripZone(t.Isha),
		},
		LastThird: stripZone(t.Lastthird),
		HijriDate: data.Date.Hijri.String(),
	}
	return table, nil
}

// HijriDate converts a Gregorian date into its Hijri rendering.
func (c *AladhanClient) HijriDate(ctx context.Context, date time.Time) (string, error) {
	raw, err := c.get(ctx, "/gToH/"+date.Format(requestDateLayout), nil)
	if err != nil {
		return "", err
	}

	var data struct {
		Hijri *hijriBlock `json:"hijri"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("decode hijri date: %w", err)
	}
	return data.Hijri.String(), nil
}

// get performs a rate-limited GET and unwraps the response envelope. A body
// code other than 200 is a failure even when the HTTP status is 200.
func (c *AladhanClient) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d: %s", domain.ErrProviderUnavailable, path, resp.StatusCode, truncate(body, 200))
	}

	var env aladhanEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != http.StatusOK {
		c.logger.Warn("timetable provider rejected request", "path", path, "code", env.Code, "status", env.Status)
		return nil, fmt.Errorf("%w: %s answered code %d (%s)", domain.ErrProviderUnavailable, path, env.Code, env.Status)
	}
	return env.Data, nil
}

// stripZone drops the "(SAST)" style suffix some responses carry.
func stripZone(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
