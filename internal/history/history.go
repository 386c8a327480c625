package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/version"
)

const (
	// DefaultBaseURL is the ThingSpeak API root.
	DefaultBaseURL = "https://api.thingspeak.com"

	// DefaultResults is how many feed entries are requested.
	DefaultResults = 20

	// TimeLayout renders watering times in the table.
	TimeLayout = "02/01/2006 15:04:05"
)

// ErrNotConfigured is returned when no channel id is set.
var ErrNotConfigured = errors.New("watering history channel not configured")

// Reason codes written by the controller to field3.
const (
	ReasonWaterNow    = "water-now"
	ReasonLowSoilHumi = "low-soil-humi"
	ReasonAlarm       = "alarm"
	ReasonNone        = "none"
)

var reasonLabels = map[string]string{
	ReasonWaterNow:    "Regar agora",
	ReasonLowSoilHumi: "Umidade baixa",
	ReasonAlarm:       "Relógio",
	ReasonNone:        "???",
}

// ReasonLabel maps a reason code to its display text.
func ReasonLabel(code string) string {
	if label, ok := reasonLabels[code]; ok {
		return label
	}
	return "desconhecido"
}

// Field is a feed value. ThingSpeak sends strings, but numbers and null are
// accepted too.
type Field string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = Field(n.String())
		return nil
	}
}

// Feed is one raw channel entry.
type Feed struct {
	CreatedAt string `json:"created_at"`
	EntryID   int    `json:"entry_id"`
	Field1    Field  `json:"field1"` // watering start
	Field2    Field  `json:"field2"` // duration in ms
	Field3    Field  `json:"field3"` // reason code
}

// FeedsResponse is the body of feeds.json.
type FeedsResponse struct {
	Feeds []Feed `json:"feeds"`
}

// Entry is one watering event.
type Entry struct {
	At       time.Time // zero if field1 could not be parsed
	RawTime  string
	Reason   string
	Duration time.Duration
}

// NewEntry converts a feed row.
func NewEntry(f Feed) Entry {
	e := Entry{RawTime: string(f.Field1), Reason: string(f.Field3)}
	e.At = parseTime(string(f.Field1))
	if e.At.IsZero() {
		e.At = parseTime(f.CreatedAt)
	}
	if ms, err := strconv.ParseFloat(string(f.Field2), 64); err == nil {
		e.Duration = time.Duration(ms * float64(time.Millisecond))
	}
	return e
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0)
	}
	return time.Time{}
}

// TimeLabel renders the start time in local time, or the raw text if it
// could not be parsed.
func (e Entry) TimeLabel() string {
	if e.At.IsZero() {
		return e.RawTime
	}
	return e.At.Local().Format(TimeLayout)
}

// ReasonLabel renders the reason.
func (e Entry) ReasonLabel() string {
	return ReasonLabel(e.Reason)
}

// DurationLabel renders the duration in seconds, e.g. "5s" or "2.5s".
func (e Entry) DurationLabel() string {
	return strconv.FormatFloat(e.Duration.Seconds(), 'f', -1, 64) + "s"
}

// Client reads the watering channel.
type Client struct {
	BaseURL    string
	ChannelID  string
	ReadKey    string
	Results    int
	HTTPClient *http.Client
}

// NewClient creates a client for a channel.
func NewClient(channelID, readKey string) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		ChannelID: channelID,
		ReadKey:   readKey,
		Results:   DefaultResults,
		HTTPClient: &http.Client{
			Timeout: device.DefaultTimeout,
		},
	}
}

// FeedURL builds the feeds.json URL.
func (c *Client) FeedURL() string {
	q := url.Values{}
	if c.ReadKey != "" {
		q.Set("api_key", c.ReadKey)
	}
	results := c.Results
	if results <= 0 {
		results = DefaultResults
	}
	q.Set("results", strconv.Itoa(results))
	return fmt.Sprintf("%s/channels/%s/feeds.json?%s", c.BaseURL, url.PathEscape(c.ChannelID), q.Encode())
}

// Fetch returns the latest watering events, newest first.
func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	if c.ChannelID == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FeedURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, device.NewNetworkError("failed to read watering history", err)
	}
	defer func() { _ = resp.Body.Close() }()

	logging.LogHTTPRequest(req.URL.Host, req.Method, req.URL.Path, resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return nil, device.NewHTTPError(resp.StatusCode, "watering history request failed")
	}

	var body FeedsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, device.NewDecodeError("invalid watering history response", err)
	}

	entries := make([]Entry, 0, len(body.Feeds))
	for i := len(body.Feeds) - 1; i >= 0; i-- {
		entries = append(entries, NewEntry(body.Feeds[i]))
	}
	logging.Debug("Watering history loaded", zap.Int("entries", len(entries)))
	return entries, nil
}
