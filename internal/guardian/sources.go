package guardian

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event is one economic-calendar entry.
type Event struct {
	Name   string
	Time   time.Time
	Impact string
}

// Calendar supplies imminent or just-released high-impact economic
// events.
type Calendar interface {
	HighImpact(now time.Time) ([]Event, error)
}

// Sentiment supplies a non-empty description when market sentiment is
// at an extreme.
type Sentiment interface {
	Extreme() (string, error)
}

// RESTCalendar polls an economic-calendar endpoint.
type RESTCalendar struct {
	BaseURL string
	Client  *http.Client
}

func NewRESTCalendar(baseURL string) *RESTCalendar {
	return &RESTCalendar{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *RESTCalendar) HighImpact(now time.Time) ([]Event, error) {
	endpoint := fmt.Sprintf("%s/api/v1/calendar?impact=high&from=%d", c.BaseURL, now.Add(-time.Hour).Unix())
	resp, err := c.Client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch calendar: status %d", resp.StatusCode)
	}
	var raw []struct {
		Name      string `json:"name"`
		Timestamp int64  `json:"timestamp"`
		Impact    string `json:"impact"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	events := make([]Event, len(raw))
	for i, e := range raw {
		events[i] = Event{Name: e.Name, Time: time.Unix(e.Timestamp, 0), Impact: e.Impact}
	}
	return events, nil
}

// RESTSentiment polls a sentiment-extremes endpoint.
type RESTSentiment struct {
	BaseURL string
	Client  *http.Client
}

func NewRESTSentiment(baseURL string) *RESTSentiment {
	return &RESTSentiment{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *RESTSentiment) Extreme() (string, error) {
	resp, err := s.Client.Get(s.BaseURL + "/api/v1/sentiment")
	if err != nil {
		return "", fmt.Errorf("fetch sentiment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch sentiment: status %d", resp.StatusCode)
	}
	var result struct {
		Extreme string `json:"extreme"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode sentiment: %w", err)
	}
	return result.Extreme, nil
}

// StaticCalendar serves a fixed event list (development and tests).
type StaticCalendar struct {
	Events []Event
	Err    error
}

func (c *StaticCalendar) HighImpact(time.Time) ([]Event, error) { return c.Events, c.Err }

// StaticSentiment serves a fixed extreme (development and tests).
type StaticSentiment struct {
	Value string
	Err   error
}

func (s *StaticSentiment) Extreme() (string, error) { return s.Value, s.Err }
