package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"IndexPilot/internal/model"
)

// RESTAdapter implements Adapter against the gateway's REST API.
type RESTAdapter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTAdapter creates an adapter with optional proxy support.
func NewRESTAdapter(baseURL, apiKey, proxyURL string) *RESTAdapter {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTAdapter{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (a *RESTAdapter) Name() string { return "rest-gateway" }

type wireBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (a *RESTAdapter) GetTick(symbol string) (model.Tick, error) {
	var result struct {
		Bid  float64 `json:"bid"`
		Ask  float64 `json:"ask"`
		Last float64 `json:"last"`
	}
	endpoint := fmt.Sprintf("%s/api/v1/tick?symbol=%s", a.BaseURL, symbol)
	if err := a.getJSON(endpoint, &result); err != nil {
		return model.Tick{}, fmt.Errorf("fetch tick: %w", err)
	}
	return model.Tick{Bid: result.Bid, Ask: result.Ask, Last: result.Last, Time: time.Now()}, nil
}

func (a *RESTAdapter) GetCandles(symbol string, tf model.Timeframe, count int) ([]model.Candle, error) {
	endpoint := fmt.Sprintf("%s/api/v1/candles?symbol=%s&timeframe=%s&limit=%d",
		a.BaseURL, symbol, tf, count)
	var raw []wireBar
	if err := a.getJSON(endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", tf, err)
	}
	bars := make([]model.Candle, len(raw))
	for i, b := range raw {
		bars[i] = model.Candle{
			Time:   time.Unix(b.Timestamp, 0),
			Open:   b.Open, High: b.High, Low: b.Low, Close: b.Close,
			Volume: b.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (a *RESTAdapter) GetDayReferences(symbol string) (model.DayReferences, error) {
	var refs model.DayReferences
	endpoint := fmt.Sprintf("%s/api/v1/dayrefs?symbol=%s", a.BaseURL, symbol)
	var result struct {
		PrevHigh  float64 `json:"prev_high"`
		PrevLow   float64 `json:"prev_low"`
		PrevClose float64 `json:"prev_close"`
		DayOpen   float64 `json:"day_open"`
		DayHigh   float64 `json:"day_high"`
		DayLow    float64 `json:"day_low"`
	}
	if err := a.getJSON(endpoint, &result); err != nil {
		return refs, fmt.Errorf("fetch day references: %w", err)
	}
	refs = model.DayReferences{
		PrevHigh: result.PrevHigh, PrevLow: result.PrevLow, PrevClose: result.PrevClose,
		DayOpen: result.DayOpen, DayHigh: result.DayHigh, DayLow: result.DayLow,
	}
	return refs, nil
}

func (a *RESTAdapter) GetReferencePrice(symbol string) (float64, error) {
	tick, err := a.GetTick(symbol)
	if err != nil {
		return 0, err
	}
	return tick.Last, nil
}

func (a *RESTAdapter) SendOrder(o Order) (string, error) {
	body, err := json.Marshal(map[string]any{
		"symbol":    o.Symbol,
		"direction": o.Direction,
		"quantity":  o.Quantity,
		"price":     o.Price,
		"stop":      o.Stop,
		"target":    o.Target,
		"comment":   o.Comment,
	})
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, a.BaseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)
	resp, err := a.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("send order: status %d", resp.StatusCode)
	}
	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode order ack: %w", err)
	}
	return result.Ticket, nil
}

func (a *RESTAdapter) ClosePositionByTicket(brokerID string) error {
	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/v1/positions/%s", a.BaseURL, brokerID), nil)
	if err != nil {
		return err
	}
	a.authorize(req)
	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("close position %s: %w", brokerID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("close position %s: status %d", brokerID, resp.StatusCode)
	}
	return nil
}

func (a *RESTAdapter) GetPositions(symbol string) ([]Position, error) {
	endpoint := fmt.Sprintf("%s/api/v1/positions?symbol=%s", a.BaseURL, symbol)
	var raw []struct {
		ID        string  `json:"id"`
		Symbol    string  `json:"symbol"`
		Direction string  `json:"direction"`
		Quantity  float64 `json:"quantity"`
		Entry     float64 `json:"entry"`
		Stop      float64 `json:"stop"`
		Target    float64 `json:"target"`
	}
	if err := a.getJSON(endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	positions := make([]Position, len(raw))
	for i, p := range raw {
		positions[i] = Position{
			BrokerID: p.ID, Symbol: p.Symbol,
			Direction: model.Direction(p.Direction),
			Quantity:  p.Quantity, Entry: p.Entry, Stop: p.Stop, Target: p.Target,
		}
	}
	return positions, nil
}

func (a *RESTAdapter) ResolveOpenPositionTicket(symbol string) (string, error) {
	positions, err := a.GetPositions(symbol)
	if err != nil {
		return "", err
	}
	if len(positions) == 0 {
		return "", nil
	}
	return positions[0].BrokerID, nil
}

func (a *RESTAdapter) authorize(req *http.Request) {
	if a.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}
}

func (a *RESTAdapter) getJSON(endpoint string, out any) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	a.authorize(req)
	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
