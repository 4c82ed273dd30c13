package macro

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"IndexPilot/internal/model"
)

// Engine is the external long-form macro score aggregator. The core
// consumes its final score once per cycle and never recomputes the
// per-item breakdown itself.
type Engine interface {
	Analyze() (model.MacroReading, error)
}

// RESTEngine reads the macro score from the aggregator service.
type RESTEngine struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewRESTEngine(baseURL, apiKey string) *RESTEngine {
	return &RESTEngine{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *RESTEngine) Analyze() (model.MacroReading, error) {
	req, err := http.NewRequest(http.MethodGet, e.BaseURL+"/api/v1/macro/analyze", nil)
	if err != nil {
		return model.MacroReading{}, err
	}
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return model.MacroReading{}, fmt.Errorf("macro analyze: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.MacroReading{}, fmt.Errorf("macro analyze: status %d", resp.StatusCode)
	}
	var result struct {
		FinalScore int    `json:"final_score"`
		Signal     string `json:"signal"`
		Confidence int    `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.MacroReading{}, fmt.Errorf("decode macro: %w", err)
	}
	return model.MacroReading{
		Score:      result.FinalScore,
		Signal:     model.Direction(result.Signal),
		Confidence: result.Confidence,
	}, nil
}

// StaticEngine returns a fixed reading (development and tests).
type StaticEngine struct {
	mu      sync.Mutex
	Reading model.MacroReading
	Err     error
}

func (e *StaticEngine) Analyze() (model.MacroReading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Reading, e.Err
}

// Set replaces the fixed reading.
func (e *StaticEngine) Set(r model.MacroReading) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Reading = r
}
