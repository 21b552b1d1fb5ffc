package steward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ActionResult is a player action response. Refused actions carry Success false.
type ActionResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Amount  int      `json:"amount,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// TurnResult mirrors the parts of POST /api/v1/end-turn the steward reads.
type TurnResult struct {
	Turn       int `json:"turn"`
	Year       int `json:"year"`
	Settlement struct {
		Income    int `json:"income"`
		CarbonFee int `json:"carbon_fee"`
	} `json:"settlement"`
	Status struct {
		Over   bool   `json:"over"`
		Reason string `json:"reason"`
	} `json:"status"`
}

// Actor performs player actions via the API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL. adminKey may be empty.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:    baseURL,
		AdminKey:   adminKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Act carries out d. ActionNone is a no-op.
func (a *Actor) Act(ctx context.Context, d Decision) (*ActionResult, error) {
	var res ActionResult
	switch d.Action {
	case ActionNone:
		return &ActionResult{Success: true, Message: "nothing to do"}, nil
	case ActionCredits:
		body := map[string]any{"kind": "domestic", "lots": d.Lots}
		if err := a.post(ctx, "/api/v1/credits/buy", body, &res); err != nil {
			return nil, err
		}
	case ActionDevelop:
		if err := a.post(ctx, "/api/v1/autoplay", nil, &res); err != nil {
			return nil, err
		}
		res.Success = true
		res.Message = fmt.Sprintf("%d actions", len(res.Actions))
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
	return &res, nil
}

// EndTurn resolves the current year.
func (a *Actor) EndTurn(ctx context.Context) (*TurnResult, error) {
	var res TurnResult
	if err := a.post(ctx, "/api/v1/end-turn", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// post sends body as JSON. 200 and 422 both decode into target; a 422 is a
// refused action, not a transport failure.
func (a *Actor) post(ctx context.Context, path string, body, target any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.AdminKey)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
