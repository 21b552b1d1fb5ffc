// Package steward plays the player's seat over the HTTP API.
// Each cycle it observes the game, triages the carbon position, decides on at
// most one action and then ends the turn.
package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/carbon-monster/internal/config"
)

// Snapshot holds everything collected during one observation.
type Snapshot struct {
	Status      GameStatus       `json:"status"`
	Fees        []FeeInfo        `json:"fees"`
	Competitors []CompetitorInfo `json:"competitors"`
	Tunables    config.Tunables  `json:"tunables"`
}

// GameStatus mirrors GET /api/v1/status.
type GameStatus struct {
	GameID          string  `json:"game_id"`
	Turn            int     `json:"turn"`
	Year            int     `json:"year"`
	MaxYears        int     `json:"max_years"`
	Money           int     `json:"money"`
	Emission        int     `json:"emission"`
	ProjectedIncome int     `json:"projected_income"`
	DomesticCredits int     `json:"domestic_credits"`
	IntlCredits     int     `json:"intl_credits"`
	DomesticPrice   int     `json:"domestic_price"`
	IntlPrice       int     `json:"intl_price"`
	MonsterAnger    float64 `json:"monster_anger"`
	CreditLotSize   int     `json:"credit_lot_size"`
	Status          struct {
		Over   bool   `json:"over"`
		Reason string `json:"reason"`
	} `json:"status"`
}

// FeeInfo mirrors items from GET /api/v1/fees.
type FeeInfo struct {
	Owner      config.OwnerID `json:"owner"`
	Name       string         `json:"name"`
	Chargeable int            `json:"chargeable"`
	CarbonFee  int            `json:"carbon_fee"`
	CBAM       int            `json:"cbam"`
}

// CompetitorInfo mirrors items from GET /api/v1/competitors.
type CompetitorInfo struct {
	ID       config.OwnerID `json:"id"`
	Name     string         `json:"name"`
	Money    int            `json:"money"`
	Emission int            `json:"emission"`
}

// PlayerFee returns the player's entry, or a zero fee if absent.
func (s *Snapshot) PlayerFee() FeeInfo {
	for _, f := range s.Fees {
		if f.Owner == config.Player {
			return f
		}
	}
	return FeeInfo{Owner: config.Player}
}

// Observer fetches game state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Observe fetches status, fees, competitors and the tunables.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/fees", &snap.Fees); err != nil {
		return nil, fmt.Errorf("fetch fees: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/competitors", &snap.Competitors); err != nil {
		return nil, fmt.Errorf("fetch competitors: %w", err)
	}
	var catalog struct {
		Tunables config.Tunables `json:"tunables"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/catalog", &catalog); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	snap.Tunables = catalog.Tunables

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
