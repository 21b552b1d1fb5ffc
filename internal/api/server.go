// Package api serves the game over HTTP.
// GET endpoints are read-only views of the running game.
// POST endpoints act as the player and are rate limited per IP. When an admin
// key is configured they also require it as a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/talgya/carbon-monster/internal/achievement"
	"github.com/talgya/carbon-monster/internal/building"
	"github.com/talgya/carbon-monster/internal/carbon"
	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/engine"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/npc"
	"github.com/talgya/carbon-monster/internal/persistence"
	"github.com/talgya/carbon-monster/internal/state"
	"github.com/talgya/carbon-monster/internal/victory"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
	maxBodyBytes      = 1 << 16
)

// Server serves one game over HTTP.
type Server struct {
	DB       *persistence.DB // optional; enables saves and end-of-turn autosave
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = no auth.
	Limiter  *RateLimiter

	// mu guards game; every read and action holds it.
	mu   sync.Mutex
	game *engine.Game

	hub  *hub
	http *http.Server
	stop chan struct{}
}

// NewServer wraps g. Actions default to 5 per second with a burst of 20.
func NewServer(g *engine.Game, db *persistence.DB) *Server {
	s := &Server{
		DB:      db,
		Limiter: NewRateLimiter(5, 20),
		hub:     newHub(),
	}
	s.setGame(g)
	return s
}

// setGame swaps the served game. Callers hold mu, except during construction.
func (s *Server) setGame(g *engine.Game) {
	s.game = g
	g.OnEvent(func(e engine.Event) {
		if s.game != g {
			return
		}
		s.hub.publish(Message{Type: "event", Event: &e})
	})
}

// Do runs fn with exclusive access to the served game.
func (s *Server) Do(fn func(g *engine.Game)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.game)
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/lands", s.handleLands)
		r.Get("/lands/purchasable", s.handlePurchasable)
		r.Get("/buildings", s.handleBuildings)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/fees", s.handleFees)
		r.Get("/competitors", s.handleCompetitors)
		r.Get("/events", s.handleEvents)
		r.Get("/audits", s.handleAudits)
		r.Get("/achievements", s.handleAchievements)
		r.Get("/victory", s.handleVictory)
		r.Get("/saves", s.handleSaves)
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly, s.Limiter.Limit)
			r.Post("/build", s.handleBuild)
			r.Post("/upgrade", s.handleUpgrade)
			r.Post("/sell", s.handleSell)
			r.Post("/purchase", s.handlePurchase)
			r.Post("/credits/buy", s.handleBuyCredits)
			r.Post("/credits/sell", s.handleSellCredits)
			r.Post("/end-turn", s.handleEndTurn)
			r.Post("/autoplay", s.handleAutoplay)
			r.Post("/saves/{slot}", s.handleSave)
			r.Post("/saves/{slot}/load", s.handleLoad)
			r.Delete("/saves/{slot}", s.handleDeleteSave)
		})
	})
	return r
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.http = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.stop = make(chan struct{})
	go s.Limiter.Sweep(10*time.Minute, s.stop)

	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "saves", s.DB != nil)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops a server begun with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	close(s.stop)
	return s.http.Shutdown(ctx)
}

// allowedOrigins reads CORS_ORIGINS, a comma-separated list of frontend
// origins. Localhost dev servers are always allowed.
func allowedOrigins() map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowed[origin] = true
			}
		}
	}
	return allowed
}

func corsMiddleware(next http.Handler) http.Handler {
	allowed := allowedOrigins()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- read endpoints ----

type statusResponse struct {
	GameID                string               `json:"game_id"`
	Turn                  int                  `json:"turn"`
	Year                  int                  `json:"year"`
	MaxYears              int                  `json:"max_years"`
	Money                 int                  `json:"money"`
	MoneyDisplay          string               `json:"money_display"`
	Emission              int                  `json:"emission"`
	ProjectedIncome       int                  `json:"projected_income"`
	DomesticCredits       int                  `json:"domestic_credits"`
	IntlCredits           int                  `json:"intl_credits"`
	DomesticPrice         int                  `json:"domestic_price"`
	IntlPrice             int                  `json:"intl_price"`
	MonsterAnger          float64              `json:"monster_anger"`
	BuildsThisTurn        int                  `json:"builds_this_turn"`
	MaxBuildsPerTurn      int                  `json:"max_builds_per_turn"`
	LandPurchasesThisTurn int                  `json:"land_purchases_this_turn"`
	MaxLandPurchases      int                  `json:"max_land_purchases_per_turn"`
	CreditLotSize         int                  `json:"credit_lot_size"`
	Fee                   carbon.Fee           `json:"fee"`
	Achievements          achievement.Progress `json:"achievements"`
	Status                engine.Status        `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, wd := s.game, s.game.World
	tu := g.Tables.Tunables

	writeJSON(w, statusResponse{
		GameID:                g.ID,
		Turn:                  wd.Turn(),
		Year:                  wd.Year(),
		MaxYears:              tu.MaxYears,
		Money:                 wd.Money(),
		MoneyDisplay:          humanize.Comma(int64(wd.Money())),
		Emission:              wd.Emission(),
		ProjectedIncome:       wd.ProjectedIncome(),
		DomesticCredits:       wd.DomesticCredits(),
		IntlCredits:           wd.IntlCredits(),
		DomesticPrice:         wd.DomesticPrice(),
		IntlPrice:             wd.IntlPrice(),
		MonsterAnger:          wd.MonsterAnger(),
		BuildsThisTurn:        wd.BuildsThisTurn(),
		MaxBuildsPerTurn:      tu.MaxBuildingsPerTurn,
		LandPurchasesThisTurn: wd.LandPurchasesThisTurn(),
		MaxLandPurchases:      tu.MaxLandPurchasesPerTurn,
		CreditLotSize:         tu.CreditLotSize,
		Fee:                   g.Fees.CarbonFee(config.Player),
		Achievements:          g.Achievements.Progress(),
		Status:                g.Over(),
	})
}

func (s *Server) handleLands(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lands := s.game.Lands.Lands()
	if owner := r.URL.Query().Get("owner"); owner != "" {
		id, ok := s.ownerParam(w, owner)
		if !ok {
			return
		}
		lands = s.game.Lands.LandsByOwner(id)
	}
	writeJSON(w, lands)
}

func (s *Server) handlePurchasable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game

	offers := g.Lands.Purchasable(config.Player, g.World.Occupied, g.World.Turn(), g.World.Money())
	if offers == nil {
		offers = []land.Offer{}
	}
	writeJSON(w, map[string]any{
		"can_purchase": g.World.CanPurchaseLand(),
		"offers":       offers,
	})
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners := []config.OwnerID{config.Player}
	switch q := r.URL.Query().Get("owner"); q {
	case "":
	case "all":
		owners = config.Owners
	default:
		id, ok := s.ownerParam(w, q)
		if !ok {
			return
		}
		owners = []config.OwnerID{id}
	}

	out := []building.Info{}
	for _, o := range owners {
		out = append(out, s.game.Builds.Infos(o)...)
	}
	writeJSON(w, out)
}

// handleCatalog lists the tables the player chooses from, with the tunables
// that price them.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.game.Tables
	writeJSON(w, map[string]any{
		"buildings":  t.Buildings,
		"levels":     t.Levels,
		"land_types": t.LandTypes,
		"tunables":   t.Tunables,
	})
}

type feeView struct {
	carbon.Fee
	Name string `json:"name"`
	CBAM int    `json:"cbam"`
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game

	fees := g.Fees.Fees(config.Owners)
	out := make([]feeView, 0, len(config.Owners))
	for _, o := range config.Owners {
		out = append(out, feeView{
			Fee:  fees[o],
			Name: g.Tables.OwnerName(o),
			CBAM: g.Fees.CBAMTax(o, g.World.Turn()),
		})
	}
	writeJSON(w, out)
}

type competitorView struct {
	ID        config.OwnerID `json:"id"`
	Name      string         `json:"name"`
	Money     int            `json:"money"`
	Emission  int            `json:"emission"`
	Style     string         `json:"style"`
	Policy    npc.Policy     `json:"policy,omitempty"`
	Buildings int            `json:"buildings"`
	Lands     int            `json:"lands"`
}

func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game

	var out []competitorView
	for _, id := range g.World.CompetitorIDs() {
		c, _ := g.World.Competitor(id)
		policy, _ := g.NPC.PolicyOf(id)
		out = append(out, competitorView{
			ID:        id,
			Name:      c.Name,
			Money:     c.Money,
			Emission:  c.Emission,
			Style:     c.Style,
			Policy:    policy,
			Buildings: len(g.World.BuildingsOf(id)),
			Lands:     g.Lands.CountOwned(id),
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}
	category := r.URL.Query().Get("category")

	s.mu.Lock()
	defer s.mu.Unlock()

	if category == "" {
		writeJSON(w, s.game.RecentEvents(limit))
		return
	}
	// Newest first while filtering, then restore chronological order.
	var out []engine.Event
	events := s.game.Events
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		if events[i].Category == category {
			out = append(out, events[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []engine.Event{}
	}
	writeJSON(w, out)
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"due":     s.game.Turns.ShouldAudit(),
		"history": s.game.Turns.AuditHistory(),
	})
}

type achievementView struct {
	achievement.Achievement
	Unlocked bool `json:"unlocked"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.game.Achievements

	unlocked := make(map[string]bool)
	for _, id := range t.UnlockedIDs() {
		unlocked[id] = true
	}
	all := achievement.All()
	list := make([]achievementView, 0, len(all))
	for _, a := range all {
		list = append(list, achievementView{Achievement: a, Unlocked: unlocked[a.ID]})
	}
	writeJSON(w, map[string]any{
		"progress":     t.Progress(),
		"achievements": list,
	})
}

func (s *Server) handleVictory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"status":     s.game.Over(),
		"conditions": victory.Conditions(),
		"outcome":    s.game.Outcome(),
	})
}

// ---- player actions ----

type tileRequest struct {
	Tile *int `json:"tile"`
}

type buildRequest struct {
	Tile *int                  `json:"tile"`
	Type config.BuildingTypeID `json:"type"`
}

type upgradeRequest struct {
	Tile  *int         `json:"tile"`
	Level config.Level `json:"level"`
}

type creditsRequest struct {
	Kind state.CreditKind `json:"kind"`
	Lots int              `json:"lots"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if !decode(w, r, &req) || !requireTile(w, req.Tile) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.game.Build(*req.Tile, req.Type)
	writeResult(w, res.Success, res)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if !decode(w, r, &req) || !requireTile(w, req.Tile) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.game.Upgrade(*req.Tile, req.Level)
	writeResult(w, res.Success, res)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tileRequest
	if !decode(w, r, &req) || !requireTile(w, req.Tile) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.game.Sell(*req.Tile)
	writeResult(w, res.Success, res)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req tileRequest
	if !decode(w, r, &req) || !requireTile(w, req.Tile) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.game.PurchaseLand(*req.Tile)
	writeResult(w, res.Success, res)
}

func (s *Server) handleBuyCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.game.BuyCredits(req.Kind, req.Lots)
	writeResult(w, res.Success, res)
}

func (s *Server) handleSellCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Kind != "" && req.Kind != state.Domestic {
		writeError(w, http.StatusBadRequest, "only domestic credits can be sold")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.game.SellDomesticCredits(req.Lots)
	writeResult(w, res.Success, res)
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.game.EndTurn()
	if errors.Is(err, engine.ErrGameOver) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.publish(Message{Type: "turn", Report: &report})
	s.autosave()
	writeJSON(w, report)
}

// autosave writes the game to the autosave slot. Failures are logged, not
// returned; the turn has already been played.
func (s *Server) autosave() {
	if s.DB == nil {
		return
	}
	if err := s.DB.SaveGame(persistence.AutosaveSlot, s.game); err != nil {
		slog.Error("autosave failed", "game", s.game.ID, "turn", s.game.World.Turn(), "error", err)
		return
	}
	slog.Debug("autosaved", "game", s.game.ID, "turn", s.game.World.Turn())
}

func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game.Over().Over {
		writeError(w, http.StatusConflict, engine.ErrGameOver.Error())
		return
	}
	actions := s.game.Autoplay()
	if actions == nil {
		actions = []string{}
	}
	writeJSON(w, map[string]any{"actions": actions})
}

// ---- saves ----

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "saves are disabled")
		return false
	}
	return true
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	infos, err := s.DB.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, infos)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	slot, ok := s.slotParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.DB.SaveGame(slot, s.game); err != nil {
		writeSaveError(w, err)
		return
	}
	writeJSON(w, map[string]any{"saved": true, "slot": slot, "turn": s.game.World.Turn()})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	slot, ok := s.slotParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.DB.LoadGame(slot, s.game.Tables)
	if err != nil {
		writeSaveError(w, err)
		return
	}
	s.setGame(g)
	slog.Info("game loaded", "slot", slot, "game", g.ID, "turn", g.World.Turn())
	writeJSON(w, map[string]any{"loaded": true, "slot": slot, "game_id": g.ID, "turn": g.World.Turn()})
}

func (s *Server) handleDeleteSave(w http.ResponseWriter, r *http.Request) {
	slot, ok := s.slotParam(w, r)
	if !ok {
		return
	}
	if err := s.DB.Delete(slot); err != nil {
		writeSaveError(w, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": true, "slot": slot})
}

func (s *Server) slotParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	if !s.requireDB(w) {
		return 0, false
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "slot must be an integer")
		return 0, false
	}
	return slot, true
}

func writeSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, persistence.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, persistence.ErrSlotEmpty):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, persistence.ErrIncompatible):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ---- helpers ----

func (s *Server) ownerParam(w http.ResponseWriter, v string) (config.OwnerID, bool) {
	id := config.OwnerID(v)
	if _, ok := s.game.Tables.Owner(id); !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown owner %q", v))
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func requireTile(w http.ResponseWriter, tile *int) bool {
	if tile == nil {
		writeError(w, http.StatusBadRequest, "tile is required")
		return false
	}
	return true
}

// writeResult sends a refused action as 422 with the same body shape.
func writeResult(w http.ResponseWriter, ok bool, data any) {
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		encode(w, data)
		return
	}
	writeJSON(w, data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encode(w, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	encode(w, data)
}

func encode(w http.ResponseWriter, data any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
