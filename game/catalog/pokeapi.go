package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/studymon/server/cache"
	"github.com/studymon/server/game/battle"
	"go.uber.org/zap"
)

// PokeAPIConfig configures the PokeAPI learnset provider.
type PokeAPIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxEntries    int // move entries inspected per species
	MaxCandidates int // eligible moves kept per species
	DefaultPP     int
	CacheTTL      time.Duration
}

// PokeAPILearnset fetches learnable moves from a PokeAPI-compatible service
// and caches the eligible candidates per species.
type PokeAPILearnset struct {
	cfg    PokeAPIConfig
	client *http.Client
	cache  cache.Cache
	logger *zap.Logger
}

// NewPokeAPILearnset creates the provider. c may be nil to disable caching.
func NewPokeAPILearnset(cfg PokeAPIConfig, c cache.Cache, logger *zap.Logger) *PokeAPILearnset {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://pokeapi.co/api/v2"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 50
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 20
	}
	if cfg.DefaultPP <= 0 {
		cfg.DefaultPP = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PokeAPILearnset{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  c,
		logger: logger,
	}
}

type apiRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type apiPokemon struct {
	ID    int64 `json:"id"`
	Moves []struct {
		Move apiRef `json:"move"`
	} `json:"moves"`
}

type apiMove struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Power       *int   `json:"power"`
	PP          *int   `json:"pp"`
	Accuracy    *int   `json:"accuracy"`
	Type        apiRef `json:"type"`
	DamageClass apiRef `json:"damage_class"`
}

func learnsetKey(speciesID int64) string {
	return fmt.Sprintf("learnset:pokeapi:%d", speciesID)
}

func (p *PokeAPILearnset) Learnset(ctx context.Context, speciesID int64) ([]battle.MoveDef, error) {
	if moves, ok := p.cached(ctx, speciesID); ok {
		return moves, nil
	}

	var mon apiPokemon
	status, err := p.getJSON(ctx, fmt.Sprintf("%s/pokemon/%d", p.cfg.BaseURL, speciesID), &mon)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, battle.Errorf(battle.CodeNotFound, "species %d not found upstream", speciesID)
		}
		return nil, battle.Wrap(battle.CodeUnavailable, "fetch species from pokeapi", err)
	}

	entries := mon.Moves
	if len(entries) > p.cfg.MaxEntries {
		entries = entries[:p.cfg.MaxEntries]
	}

	var (
		out     []battle.MoveDef
		fetched int
		lastErr error
	)
	for _, e := range entries {
		if len(out) >= p.cfg.MaxCandidates {
			break
		}
		if ctx.Err() != nil {
			return nil, battle.Wrap(battle.CodeUnavailable, "fetch moves from pokeapi", ctx.Err())
		}
		var m apiMove
		if _, err := p.getJSON(ctx, e.Move.URL, &m); err != nil {
			p.logger.Warn("pokeapi move fetch failed",
				zap.Int64("species_id", speciesID),
				zap.String("url", e.Move.URL),
				zap.Error(err))
			lastErr = err
			continue
		}
		fetched++
		def := p.toMoveDef(m)
		if def.DamageEligible() {
			out = append(out, def)
		}
	}

	// A species with moves none of which could be fetched is an outage, not an
	// empty learnset, and must not be cached.
	if fetched == 0 && lastErr != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, "fetch moves from pokeapi", lastErr)
	}

	p.store(ctx, speciesID, out)
	return out, nil
}

func (p *PokeAPILearnset) toMoveDef(m apiMove) battle.MoveDef {
	typ := m.Type.Name
	if typ == "" {
		typ = battle.TypeNormal
	}
	pp := m.PP
	if pp == nil || *pp <= 0 {
		pp = battle.IntPtr(p.cfg.DefaultPP)
	}
	return battle.MoveDef{
		ID:       m.ID,
		Name:     m.Name,
		Category: battle.Category(m.DamageClass.Name),
		Type:     typ,
		Power:    m.Power,
		PP:       pp,
		Accuracy: m.Accuracy,
	}
}

func (p *PokeAPILearnset) getJSON(ctx context.Context, url string, dest interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return resp.StatusCode, fmt.Errorf("GET %s: decode: %w", url, err)
	}
	return resp.StatusCode, nil
}

func (p *PokeAPILearnset) cached(ctx context.Context, speciesID int64) ([]battle.MoveDef, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, err := p.cache.Get(ctx, learnsetKey(speciesID))
	if err != nil {
		if !cache.IsNotFound(err) {
			p.logger.Warn("learnset cache read failed", zap.Int64("species_id", speciesID), zap.Error(err))
		}
		return nil, false
	}
	var moves []battle.MoveDef
	if err := json.Unmarshal([]byte(raw), &moves); err != nil {
		return nil, false
	}
	return moves, true
}

func (p *PokeAPILearnset) store(ctx context.Context, speciesID int64, moves []battle.MoveDef) {
	if p.cache == nil || len(moves) == 0 {
		return
	}
	raw, err := json.Marshal(moves)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, learnsetKey(speciesID), string(raw), p.cfg.CacheTTL); err != nil {
		p.logger.Warn("learnset cache write failed", zap.Int64("species_id", speciesID), zap.Error(err))
	}
}
