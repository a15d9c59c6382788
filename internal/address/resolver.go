// Package address normalizes service addresses and resolves them to the
// set of taxing jurisdictions that govern them.
package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
	"taxatlas/internal/learner"
	"taxatlas/internal/lookup"
	"taxatlas/internal/port"
)

// Resolution is the outcome of resolving one service address.
// Unresolved is a valid terminal state, not an error.
type Resolution struct {
	Method          domain.ResolutionMethod
	Confidence      decimal.Decimal
	JurisdictionIDs []uuid.UUID
	MatchedRange    *domain.AddressRange
	ExternalCalls   int
}

// Config carries the resolver's tuning knobs.
type Config struct {
	// MinPatternConfidence gates the learned-pattern fallback.
	MinPatternConfidence decimal.Decimal
	// Provider names the external lookup provider used as last resort.
	Provider string
}

// Resolver resolves addresses through three stages: the imported address
// range index, the learned pattern cache, and the external lookup cache.
// Each stage annotates the result with its provenance so downstream
// consumers can gate auto-approval on it.
type Resolver struct {
	ranges        port.AddressRangeRepository
	jurisdictions port.JurisdictionRepository
	patterns      *learner.Learner
	external      *lookup.Cache
	cfg           Config
}

// NewResolver wires a Resolver from its three lookup stages.
func NewResolver(
	ranges port.AddressRangeRepository,
	jurisdictions port.JurisdictionRepository,
	patterns *learner.Learner,
	external *lookup.Cache,
	cfg Config,
) *Resolver {
	if cfg.MinPatternConfidence.Sign() <= 0 {
		cfg.MinPatternConfidence = decimal.NewFromFloat(0.6)
	}
	if cfg.Provider == "" {
		cfg.Provider = "geotax"
	}
	return &Resolver{
		ranges:        ranges,
		jurisdictions: jurisdictions,
		patterns:      patterns,
		external:      external,
		cfg:           cfg,
	}
}

// lookupResponse is the shape the external provider adapter must return for
// jurisdiction queries.
type lookupResponse struct {
	AuthorityName    string `json:"authority_name"`
	JurisdictionCode string `json:"jurisdiction_code"`
	StateCode        string `json:"state_code"`
}

// Resolve maps a service address to its governing jurisdictions. Only a
// malformed address returns an error; every data gap degrades to an
// unresolved (state-only or empty) resolution.
func (r *Resolver) Resolve(ctx context.Context, addr domain.ServiceAddress) (*Resolution, error) {
	norm, err := Normalize(addr)
	if err != nil {
		return nil, err
	}

	if res, err := r.resolveExact(ctx, norm); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	if res := r.resolveLearned(ctx, norm); res != nil {
		return res, nil
	}

	if res := r.resolveExternal(ctx, norm); res != nil {
		return res, nil
	}

	return r.unresolved(ctx, norm, 0), nil
}

// resolveExact queries the address range index. Multiple matches from
// overlapping import data are ranked: narrowest numeric range, then
// most specific zip+4, then freshest import source.
func (r *Resolver) resolveExact(ctx context.Context, norm *NormalizedAddress) (*Resolution, error) {
	candidates, err := r.ranges.FindCandidates(ctx, norm.StateCode, norm.Zip, norm.StreetName, norm.HouseNumber)
	if err != nil {
		return nil, fmt.Errorf("address.Resolver: range query: %w", err)
	}

	matches := candidates[:0]
	for i := range candidates {
		c := candidates[i]
		if !c.Parity.Matches(norm.HouseNumber) {
			continue
		}
		if norm.PreDirectional != "" && c.PreDirectional != "" && c.PreDirectional != norm.PreDirectional {
			continue
		}
		if norm.StreetSuffix != "" && c.StreetSuffix != "" && c.StreetSuffix != norm.StreetSuffix {
			continue
		}
		matches = append(matches, c)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := &matches[i], &matches[j]
		if a.Width() != b.Width() {
			return a.Width() < b.Width()
		}
		aZip4 := a.ZipPlus4 != "" && a.ZipPlus4 == norm.ZipPlus4
		bZip4 := b.ZipPlus4 != "" && b.ZipPlus4 == norm.ZipPlus4
		if aZip4 != bZip4 {
			return aZip4
		}
		// Exact specificity tie: freshest import wins.
		return a.ImportedAt.After(b.ImportedAt)
	})

	best := matches[0]
	return &Resolution{
		Method:          domain.ResolutionExact,
		Confidence:      decimal.NewFromInt(1),
		JurisdictionIDs: best.JurisdictionIDs(),
		MatchedRange:    &best,
	}, nil
}

// resolveLearned consults the pattern cache keyed by the city/zip authority
// name, taking the highest-confidence entry above the configured floor.
func (r *Resolver) resolveLearned(ctx context.Context, norm *NormalizedAddress) *Resolution {
	p, err := r.patterns.BestMatch(ctx, port.PatternCriteria{
		AuthorityName: authorityKey(norm),
		PatternType:   domain.PatternTypeDiscovered,
		MinConfidence: r.cfg.MinPatternConfidence,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("address.Resolver: pattern lookup failed: %v", err)
		}
		return nil
	}

	ids := r.expandHierarchy(ctx, p.AuthorityID)
	return &Resolution{
		Method:          domain.ResolutionLearned,
		Confidence:      p.Confidence,
		JurisdictionIDs: ids,
	}
}

// resolveExternal goes through the lookup cache (and, on a cold miss, the
// injected provider adapter). A discovered authority is persisted as a
// learned pattern; agreement with an existing pattern reinforces it.
func (r *Resolver) resolveExternal(ctx context.Context, norm *NormalizedAddress) *Resolution {
	params := map[string]string{
		"state":  norm.StateCode,
		"zip":    norm.Zip,
		"city":   norm.City,
		"street": norm.StreetName,
	}
	entry, hit, err := r.external.Lookup(ctx, r.cfg.Provider, "jurisdiction", params)
	if err != nil {
		log.Printf("address.Resolver: external lookup: %v", err)
		return nil
	}
	calls := 0
	if !hit && entry != nil {
		calls = 1
	}
	if entry == nil {
		return nil
	}

	var resp lookupResponse
	if err := json.Unmarshal(entry.Response, &resp); err != nil || resp.JurisdictionCode == "" {
		log.Printf("address.Resolver: unusable external response for %s/%s", norm.StateCode, norm.Zip)
		return nil
	}

	stateCode := resp.StateCode
	if stateCode == "" {
		stateCode = norm.StateCode
	}
	jur, err := r.jurisdictions.GetByCode(ctx, stateCode, resp.JurisdictionCode)
	if err != nil {
		log.Printf("address.Resolver: external authority %q has no directory entry", resp.JurisdictionCode)
		return nil
	}

	confidence := learner.InitialConfidence
	key := authorityKey(norm)
	existing, gerr := r.patterns.BestMatch(ctx, port.PatternCriteria{AuthorityName: key})
	switch {
	case gerr == nil && existing.AuthorityID == jur.ID:
		if p, rerr := r.patterns.RecordOutcome(ctx, key, jur.ID, true); rerr == nil {
			confidence = p.Confidence
		}
	case gerr == nil:
		// External result contradicts the stored mapping; weaken it and
		// record the new one.
		if _, rerr := r.patterns.RecordOutcome(ctx, existing.AuthorityName, existing.AuthorityID, false); rerr != nil {
			log.Printf("address.Resolver: weakening contradicted pattern: %v", rerr)
		}
		fallthrough
	default:
		data, _ := json.Marshal(map[string]string{"zip": norm.Zip, "city": norm.City})
		if p, derr := r.patterns.Discover(ctx, key, jur.ID, data); derr == nil {
			confidence = p.Confidence
		}
	}

	return &Resolution{
		Method:          domain.ResolutionExternal,
		Confidence:      confidence,
		JurisdictionIDs: r.expandHierarchy(ctx, jur.ID),
		ExternalCalls:   calls,
	}
}

// unresolved produces the terminal fallback: state-level jurisdiction if the
// directory knows the state, otherwise no jurisdictions at all.
func (r *Resolver) unresolved(ctx context.Context, norm *NormalizedAddress, calls int) *Resolution {
	res := &Resolution{
		Method:        domain.ResolutionUnresolved,
		Confidence:    decimal.Zero,
		ExternalCalls: calls,
	}
	if state, err := r.jurisdictions.StateByCode(ctx, norm.StateCode); err == nil {
		res.JurisdictionIDs = []uuid.UUID{state.ID}
	}
	return res
}

// expandHierarchy walks parent links so a resolved city or district also
// carries its county and state authorities.
func (r *Resolver) expandHierarchy(ctx context.Context, id uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{id}
	seen := map[uuid.UUID]bool{id: true}
	cur := id
	for {
		jur, err := r.jurisdictions.GetByID(ctx, cur)
		if err != nil || jur.ParentID == nil || seen[*jur.ParentID] {
			return ids
		}
		ids = append(ids, *jur.ParentID)
		seen[*jur.ParentID] = true
		cur = *jur.ParentID
	}
}

func authorityKey(norm *NormalizedAddress) string {
	if norm.City != "" {
		return norm.City + " " + norm.Zip
	}
	return norm.Zip
}
