/*
Package memory provides an in-memory store for tests and local runs.

PURPOSE:
  Implements the read surfaces the reports service and the access
  filter depend on, backed by plain maps behind an RWMutex. Semantics
  mirror the sqlite store: newest-first listing, case-insensitive
  substring search, batched rate lookup.

NOT FOR PRODUCTION:
  No durability, no pagination pushdown; the whole matching set is
  materialized and sliced.
*/
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fieldserve/billing-engine/access"
	"github.com/fieldserve/billing-engine/billing"
	"github.com/fieldserve/billing-engine/reports"
)

// Store is a mutex-guarded in-memory dataset.
type Store struct {
	mu sync.RWMutex

	entries []billing.ServiceEntry
	rates   map[billing.RateKey]billing.Rate

	grants      []access.Grant
	dataCenters map[string]access.DataCenterView
	clients     map[string]access.ClientView
}

func NewStore() *Store {
	return &Store{
		rates:       make(map[billing.RateKey]billing.Rate),
		dataCenters: make(map[string]access.DataCenterView),
		clients:     make(map[string]access.ClientView),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) AddEntries(entries ...billing.ServiceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
}

func (s *Store) PutRate(r billing.Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[r.Key()] = r
}

func (s *Store) AddGrants(grants ...access.Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, grants...)
}

func (s *Store) PutDataCenter(dc access.DataCenterView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataCenters[dc.ID] = dc
}

func (s *Store) PutClient(c access.ClientView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

// =============================================================================
// reports.EntryStore
// =============================================================================

func (s *Store) ListEntries(_ context.Context, f reports.EntryFilter) ([]billing.ServiceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.match(f), nil
}

func (s *Store) ListEntriesPage(_ context.Context, f reports.EntryFilter, p reports.Page) ([]billing.ServiceEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.match(f)
	total := len(all)

	start := (p.Number - 1) * p.Size
	if start >= total {
		return []billing.ServiceEntry{}, total, nil
	}
	end := min(start+p.Size, total)
	return all[start:end], total, nil
}

func (s *Store) match(f reports.EntryFilter) []billing.ServiceEntry {
	search := strings.ToLower(f.Search)

	var out []billing.ServiceEntry
	for _, e := range s.entries {
		if !f.From.IsZero() && e.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Date.After(f.To) {
			continue
		}
		if f.FTID != "" && e.FTID != f.FTID {
			continue
		}
		if f.ClientID != "" && e.ClientID != f.ClientID {
			continue
		}
		if f.DataCenterID != "" && e.DataCenterID != f.DataCenterID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if search != "" && !entryMatches(e, search) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func entryMatches(e billing.ServiceEntry, search string) bool {
	for _, field := range []string{e.TechnicianName, e.ClientName, e.DataCenterName, e.ReferenceNo} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// =============================================================================
// reports.RateStore
// =============================================================================

func (s *Store) ListRates(_ context.Context, keys []billing.RateKey) ([]billing.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []billing.Rate
	for _, k := range keys {
		if r, ok := s.rates[k]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// access.DirectoryStore
// =============================================================================

func (s *Store) ListGrants(_ context.Context, ftID string) ([]access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []access.Grant
	for _, g := range s.grants {
		if g.FTID == ftID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) HasGrant(_ context.Context, ftID, dataCenterID, clientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.grants {
		if g.FTID == ftID && g.DataCenterID == dataCenterID && g.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DataCentersByIDs(_ context.Context, ids []string) ([]access.DataCenterView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []access.DataCenterView
	for _, id := range ids {
		if dc, ok := s.dataCenters[id]; ok {
			out = append(out, dc)
		}
	}
	return out, nil
}

func (s *Store) ClientsByIDs(_ context.Context, ids []string) ([]access.ClientView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []access.ClientView
	for _, id := range ids {
		if c, ok := s.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
