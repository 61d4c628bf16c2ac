// Package pricing implements the hourly rate registry consumed by the
// estimator and managed through the admin pricing API.
package pricing

import (
	"sort"
	"strings"
	"sync"

	svcerrors "github.com/printforge/printforge-go-components/internal/slicingservice/errors"
	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
)

// Rates maps technology to material to hourly rate in HUF. Material keys
// keep their canonical stored spelling; lookups are case-insensitive.
type Rates map[model.Technology]map[string]int

// Store persists the full rate table. Implementations must replace the
// stored state atomically so a crash mid-write cannot corrupt the registry.
type Store interface {
	// Load returns the persisted rates, or ok=false when nothing usable
	// is stored yet (absent file, empty collection, parse failure).
	Load() (rates Rates, ok bool)
	// Save replaces the persisted state. Returns an error on I/O failure
	// so mutations can surface a 500.
	Save(rates Rates) error
}

// DefaultRates returns the seed table applied on first start and backfilled
// under any persisted state that lost its defaults.
func DefaultRates() Rates {
	return Rates{
		model.FDM: {"default": 800, "PLA": 800, "PETG": 900, "ABS": 1000},
		model.SLA: {"default": 1800, "Standard": 1800, "Tough": 2200},
	}
}

// Registry is the in-memory rate table. A single mutex serializes every
// read-modify-write-persist sequence so readers always observe a state that
// matches what the store holds.
type Registry struct {
	mu    sync.RWMutex
	rates Rates
	store Store
}

// NewRegistry creates a registry over the given store and loads it.
// Storage that is absent or unreadable falls back to the defaults, which
// are then re-persisted.
func NewRegistry(store Store) *Registry {
	r := &Registry{store: store}
	r.load()
	return r
}

func (r *Registry) load() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rates = DefaultRates()
	stored, ok := r.store.Load()
	if !ok {
		logger.LogInfo("pricing storage empty or unreadable, seeding defaults")
		if err := r.store.Save(r.rates); err != nil {
			logger.LogError("seed pricing storage", err)
		}
		return
	}

	// Merge over defaults: stores drop unknown technologies, missing
	// defaults are backfilled here.
	backfilled := false
	for _, tech := range model.Technologies() {
		persisted, present := stored[tech]
		if !present {
			backfilled = true
			continue
		}
		merged := r.rates[tech]
		for material, price := range persisted {
			if price > 0 {
				merged[material] = price
			}
		}
		for material := range merged {
			if _, kept := persisted[material]; !kept {
				backfilled = true
			}
		}
	}
	if backfilled {
		if err := r.store.Save(r.rates); err != nil {
			logger.LogError("re-persist merged pricing table", err)
		}
	}
}

// All returns a deep copy of the full rate table.
func (r *Registry) All() Rates {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rates.clone()
}

func (rates Rates) clone() Rates {
	out := make(Rates, len(rates))
	for tech, materials := range rates {
		m := make(map[string]int, len(materials))
		for material, price := range materials {
			m[material] = price
		}
		out[tech] = m
	}
	return out
}

// canonicalKey returns the stored spelling matching material, if any.
func canonicalKey(materials map[string]int, material string) (string, bool) {
	for key := range materials {
		if strings.EqualFold(key, material) {
			return key, true
		}
	}
	return "", false
}

func validate(material string, price int) error {
	if strings.TrimSpace(material) == "" {
		return svcerrors.ErrInvalidMaterialName
	}
	if price <= 0 {
		return svcerrors.ErrInvalidPrice
	}
	return nil
}

// Create adds a new material rate. Fails when the material already exists
// under any spelling. Returns the canonical stored key.
func (r *Registry) Create(tech model.Technology, material string, price int) (string, error) {
	if err := validate(material, price); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	materials := r.rates[tech]
	if _, exists := canonicalKey(materials, material); exists {
		return "", svcerrors.ErrMaterialExists
	}
	materials[material] = price
	if err := r.store.Save(r.rates); err != nil {
		delete(materials, material)
		logger.LogError("persist pricing create", err)
		return "", svcerrors.ErrPricingPersistence
	}
	return material, nil
}

// Update sets the rate of a material, creating it when absent. The existing
// canonical spelling wins over the request spelling. Reports whether a new
// material was created.
func (r *Registry) Update(tech model.Technology, material string, price int) (created bool, err error) {
	if err := validate(material, price); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	materials := r.rates[tech]
	key, exists := canonicalKey(materials, material)
	if !exists {
		key = material
	}
	previous, hadPrevious := materials[key]
	materials[key] = price
	if err := r.store.Save(r.rates); err != nil {
		if hadPrevious {
			materials[key] = previous
		} else {
			delete(materials, key)
		}
		logger.LogError("persist pricing update", err)
		return false, svcerrors.ErrPricingPersistence
	}
	return !exists, nil
}

// Delete removes a material rate. The legacy fallback key "default" is
// protected so RateFor always has a floor to land on.
func (r *Registry) Delete(tech model.Technology, material string) error {
	if strings.EqualFold(material, "default") {
		return svcerrors.ErrDefaultMaterialProtected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	materials := r.rates[tech]
	key, exists := canonicalKey(materials, material)
	if !exists {
		return svcerrors.ErrMaterialNotFound
	}
	previous := materials[key]
	delete(materials, key)
	if err := r.store.Save(r.rates); err != nil {
		materials[key] = previous
		logger.LogError("persist pricing delete", err)
		return svcerrors.ErrPricingPersistence
	}
	return nil
}

// RateFor resolves the hourly rate for a technology and material.
// Resolution order: exact case-insensitive match, first positive rate of
// the technology, first positive default of the technology, zero.
func (r *Registry) RateFor(tech model.Technology, material string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	materials := r.rates[tech]
	if key, exists := canonicalKey(materials, material); exists {
		if price := materials[key]; price > 0 {
			return price
		}
	}
	if price, ok := firstPositive(materials); ok {
		return price
	}
	if price, ok := firstPositive(DefaultRates()[tech]); ok {
		return price
	}
	return 0
}

// firstPositive walks materials in sorted key order so the fallback is
// deterministic across runs.
func firstPositive(materials map[string]int) (int, bool) {
	keys := make([]string, 0, len(materials))
	for key := range materials {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if materials[key] > 0 {
			return materials[key], true
		}
	}
	return 0, false
}
