package pricing

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	svcerrors "github.com/printforge/printforge-go-components/internal/slicingservice/errors"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
)

func newFileRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.json")
	return NewRegistry(NewFileStore(path)), path
}

func TestNewRegistrySeedsDefaultsWhenFileAbsent(t *testing.T) {
	t.Parallel()

	registry, path := newFileRegistry(t)

	rates := registry.All()
	require.Equal(t, 900, rates[model.FDM]["PETG"])
	require.Equal(t, 1800, rates[model.SLA]["Standard"])

	// Defaults were persisted on first start.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted map[string]map[string]int
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Equal(t, 800, persisted["FDM"]["default"])
}

func TestNewRegistryFallsBackToDefaultsOnParseFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pricing.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	registry := NewRegistry(NewFileStore(path))
	require.Equal(t, 800, registry.RateFor(model.FDM, "PLA"))

	// The defaults were re-persisted over the corrupt file.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted map[string]map[string]int
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Equal(t, 1800, persisted["SLA"]["default"])
}

func TestLoadIgnoresUnknownTechnologiesAndBackfillsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pricing.json")
	seed := map[string]map[string]int{
		"FDM":   {"PETG": 950},
		"LASER": {"Steel": 4000},
	}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	registry := NewRegistry(NewFileStore(path))
	rates := registry.All()

	require.Equal(t, 950, rates[model.FDM]["PETG"], "persisted rate wins over default")
	require.Equal(t, 800, rates[model.FDM]["default"], "missing defaults are backfilled")
	require.Contains(t, rates, model.SLA, "missing technology is restored")
	for tech := range rates {
		require.Contains(t, []model.Technology{model.FDM, model.SLA}, tech)
	}
}

func TestPricingLifecycle(t *testing.T) {
	t.Parallel()

	registry, path := newFileRegistry(t)

	key, err := registry.Create(model.FDM, "ASA", 1200)
	require.NoError(t, err)
	require.Equal(t, "ASA", key)

	_, err = registry.Create(model.FDM, "asa", 1300)
	require.ErrorIs(t, err, svcerrors.ErrMaterialExists)

	created, err := registry.Update(model.FDM, "asa", 950)
	require.NoError(t, err)
	require.False(t, created, "update resolves the existing canonical key")
	require.Equal(t, 950, registry.All()[model.FDM]["ASA"])

	created, err = registry.Update(model.SLA, "Flexible", 2500)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, registry.Delete(model.FDM, "ASA"))
	require.ErrorIs(t, registry.Delete(model.FDM, "ASA"), svcerrors.ErrMaterialNotFound)
	require.ErrorIs(t, registry.Delete(model.FDM, "Default"), svcerrors.ErrDefaultMaterialProtected)

	// Persisted file parses back to the live table after every mutation.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted map[string]map[string]int
	require.NoError(t, json.Unmarshal(data, &persisted))
	for tech, materials := range registry.All() {
		require.Equal(t, materials, persisted[string(tech)])
	}
	require.NotContains(t, persisted["FDM"], "ASA")
	require.Equal(t, 2500, persisted["SLA"]["Flexible"])
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	registry, _ := newFileRegistry(t)

	_, err := registry.Create(model.FDM, "  ", 100)
	require.ErrorIs(t, err, svcerrors.ErrInvalidMaterialName)

	_, err = registry.Create(model.FDM, "Nylon", 0)
	require.ErrorIs(t, err, svcerrors.ErrInvalidPrice)

	_, err = registry.Create(model.FDM, "Nylon", -5)
	require.ErrorIs(t, err, svcerrors.ErrInvalidPrice)
}

func TestRateForFallbackChain(t *testing.T) {
	t.Parallel()

	registry, _ := newFileRegistry(t)

	// Exact, case-insensitive match.
	require.Equal(t, 900, registry.RateFor(model.FDM, "petg"))

	// Unknown material falls back to the first positive rate of the
	// technology (sorted key order makes this deterministic).
	require.Equal(t, 1000, registry.RateFor(model.FDM, "Unobtainium"))

	// After create+delete the fallback is still positive.
	_, err := registry.Create(model.SLA, "Castable", 2600)
	require.NoError(t, err)
	require.Equal(t, 2600, registry.RateFor(model.SLA, "Castable"))
	require.NoError(t, registry.Delete(model.SLA, "Castable"))
	require.Positive(t, registry.RateFor(model.SLA, "Castable"))
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	t.Parallel()

	registry, path := newFileRegistry(t)
	_, err := registry.Create(model.FDM, "TPU", 1100)
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	require.True(t, errors.Is(err, os.ErrNotExist))
}

type failingStore struct {
	loaded Rates
	fail   bool
}

func (s *failingStore) Load() (Rates, bool) { return s.loaded, s.loaded != nil }
func (s *failingStore) Save(Rates) error {
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func TestMutationsRollBackWhenPersistenceFails(t *testing.T) {
	t.Parallel()

	store := &failingStore{}
	registry := NewRegistry(store)
	store.fail = true

	_, err := registry.Create(model.FDM, "ASA", 1200)
	require.ErrorIs(t, err, svcerrors.ErrPricingPersistence)
	require.NotContains(t, registry.All()[model.FDM], "ASA")

	_, err = registry.Update(model.FDM, "PETG", 999)
	require.ErrorIs(t, err, svcerrors.ErrPricingPersistence)
	require.Equal(t, 900, registry.All()[model.FDM]["PETG"])

	err = registry.Delete(model.FDM, "PETG")
	require.ErrorIs(t, err, svcerrors.ErrPricingPersistence)
	require.Equal(t, 900, registry.All()[model.FDM]["PETG"])
}
