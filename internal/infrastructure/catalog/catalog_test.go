package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"defect-pipeline/internal/domain/entity"
)

func TestMemoryCatalog_ProfilesReturnsCopy(t *testing.T) {
	profiles := []entity.DefectProfile{
		{ID: "crack-edge", DefectType: entity.DefectTypeCrack, Title: "Edge crack"},
		{ID: "surface-ok", DefectType: entity.DefectTypeOK, Title: "Clean surface"},
	}
	cat, err := NewMemoryCatalog(profiles)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := cat.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got[0].Title = "mutated"
	again, err := cat.Profiles(ctx)
	require.NoError(t, err)
	require.Equal(t, "Edge crack", again[0].Title)
}

func TestMemoryCatalog_RejectsDuplicateIDs(t *testing.T) {
	profiles := []entity.DefectProfile{
		{ID: "p1", DefectType: entity.DefectTypeCrack},
		{ID: "p1", DefectType: entity.DefectTypeHole},
	}
	_, err := NewMemoryCatalog(profiles)
	require.Error(t, err)
}

func TestMemoryCatalog_Upsert(t *testing.T) {
	cat, err := NewMemoryCatalog([]entity.DefectProfile{
		{ID: "p1", DefectType: entity.DefectTypeCrack, Title: "before"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cat.Upsert(ctx, entity.DefectProfile{ID: "p1", DefectType: entity.DefectTypeCrack, Title: "after"}))
	require.NoError(t, cat.Upsert(ctx, entity.DefectProfile{ID: "p2", DefectType: entity.DefectTypeHole}))

	got, err := cat.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "after", got[0].Title)
}

func TestLoadSeedFile(t *testing.T) {
	seed := `
profiles:
  - id: crack-edge
    defect_type: crack
    title: Edge crack
    description: Thin crack along the part edge
    severity: high
    keywords: [crack, edge]
  - id: surface-ok
    defect_type: OK
    title: Clean surface
    description: Reference image of a defect-free part
    severity: none
`
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	profiles, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	require.Equal(t, "crack-edge", profiles[0].ID)
	require.Equal(t, []string{"crack", "edge"}, profiles[0].Keywords)
	require.Equal(t, entity.DefectTypeOK, profiles[1].DefectType)
}

func TestLoadSeedFile_EmptyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: []"), 0o644))

	_, err := LoadSeedFile(path)
	require.Error(t, err)
}

func TestProfileText(t *testing.T) {
	text := profileText(entity.DefectProfile{
		Title:       "Edge crack",
		Description: "Thin crack along the part edge",
		Keywords:    []string{"crack", "edge"},
	})
	require.Equal(t, "Edge crack. Thin crack along the part edge. crack, edge", text)
}
