package indexing

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"
)

func TestLoadManifest_Missing(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), ManifestFilename))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Version != ManifestVersion {
		t.Errorf("Expected version %d, got %d", ManifestVersion, m.Version)
	}
	if len(m.Builds) != 0 {
		t.Errorf("Expected no builds, got %d", len(m.Builds))
	}
}

func TestLoadManifest_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFilename)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("Expected error for corrupt manifest")
	}
}

func TestManifest_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ManifestFilename)
	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	m := NewManifest()
	m.SetBuildState("catalog", "catalogitem", BuildState{WindowEnd: end, BuiltAt: end, Indexed: 10, Removed: 2})
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temp file to be renamed away")
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	state := loaded.GetBuildState("catalog", "catalogitem")
	if !state.WindowEnd.Equal(end) || state.Indexed != 10 || state.Removed != 2 {
		t.Errorf("Unexpected state after reload: %+v", state)
	}
}

func TestManifest_SetBuildErrorKeepsWindow(t *testing.T) {
	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := NewManifest()
	m.SetBuildState("catalog", "category", BuildState{WindowEnd: end})

	m.SetBuildError("catalog", "category", "store unavailable")

	state := m.GetBuildState("catalog", "category")
	if !state.WindowEnd.Equal(end) {
		t.Errorf("Expected window end to survive a failure, got %v", state.WindowEnd)
	}
	if state.Error != "store unavailable" {
		t.Errorf("Expected error to be recorded, got %q", state.Error)
	}

	errs := m.BuildErrors()
	if errs["catalog/category"] != "store unavailable" || len(errs) != 1 {
		t.Errorf("Unexpected build errors: %v", errs)
	}

	m.SetBuildState("catalog", "category", BuildState{WindowEnd: end.Add(time.Hour)})
	if len(m.BuildErrors()) != 0 {
		t.Error("Expected a successful build to clear the error")
	}
}

func TestManifest_ResetBuild(t *testing.T) {
	m := NewManifest()
	m.SetBuildState("catalog", "category", BuildState{WindowEnd: time.Now()})
	m.ResetBuild("catalog", "category")

	if !m.GetBuildState("catalog", "category").WindowEnd.IsZero() {
		t.Error("Expected reset build to have a zero window")
	}
}

func TestManifest_RemoveStaleBuilds(t *testing.T) {
	m := NewManifest()
	m.SetBuildState("catalog", "category", BuildState{Indexed: 1})
	m.SetBuildState("catalog", "catalogitem", BuildState{Indexed: 2})
	m.SetBuildState("catalog", "pricelist", BuildState{Indexed: 3})
	m.SetBuildState("other", "pricelist", BuildState{Indexed: 4})

	removed := m.RemoveStaleBuilds("catalog", []string{"category", "catalogitem"})
	sort.Strings(removed)

	if !reflect.DeepEqual(removed, []string{"pricelist"}) {
		t.Errorf("Expected [pricelist] removed, got %v", removed)
	}
	if m.GetBuildState("other", "pricelist").Indexed != 4 {
		t.Error("Expected other scopes to be untouched")
	}
	if len(m.Builds) != 3 {
		t.Errorf("Expected 3 builds left, got %d", len(m.Builds))
	}
}

func TestManifest_NeedsBuildCheck(t *testing.T) {
	m := NewManifest()
	if !m.NeedsBuildCheck(time.Hour) {
		t.Error("Expected a new manifest to need a build")
	}

	m.UpdateLastBuild()
	if m.NeedsBuildCheck(time.Hour) {
		t.Error("Expected a fresh build not to need another")
	}
	if !m.NeedsBuildCheck(0) {
		t.Error("Expected a zero interval to always need a build")
	}
}
