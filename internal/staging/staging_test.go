package staging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestFilenameManifest(t *testing.T) {
	cases := []struct {
		role  Role
		index int
		want  string
	}{
		{RoleBackground, 0, "background.mp4"},
		{RoleOverlay, 2, "overlay_002.png"},
		{RoleNarration, 11, "narration_011.mp3"},
		{RoleMusic, 0, "background_music.mp3"},
		{RoleTag, 0, "subscribe_tag.png"},
	}
	for _, c := range cases {
		if got := Filename(c.role, c.index); got != c.want {
			t.Errorf("Filename(%s, %d) = %q, want %q", c.role, c.index, got, c.want)
		}
	}
}

func TestStageAndCleanup(t *testing.T) {
	w, err := NewWorkspace("staging_test_")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	names := []string{
		Filename(RoleBackground, 0),
		Filename(RoleOverlay, 0),
		Filename(RoleNarration, 0),
	}
	for _, name := range names {
		if err := w.Stage(name, []byte("data")); err != nil {
			t.Fatalf("Stage(%s): %v", name, err)
		}
	}

	if got := len(w.StagedNames()); got != len(names) {
		t.Fatalf("StagedNames = %d entries, want %d", got, len(names))
	}

	if err := w.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	// Every staged name must report "not found" after cleanup.
	for _, name := range names {
		if _, err := os.Stat(w.Path(name)); !os.IsNotExist(err) {
			t.Errorf("%s still present after cleanup", name)
		}
	}
	if _, err := os.Stat(w.Dir()); !os.IsNotExist(err) {
		t.Error("staging directory still present after cleanup")
	}
}

func TestCleanupToleratesMissingFiles(t *testing.T) {
	w, err := NewWorkspace("staging_test_")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := w.Stage("gone.bin", []byte("x")); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	os.Remove(w.Path("gone.bin"))

	if err := w.Cleanup(); err != nil {
		t.Fatalf("Cleanup after external delete: %v", err)
	}
}

func TestFetchStagesRemoteAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Write([]byte("remote bytes"))
	}))
	defer srv.Close()

	w, err := NewWorkspace("staging_test_")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer w.Cleanup()

	if err := w.Fetch("asset.bin", srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(w.Path("asset.bin"))
	if err != nil {
		t.Fatalf("read staged asset: %v", err)
	}
	if string(data) != "remote bytes" {
		t.Errorf("staged content = %q", data)
	}
}

func TestFetchSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	w, err := NewWorkspace("staging_test_")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer w.Cleanup()

	if err := w.Fetch("missing.bin", srv.URL); err == nil {
		t.Error("expected error for non-200 fetch")
	}
}
