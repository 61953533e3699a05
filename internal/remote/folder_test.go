package remote

import "testing"

func TestExtractFolderID_RawID(t *testing.T) {
	got := ExtractFolderID("1aBcDeFgHiJkLmNoPqRs")
	if got != "1aBcDeFgHiJkLmNoPqRs" {
		t.Errorf("got %q", got)
	}
}

func TestExtractFolderID_FoldersURL(t *testing.T) {
	got := ExtractFolderID("https://drive.google.com/drive/folders/1aBcDeFgHiJkLmNoPqRs?usp=sharing")
	if got != "1aBcDeFgHiJkLmNoPqRs" {
		t.Errorf("got %q", got)
	}
}

func TestExtractFolderID_QueryParam(t *testing.T) {
	got := ExtractFolderID("https://drive.google.com/open?id=1aBcDeFgHiJkLmNoPqRs")
	if got != "1aBcDeFgHiJkLmNoPqRs" {
		t.Errorf("got %q", got)
	}
}

func TestExtractFolderID_TooShort(t *testing.T) {
	if got := ExtractFolderID("short"); got != "" {
		t.Errorf("expected empty for too-short id, got %q", got)
	}
}

func TestExtractFolderID_Empty(t *testing.T) {
	if got := ExtractFolderID(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestContentStamp_Format(t *testing.T) {
	stamp := ContentStamp(FileInfo{ModifiedTime: "2024-01-01T00:00:00Z", Size: "1024", Name: "a.jpg"})
	want := "2024-01-01T00:00:00Z|1024|a.jpg"
	if stamp != want {
		t.Errorf("got %q, want %q", stamp, want)
	}
}

func TestContentStamp_MissingFieldsAreEmpty(t *testing.T) {
	stamp := ContentStamp(FileInfo{Name: "a.jpg"})
	want := "||a.jpg"
	if stamp != want {
		t.Errorf("got %q, want %q", stamp, want)
	}
}

func TestIsFolder(t *testing.T) {
	if !IsFolder("application/vnd.google-apps.folder") {
		t.Error("expected folder mime to be recognized")
	}
	if IsFolder("image/jpeg") {
		t.Error("expected image mime to not be a folder")
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("image/png") {
		t.Error("expected image/png to be an image")
	}
	if IsImage("application/pdf") {
		t.Error("expected pdf to not be an image")
	}
}
