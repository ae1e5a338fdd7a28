package media

import (
	"reflect"
	"testing"
)

func TestExtractNames(t *testing.T) {
	markup := `<img src="cat.png"> text [sound:meow.mp3] <img src='dog.jpg'>` +
		`<img src="cat.png"><img src="https://example.com/x.png"><img src="data:image/png;base64,AAAA">`
	got := ExtractNames(markup)
	want := []string{"cat.png", "meow.mp3", "dog.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractNames = %#v, want %#v", got, want)
	}
}

func TestExtractNames_Empty(t *testing.T) {
	if got := ExtractNames("plain text"); len(got) != 0 {
		t.Fatalf("ExtractNames = %#v, want empty", got)
	}
}

func TestEncodeName_Reversible(t *testing.T) {
	names := []string{
		"simple.png",
		"with spaces & symbols?.jpg",
		"ünïcödé 漢字.mp3",
		"archive.tar.gz",
		"no-extension",
		"slash/inside.png",
		".hidden",
	}
	for _, name := range names {
		encoded := EncodeName(name)
		decoded, err := DecodeName(encoded)
		if err != nil {
			t.Fatalf("DecodeName(%q) returned error: %v", encoded, err)
		}
		if decoded != name {
			t.Fatalf("round trip %q -> %q -> %q", name, encoded, decoded)
		}
	}
}

func TestEncodeName_KeepsExtensionAndIsFilesystemSafe(t *testing.T) {
	encoded := EncodeName("a b/c?.png")
	if got := encoded[len(encoded)-4:]; got != ".png" {
		t.Fatalf("extension = %q, want .png", got)
	}
	for _, r := range encoded[:len(encoded)-4] {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '='
		if !ok {
			t.Fatalf("encoded name %q contains unsafe rune %q", encoded, r)
		}
	}
}

func TestDecodeName_Invalid(t *testing.T) {
	if _, err := DecodeName("!!!.png"); err == nil {
		t.Fatalf("DecodeName returned nil error, want error")
	}
}

func TestIsImage(t *testing.T) {
	for name, want := range map[string]bool{
		"a.PNG": true, "b.jpeg": true, "c.webp": true, "d.svg": false, "e.mp3": false, "f": false,
	} {
		if got := IsImage(name); got != want {
			t.Fatalf("IsImage(%q) = %v, want %v", name, got, want)
		}
	}
}
