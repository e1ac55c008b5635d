package fingerprint

import "testing"

func TestGenerateKnownDigest(t *testing.T) {
	// sha256("abc") = ba7816bf8f01cfea414140de5dae2223...
	if got := Generate("abc"); got != "ba7816bf8f01cfea" {
		t.Fatalf("Generate(abc) = %q", got)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	loc := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	first := Generate(loc)
	for i := 0; i < 10; i++ {
		if got := Generate(loc); got != first {
			t.Fatalf("call %d: %q != %q", i, got, first)
		}
	}
	if len(first) != Length {
		t.Fatalf("length %d, want %d", len(first), Length)
	}
	if !Valid(first) {
		t.Fatalf("Valid(%q) = false", first)
	}
}

func TestGenerateDistinct(t *testing.T) {
	locs := []string{
		"https://www.youtube.com/watch?v=a",
		"https://www.youtube.com/watch?v=b",
		"https://www.youtube.com/watch?v=a ",
		"",
	}
	seen := make(map[string]string)
	for _, l := range locs {
		fp := Generate(l)
		if prev, ok := seen[fp]; ok {
			t.Fatalf("%q and %q share fingerprint %s", prev, l, fp)
		}
		seen[fp] = l
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"ba7816bf8f01cfea":  true,
		"BA7816BF8F01CFEA":  false,
		"ba7816bf8f01cfe":   false,
		"../../etc/passwd0": false,
		"":                  false,
	}
	for in, want := range cases {
		if got := Valid(in); got != want {
			t.Errorf("Valid(%q) = %v, want %v", in, got, want)
		}
	}
}
