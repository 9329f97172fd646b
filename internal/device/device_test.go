package device

import (
	"strings"
	"testing"
)

func baseSignals() Signals {
	return Signals{
		GraphicsSignature:     "surface-1",
		UserAgent:             "linux/amd64",
		Locale:                "en-US",
		ScreenWidth:           1920,
		ScreenHeight:          1080,
		TimezoneOffsetMinutes: -180,
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	first := Fingerprint(baseSignals())
	second := Fingerprint(baseSignals())
	if first != second {
		t.Fatalf("expected identical fingerprints, got %q and %q", first, second)
	}
}

func TestFingerprintFormat(t *testing.T) {
	fp := Fingerprint(baseSignals())
	if len(fp) != 52 {
		t.Fatalf("expected 52-character fingerprint, got %d", len(fp))
	}
	if fp != strings.ToLower(fp) {
		t.Fatal("expected lowercase fingerprint")
	}
	if strings.Contains(fp, "=") {
		t.Fatal("expected no padding")
	}
}

func TestFingerprintChangesWithSignals(t *testing.T) {
	base := Fingerprint(baseSignals())

	altered := baseSignals()
	altered.UserAgent = "darwin/arm64"
	if Fingerprint(altered) == base {
		t.Fatal("expected different fingerprint for different user agent")
	}

	altered = baseSignals()
	altered.TimezoneOffsetMinutes = 60
	if Fingerprint(altered) == base {
		t.Fatal("expected different fingerprint for different timezone offset")
	}
}

func TestFingerprintDegradedWithoutGraphics(t *testing.T) {
	degraded := baseSignals()
	degraded.GraphicsSignature = ""

	first := Fingerprint(degraded)
	second := Fingerprint(degraded)
	if first != second {
		t.Fatal("expected stable fingerprint without graphics signature")
	}
	if first == Fingerprint(baseSignals()) {
		t.Fatal("expected degraded fingerprint to differ from full fingerprint")
	}
	if len(first) != 52 {
		t.Fatalf("expected full-length fingerprint, got %d characters", len(first))
	}
}

func TestFingerprintLocaleSpellings(t *testing.T) {
	posix := baseSignals()
	posix.Locale = "en_US.UTF-8"

	bcp47 := baseSignals()
	bcp47.Locale = "en-US"

	if Fingerprint(posix) != Fingerprint(bcp47) {
		t.Fatal("expected POSIX and BCP-47 spellings to fingerprint identically")
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"en_US.UTF-8", "en-US"},
		{"en-US", "en-US"},
		{"pt_BR", "pt-BR"},
		{"", ""},
		{"  ", ""},
		{"not a locale", "not a locale"},
	}
	for _, tc := range cases {
		if got := NormalizeLocale(tc.in); got != tc.want {
			t.Fatalf("normalize %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestCollectStable(t *testing.T) {
	first := Fingerprint(Collect())
	second := Fingerprint(Collect())
	if first != second {
		t.Fatal("expected collected signals to fingerprint identically")
	}
}
