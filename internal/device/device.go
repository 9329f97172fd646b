// Package device derives a stable, non-cryptographic fingerprint for the
// current device and runtime configuration.
//
// The fingerprint scopes the credential vault so accounts stored on one
// device are not offered on another. It is a derived identifier, not a
// security credential: collisions and drift after environment upgrades are
// accepted, and a drifted fingerprint is simply treated as a new device.
package device

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Signals are the environmental inputs a fingerprint is derived from.
type Signals struct {
	// GraphicsSignature identifies the rendering surface. It may be empty
	// when no such surface exists; the fingerprint then degrades to the
	// remaining signals (reduced uniqueness, still stable).
	GraphicsSignature string
	// UserAgent names the runtime that produced the fingerprint.
	UserAgent string
	// Locale is the configured language tag, in any common spelling.
	Locale string
	// ScreenWidth and ScreenHeight describe the display geometry. Zero when
	// no display is attached.
	ScreenWidth  int
	ScreenHeight int
	// TimezoneOffsetMinutes is the local UTC offset in minutes.
	TimezoneOffsetMinutes int
}

// Fingerprint derives a stable opaque identifier from the given signals.
//
// The same signals always produce the same 52-character string. The value
// is a SHA-256 digest of the concatenated signals, base32-encoded without
// padding and lowercased.
func Fingerprint(sig Signals) string {
	parts := []string{
		sig.GraphicsSignature,
		sig.UserAgent,
		NormalizeLocale(sig.Locale),
		fmt.Sprintf("%dx%d", sig.ScreenWidth, sig.ScreenHeight),
		strconv.Itoa(sig.TimezoneOffsetMinutes),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return strings.ToLower(encoded)
}

// Collect gathers fingerprint signals from the current host.
//
// The hostname stands in for the rendering-surface signature and the
// OS/architecture pair for the user agent. No display geometry is available
// off-browser, so the screen signals stay zero and contribute fixed bytes.
// The result is deterministic for a fixed host configuration.
func Collect() Signals {
	graphics := ""
	if hostname, err := os.Hostname(); err == nil {
		graphics = hostname
	}

	_, offsetSeconds := time.Now().Zone()

	return Signals{
		GraphicsSignature:     graphics,
		UserAgent:             runtime.GOOS + "/" + runtime.GOARCH,
		Locale:                localeFromEnv(),
		TimezoneOffsetMinutes: offsetSeconds / 60,
	}
}

// NormalizeLocale canonicalizes a locale string into a BCP-47 tag so that
// spellings like "en_US.UTF-8" and "en-US" fingerprint identically.
// Unparseable values are lowercased and trimmed instead of rejected.
func NormalizeLocale(locale string) string {
	trimmed := strings.TrimSpace(locale)
	if trimmed == "" {
		return ""
	}

	// POSIX locales carry an encoding suffix and use underscores.
	if idx := strings.IndexAny(trimmed, ".@"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")

	tag, err := language.Parse(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return tag.String()
}

func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" && value != "C" && value != "POSIX" {
			return value
		}
	}
	return ""
}
