// Package session holds the canonical session slot: the single
// authoritative record of "the current session" for a context. The domain
// subpackage defines the token itself and the slot subpackage its storage.
package session
