// Package domain defines the session token held by the canonical slot.
//
// A Token is the opaque access/refresh pair issued by the identity
// provider. This subsystem never inspects it beyond the expiry and owning
// user; later writes supersede earlier ones wholesale, so tokens carry no
// mergeable structure.
package domain
