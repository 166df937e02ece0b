package referral

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPathDepth caps the upline chain encoded on each profile.
const MaxPathDepth = 3

// pathDelimiter separates ancestor ids in the persisted referral path.
const pathDelimiter = ">"

// Path is an ordered upline chain, nearest ancestor first, at most
// MaxPathDepth entries. A profile's own id never appears in its path.
type Path []uuid.UUID

// ChildPath builds the path for a member newly bound to referrerID,
// whose referrer carries parentPath: [referrer] + parentPath truncated
// so the result never exceeds MaxPathDepth.
func ChildPath(referrerID uuid.UUID, parentPath Path) Path {
	p := make(Path, 0, MaxPathDepth)
	p = append(p, referrerID)
	for _, id := range parentPath {
		if len(p) == MaxPathDepth {
			break
		}
		p = append(p, id)
	}
	return p
}

// Encode renders the path in its persisted form: ids joined by ">".
func (p Path) Encode() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = id.String()
	}
	return strings.Join(parts, pathDelimiter)
}

// IndexOf returns the zero-based position of id in the path, or -1.
// Position 0 means id is the direct referrer (level 1).
func (p Path) IndexOf(id uuid.UUID) int {
	for i, v := range p {
		if v == id {
			return i
		}
	}
	return -1
}

// ParsePath parses the persisted ">"-delimited form. Malformed segments
// are rejected so a corrupted row surfaces instead of silently shrinking
// someone's upline.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, pathDelimiter)
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, ErrMalformedPath
		}
		p = append(p, id)
		if len(p) == MaxPathDepth {
			break
		}
	}
	return p, nil
}

// Profile is the affiliate-relevant projection of a member record.
type Profile struct {
	ID                uuid.UUID  `db:"id"`
	ReferralCode      *string    `db:"referral_code"`
	ReferredBy        *uuid.UUID `db:"referred_by"`
	ReferralPath      Path       `db:"-"`
	AffiliateEnabled  bool       `db:"is_affiliate_enabled"`
	AffiliateSince    *time.Time `db:"affiliate_enabled_at"`
}

// BindResult reports the outcome of a bind attempt.
type BindResult struct {
	Bound      bool       // true only when this call recorded the relationship
	ReferredBy *uuid.UUID // the upline in effect after the call
	Path       Path
}

// NormalizeCode canonicalizes a referral code for comparison and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
