// Package certificate issues durable certificate artifacts for passing results. Issuance is
// idempotent: one result always maps to one identity, and one identity to one stored file.
package certificate

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	keyPrefix  = "certificates/"
	namePrefix = "certificate_"
	extension  = ".png"
)

// serialNamespace scopes certificate serials so they never collide with other SHA1 uuids.
var serialNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("skill-assessment-service/certificates"))

// Identity is the stable identity of one certificate.
type Identity struct {
	UserID       string
	AssessmentID uint
	IssuedAt     time.Time
}

func NewIdentity(userID string, assessmentID uint, issuedAt time.Time) Identity {
	return Identity{
		UserID:       userID,
		AssessmentID: assessmentID,
		IssuedAt:     time.Unix(issuedAt.Unix(), 0).UTC(),
	}
}

// Key is the storage object key, e.g. certificates/certificate_u1_7_1717171717.png.
func (id Identity) Key() string {
	return fmt.Sprintf("%s%s%s_%d_%d%s", keyPrefix, namePrefix, id.UserID, id.AssessmentID, id.IssuedAt.Unix(), extension)
}

// Serial is printed on the certificate and derived from the key, so it is stable too.
func (id Identity) Serial() string {
	u := uuid.NewSHA1(serialNamespace, []byte(id.Key()))
	return "SA-" + strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:16])
}

func (id Identity) Valid() bool {
	return id.UserID != "" && id.AssessmentID != 0 && id.IssuedAt.Unix() > 0
}

// ParseIdentity recovers an identity from a certificate URL or key. Fields are read from the
// right, so user ids containing underscores survive the round trip.
func ParseIdentity(ref string) (Identity, bool) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	name := path.Base(ref)
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, extension) {
		return Identity{}, false
	}
	name = strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), extension)

	tsAt := strings.LastIndex(name, "_")
	if tsAt <= 0 {
		return Identity{}, false
	}
	ts, err := strconv.ParseInt(name[tsAt+1:], 10, 64)
	if err != nil || ts <= 0 {
		return Identity{}, false
	}
	name = name[:tsAt]

	aAt := strings.LastIndex(name, "_")
	if aAt <= 0 {
		return Identity{}, false
	}
	assessmentID, err := strconv.ParseUint(name[aAt+1:], 10, 64)
	if err != nil || assessmentID == 0 {
		return Identity{}, false
	}

	return NewIdentity(name[:aAt], uint(assessmentID), time.Unix(ts, 0)), true
}
