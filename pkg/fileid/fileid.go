// Package fileid mints and validates the opaque file identifiers depot
// hands back from Create and expects on Get/Replace/Delete/Exists.
//
// Most drivers (local, memory, S3, GCS) use a UUIDv1 string, matching the
// Python ancestor's uuid.uuid1() convention. GridFS instead uses a native
// 12-byte Mongo ObjectID, hex-encoded, since that is what the collection's
// _id already is; forcing it through a UUID would mean storing a second
// indexed field for no benefit.
package fileid

import (
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New mints a new UUIDv1-based file id, used by every driver except GridFS.
func New() string {
	id, err := uuid.NewUUID()
	if err != nil {
		// uuid.NewUUID only fails if the system cannot read MAC/node info
		// or a monotonic clock sequence; fall back to a random v4, which is
		// still a valid, unique 128-bit id.
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether id is a syntactically valid UUID, accepting either
// the canonical hyphenated form or a bare 32-hex-digit form (mirroring the
// `uuid.UUID('{%s}' % file_id)` tolerance of the Python driver).
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewObjectID mints a new 12-byte Mongo ObjectID, hex-encoded, for GridFS.
func NewObjectID() string {
	return primitive.NewObjectID().Hex()
}

// ValidObjectID reports whether id decodes as a 12-byte Mongo ObjectID.
func ValidObjectID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// ErrEmpty reports an empty file id, which is never a valid file id
// regardless of driver.
var ErrEmpty = errors.New("fileid: empty file id")

// DecodeObjectID parses id as a Mongo ObjectID and returns its raw 12 bytes.
func DecodeObjectID(id string) ([]byte, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return oid[:], nil
}

// EncodeObjectID hex-encodes a raw 12-byte ObjectID.
func EncodeObjectID(raw []byte) string {
	return hex.EncodeToString(raw)
}
