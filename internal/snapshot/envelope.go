// Package snapshot stores raw schema snapshots as compressed, fingerprinted
// envelopes in object storage.
package snapshot

import (
	"encoding/binary"
	"time"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	dlerrors "github.com/driftline/driftline/internal/errors"
)

// Envelope wire layout: 4-byte magic, 1-byte version, 8-byte fingerprint,
// 8-byte captured-at (unix nanos), then the snappy-compressed SQL text.
const (
	envelopeVersion = 1
	headerSize      = 4 + 1 + 8 + 8
)

var envelopeMagic = [4]byte{'D', 'L', 'S', 'N'}

// Envelope describes one stored snapshot.
type Envelope struct {
	// Fingerprint is the murmur3 hash of the uncompressed SQL text.
	Fingerprint uint64

	// CapturedAt records when the snapshot was taken.
	CapturedAt time.Time

	// Size is the uncompressed SQL size in bytes.
	Size int
}

// Fingerprint hashes raw snapshot text the same way envelopes do, so
// callers can compare against stored snapshots without decoding them.
func Fingerprint(sql string) uint64 {
	return murmur3.Sum64([]byte(sql))
}

// Encode wraps raw SQL text into an envelope blob.
func Encode(sql string, capturedAt time.Time) []byte {
	raw := []byte(sql)
	compressed := snappy.Encode(nil, raw)

	blob := make([]byte, headerSize+len(compressed))
	copy(blob[0:4], envelopeMagic[:])
	blob[4] = envelopeVersion
	binary.BigEndian.PutUint64(blob[5:13], murmur3.Sum64(raw))
	binary.BigEndian.PutUint64(blob[13:21], uint64(capturedAt.UnixNano()))
	copy(blob[headerSize:], compressed)
	return blob
}

// Decode unwraps an envelope blob, verifying magic, version, and
// fingerprint. Corruption in any of the three fails decoding.
func Decode(blob []byte) (string, Envelope, error) {
	if len(blob) < headerSize {
		return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeBadEnvelope,
			"snapshot blob shorter than envelope header", nil)
	}
	if [4]byte(blob[0:4]) != envelopeMagic {
		return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeBadEnvelope,
			"snapshot blob has wrong magic bytes", nil)
	}
	if blob[4] != envelopeVersion {
		return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeBadEnvelope,
			"unsupported snapshot envelope version", nil)
	}

	fingerprint := binary.BigEndian.Uint64(blob[5:13])
	capturedAt := time.Unix(0, int64(binary.BigEndian.Uint64(blob[13:21])))

	raw, err := snappy.Decode(nil, blob[headerSize:])
	if err != nil {
		return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeBadEnvelope,
			"snapshot payload failed to decompress", err)
	}
	if murmur3.Sum64(raw) != fingerprint {
		return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeBadEnvelope,
			"snapshot payload does not match its fingerprint", nil)
	}

	return string(raw), Envelope{
		Fingerprint: fingerprint,
		CapturedAt:  capturedAt,
		Size:        len(raw),
	}, nil
}
