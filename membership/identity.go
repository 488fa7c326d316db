package membership

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/murmur3"
)

// GenerationStore persists the generation counter across process restarts.
// Next must return a value strictly greater than any value it has returned
// in a previous run.
type GenerationStore interface {
	Next() (uint64, error)
}

// GenerateID produces the identity for a new incarnation of this process.
// The unique id mixes a hash of the advertised address with fresh random
// bits, so two nodes advertising the same address still get distinct ids.
// Without a store, the generation falls back to wall-clock seconds, which
// is strictly increasing across restarts as long as the clock does not run
// backwards between runs.
func GenerateID(advertisedAddr string, store GenerationStore) (NodeID, error) {
	u := uuid.New()

	uniqueID := murmur3.StringSum64(advertisedAddr)
	uniqueID ^= binary.BigEndian.Uint64(u[0:8])
	uniqueID ^= binary.BigEndian.Uint64(u[8:16])

	if uniqueID == 0 {
		uniqueID = 1 // zero is reserved as "missing" on the wire
	}

	var (
		generation uint64
		err        error
	)

	if store != nil {
		if generation, err = store.Next(); err != nil {
			return NodeID{}, fmt.Errorf("next generation: %w", err)
		}
	} else {
		generation = uint64(time.Now().Unix())
	}

	return NodeID{
		UniqueID:   uniqueID,
		Generation: generation,
	}, nil
}

// FileGenerationStore keeps the generation counter in a plain text file.
type FileGenerationStore struct {
	path string
}

func NewFileGenerationStore(path string) *FileGenerationStore {
	return &FileGenerationStore{path: path}
}

func (s *FileGenerationStore) Next() (uint64, error) {
	var last uint64

	data, err := os.ReadFile(s.path)

	switch {
	case err == nil:
		last, err = strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse generation file %s: %w", s.path, err)
		}
	case os.IsNotExist(err):
		last = 0
	default:
		return 0, fmt.Errorf("read generation file %s: %w", s.path, err)
	}

	next := last + 1

	if err := os.WriteFile(s.path, []byte(strconv.FormatUint(next, 10)), 0o644); err != nil {
		return 0, fmt.Errorf("write generation file %s: %w", s.path, err)
	}

	return next, nil
}
