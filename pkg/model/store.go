package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
)

var storeVersions atomic.Uint64

// Store is the immutable, ordered collection of triples loaded from a
// source. Distinct IDs are interned into dense indices in first-encounter
// order so ID sets can be represented as bitmaps.
type Store struct {
	triples  []Triple
	idIndex  map[string]uint32
	ids      []string
	tripleID []uint32
	version  uint64
	hash     string
}

// NewStore takes ownership of triples; the caller must not modify the slice
// afterwards.
func NewStore(triples []Triple) *Store {
	s := &Store{
		triples:  triples,
		idIndex:  make(map[string]uint32),
		tripleID: make([]uint32, len(triples)),
		version:  storeVersions.Add(1),
	}
	h := sha256.New()
	var lenBuf [binary.MaxVarintLen64]byte
	writeField := func(str string) {
		n := binary.PutUvarint(lenBuf[:], uint64(len(str)))
		h.Write(lenBuf[:n])
		h.Write([]byte(str))
	}
	for i, t := range triples {
		idx, ok := s.idIndex[t.ID]
		if !ok {
			idx = uint32(len(s.ids))
			s.idIndex[t.ID] = idx
			s.ids = append(s.ids, t.ID)
		}
		s.tripleID[i] = idx

		writeField(t.ID)
		writeField(t.Node)
		writeField(t.Value.Key())
	}
	s.hash = hex.EncodeToString(h.Sum(nil))
	return s
}

// All returns the triples in load order. The returned slice is shared and
// must be treated as read-only.
func (s *Store) All() []Triple {
	if s == nil {
		return nil
	}
	return s.triples
}

// Len returns the number of triples.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.triples)
}

// IDCount returns the number of distinct IDs.
func (s *Store) IDCount() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDIndex returns the interned index of id.
func (s *Store) IDIndex(id string) (uint32, bool) {
	if s == nil {
		return 0, false
	}
	idx, ok := s.idIndex[id]
	return idx, ok
}

// IDAt returns the ID at interned index idx.
func (s *Store) IDAt(idx uint32) string {
	return s.ids[idx]
}

// TripleIDIndex returns the interned ID index of the i-th triple.
func (s *Store) TripleIDIndex(i int) uint32 {
	return s.tripleID[i]
}

// Version is a process-unique, increasing number identifying this store.
func (s *Store) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// DataHash is a sha256 over the canonical encoding of every triple.
func (s *Store) DataHash() string {
	if s == nil {
		return ""
	}
	return s.hash
}
