// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bureau-foundation/webrtcdirect/lib/codec"
)

// CredentialCache memoizes remote credential derivation per identity.
// Safe for concurrent use; concurrent lookups of the same identity run
// the derivation once and share its result. The cache holds only
// public values (fingerprints and ICE credentials), never private keys.
type CredentialCache struct {
	mu      sync.Mutex
	entries map[PeerIdentity]*cacheEntry
}

type cacheEntry struct {
	once       sync.Once
	credential RemoteCredential
	err        error
}

// NewCredentialCache returns an empty cache.
func NewCredentialCache() *CredentialCache {
	return &CredentialCache{entries: make(map[PeerIdentity]*cacheEntry)}
}

// Lookup returns the remote credential for identity, deriving it on
// first use. Derivation failures are cached too: a malformed identity
// stays malformed.
func (c *CredentialCache) Lookup(identity PeerIdentity) (RemoteCredential, error) {
	c.mu.Lock()
	entry, ok := c.entries[identity]
	if !ok {
		entry = &cacheEntry{}
		c.entries[identity] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.credential, entry.err = DeriveRemoteCredential(identity)
	})
	return entry.credential, entry.err
}

// Len returns the number of identities with a cached derivation.
func (c *CredentialCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheDocument is the on-disk form of the cache.
type cacheDocument struct {
	Scheme  string          `cbor:"scheme"`
	Entries []cacheDocEntry `cbor:"entries"`
}

type cacheDocEntry struct {
	Identity   PeerIdentity     `cbor:"identity"`
	Credential RemoteCredential `cbor:"credential"`
}

// Export writes every successfully derived entry to w as a
// deterministic CBOR document, ordered by identity. Derivations still
// in flight are waited for.
func (c *CredentialCache) Export(w io.Writer) error {
	c.mu.Lock()
	identities := make([]PeerIdentity, 0, len(c.entries))
	for identity := range c.entries {
		identities = append(identities, identity)
	}
	c.mu.Unlock()

	slices.SortFunc(identities, func(a, b PeerIdentity) int {
		return slices.Compare(a[:], b[:])
	})

	document := cacheDocument{Scheme: CredentialScheme}
	for _, identity := range identities {
		credential, err := c.Lookup(identity)
		if err != nil {
			continue
		}
		document.Entries = append(document.Entries, cacheDocEntry{Identity: identity, Credential: credential})
	}

	if err := codec.NewEncoder(w).Encode(document); err != nil {
		return fmt.Errorf("encoding credential cache: %w", err)
	}
	return nil
}

// Import merges entries from a document written by Export. Each entry
// is derived again and kept only if the document agrees, so a stale or
// edited file cannot pin a wrong certificate. Identities already
// present are left alone. Returns the number of entries added. A
// document for another derivation scheme is rejected whole with
// ErrCacheSchemeMismatch.
func (c *CredentialCache) Import(r io.Reader) (int, error) {
	var document cacheDocument
	if err := codec.NewDecoder(r).Decode(&document); err != nil {
		return 0, fmt.Errorf("decoding credential cache: %w", err)
	}
	if document.Scheme != CredentialScheme {
		return 0, fmt.Errorf("%w: document scheme %q, want %q", ErrCacheSchemeMismatch, document.Scheme, CredentialScheme)
	}

	verified := make([]cacheDocEntry, 0, len(document.Entries))
	for _, imported := range document.Entries {
		derived, err := DeriveRemoteCredential(imported.Identity)
		if err != nil || derived != imported.Credential {
			continue
		}
		verified = append(verified, imported)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, imported := range verified {
		if _, ok := c.entries[imported.Identity]; ok {
			continue
		}
		entry := &cacheEntry{credential: imported.Credential}
		// Mark the entry as derived so Lookup returns it as is.
		entry.once.Do(func() {})
		c.entries[imported.Identity] = entry
		added++
	}
	return added, nil
}

// LoadFile imports the cache file at path. A missing file is not an
// error: the cache simply starts empty.
func (c *CredentialCache) LoadFile(path string) (int, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return c.Import(file)
}

// SaveFile exports the cache to path, replacing it atomically.
func (c *CredentialCache) SaveFile(path string) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary cache file: %w", err)
	}
	defer os.Remove(temporary.Name())

	if err := c.Export(temporary); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing temporary cache file: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
