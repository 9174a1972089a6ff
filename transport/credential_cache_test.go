// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/webrtcdirect/lib/codec"
)

func TestCredentialCache_ConcurrentLookup(t *testing.T) {
	cache := NewCredentialCache()
	identity := testIdentity()

	want, err := DeriveRemoteCredential(identity)
	if err != nil {
		t.Fatalf("DeriveRemoteCredential: %v", err)
	}

	var group sync.WaitGroup
	results := make([]RemoteCredential, 16)
	for index := range results {
		group.Add(1)
		go func() {
			defer group.Done()
			credential, err := cache.Lookup(identity)
			if err != nil {
				t.Errorf("Lookup: %v", err)
				return
			}
			results[index] = credential
		}()
	}
	group.Wait()

	for index, credential := range results {
		if credential != want {
			t.Errorf("result %d = %+v, want %+v", index, credential, want)
		}
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestCredentialCache_MalformedIdentity(t *testing.T) {
	cache := NewCredentialCache()
	if _, err := cache.Lookup(PeerIdentity{}); !errors.Is(err, ErrMalformedIdentity) {
		t.Errorf("Lookup(zero) = %v, want ErrMalformedIdentity", err)
	}
}

func TestCredentialCache_ExportImport(t *testing.T) {
	source := NewCredentialCache()
	first := testIdentity()
	second := first
	second[0] = 0xFE
	for _, identity := range []PeerIdentity{first, second} {
		if _, err := source.Lookup(identity); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	// Failed derivations are not exported.
	source.Lookup(PeerIdentity{})

	var buffer bytes.Buffer
	if err := source.Export(&buffer); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var again bytes.Buffer
	if err := source.Export(&again); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(buffer.Bytes(), again.Bytes()) {
		t.Error("Export is not deterministic")
	}

	destination := NewCredentialCache()
	added, err := destination.Import(&buffer)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if added != 2 {
		t.Errorf("Import added %d entries, want 2", added)
	}

	for _, identity := range []PeerIdentity{first, second} {
		want, _ := source.Lookup(identity)
		got, err := destination.Lookup(identity)
		if err != nil {
			t.Fatalf("Lookup after import: %v", err)
		}
		if got != want {
			t.Errorf("imported credential for %s = %+v, want %+v", identity.Short(), got, want)
		}
	}
}

func TestCredentialCache_ImportSchemeMismatch(t *testing.T) {
	data, err := codec.Marshal(cacheDocument{Scheme: "some other scheme"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	cache := NewCredentialCache()
	if _, err := cache.Import(bytes.NewReader(data)); !errors.Is(err, ErrCacheSchemeMismatch) {
		t.Errorf("Import = %v, want ErrCacheSchemeMismatch", err)
	}
}

func TestCredentialCache_ImportDropsMismatchedEntries(t *testing.T) {
	identity := testIdentity()
	genuine, err := DeriveRemoteCredential(identity)
	if err != nil {
		t.Fatalf("DeriveRemoteCredential: %v", err)
	}

	stale := genuine
	stale.Fingerprint.Value[0] ^= 0xff
	edited := genuine
	edited.ICE.Password = strings.Repeat("A", icePasswordLength)
	var other PeerIdentity
	other[0] = 1
	otherCredential, err := DeriveRemoteCredential(other)
	if err != nil {
		t.Fatalf("DeriveRemoteCredential: %v", err)
	}

	tests := []struct {
		name      string
		entries   []cacheDocEntry
		wantAdded int
	}{
		{"stale fingerprint", []cacheDocEntry{{Identity: identity, Credential: stale}}, 0},
		{"edited ice password", []cacheDocEntry{{Identity: identity, Credential: edited}}, 0},
		{"zero identity", []cacheDocEntry{{Credential: genuine}}, 0},
		{"another identity's credential", []cacheDocEntry{{Identity: identity, Credential: otherCredential}}, 0},
		{"genuine beside stale", []cacheDocEntry{{Identity: identity, Credential: stale}, {Identity: other, Credential: otherCredential}}, 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := codec.Marshal(cacheDocument{Scheme: CredentialScheme, Entries: test.entries})
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			cache := NewCredentialCache()
			added, err := cache.Import(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if added != test.wantAdded {
				t.Errorf("added = %d, want %d", added, test.wantAdded)
			}

			got, err := cache.Lookup(identity)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if got != genuine {
				t.Errorf("Lookup returned the imported value %+v, want the derived %+v", got, genuine)
			}
		})
	}
}

func TestCredentialCache_Files(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.cbor")

	empty := NewCredentialCache()
	added, err := empty.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(missing): %v", err)
	}
	if added != 0 {
		t.Errorf("LoadFile(missing) added %d, want 0", added)
	}

	source := NewCredentialCache()
	if _, err := source.Lookup(testIdentity()); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if err := source.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded := NewCredentialCache()
	added, err = loaded.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if added != 1 {
		t.Errorf("LoadFile added %d, want 1", added)
	}
}
