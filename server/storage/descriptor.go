// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package storage

import (
	"net/url"
	"strings"
)

// DefaultDatabaseName is used when Load receives no names at all.
const DefaultDatabaseName = "multidb"

// DescriptorStore holds the immutable shard descriptors. Order is
// significant: it defines the rotation sequence, ordinal 0 first.
type DescriptorStore struct {
	descriptors []ShardDescriptor
}

// Load builds descriptors from ordered uri/name lists.
//
// When fewer names than uris are supplied the missing names are padded by
// repeating the last supplied name (or DefaultDatabaseName when the list is
// empty). This is deliberate best-effort padding, not silent dropping: the
// common deployment shares one logical database name across all shards and
// only lists it once.
func Load(uris []string, names []string, ceilingBytes uint64) (*DescriptorStore, error) {
	if len(uris) == 0 {
		return nil, ErrEmptyTopology
	}
	if len(names) > len(uris) {
		return nil, ErrTooManyNames.WithCausef("%d names for %d uris", len(names), len(uris))
	}

	descriptors := make([]ShardDescriptor, 0, len(uris))
	lastName := DefaultDatabaseName
	for i, uri := range uris {
		if err := validateURI(uri); err != nil {
			return nil, err
		}

		name := lastName
		if i < len(names) {
			name = names[i]
			lastName = name
		}

		descriptors = append(descriptors, ShardDescriptor{
			ID:           ShardID(i),
			URI:          uri,
			DatabaseName: name,
			CeilingBytes: ceilingBytes,
		})
	}

	return &DescriptorStore{descriptors: descriptors}, nil
}

func validateURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return ErrInvalidShardURI.WithCause(err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return ErrInvalidShardURI.WithCausef("unsupported scheme %q in %q", u.Scheme, RedactURI(uri))
	}
	if u.Host == "" {
		return ErrInvalidShardURI.WithCausef("missing host in %q", RedactURI(uri))
	}
	return nil
}

// RedactURI strips credentials from a connection uri so it is safe for logs
// and the operator surface.
func RedactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return uri
	}
	// Keep the username but never the password. The userinfo is spliced by
	// hand because url.UserPassword would percent-encode the placeholder.
	username := u.User.Username()
	u.User = nil
	scheme := u.Scheme + "://"
	return scheme + username + ":***@" + strings.TrimPrefix(u.String(), scheme)
}

func (s *DescriptorStore) List() []ShardDescriptor {
	return s.descriptors
}

func (s *DescriptorStore) Get(id ShardID) (ShardDescriptor, bool) {
	if int(id) >= len(s.descriptors) {
		return ShardDescriptor{}, false
	}
	return s.descriptors[id], true
}

func (s *DescriptorStore) Len() int {
	return len(s.descriptors)
}
