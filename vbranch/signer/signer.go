// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package signer implements vbranch/capability.Signer with OpenPGP detached
// signatures, grounded directly on the teacher's own commit-signing path
// (pkg/zeta/tree.go's buildCommitSignature: encode the commit, then
// openpgp.ArmoredDetachSign the encoded bytes against a caller-supplied
// *openpgp.Entity). This core only ever receives a SigningKey value — the
// armored private key material and an optional passphrase — and is
// responsible for turning that into the openpgp.Entity the detached-sign
// call needs.
package signer

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/antgroup/zeta-workspace/vbranch/capability"
)

// ErrNoPrivateKey is returned when a SigningKey carries no armored key
// material: signing was requested but there is nothing to sign with.
var ErrNoPrivateKey = errors.New("signer: signing key has no private key material")

// OpenPGP implements capability.Signer against github.com/ProtonMail/go-crypto.
// It is stateless; every Sign call re-parses the supplied key, so a caller
// juggling several signing keys across branches needs no separate instance
// per key.
type OpenPGP struct{}

var _ capability.Signer = OpenPGP{}

// Sign parses key.ArmoredPrivateKey into an OpenPGP entity (decrypting it
// with key.PassphraseFn if it is passphrase-protected) and produces an
// ASCII-armored detached signature over payload, the same shape the
// teacher's ExtraHeader{K: "gpgsig"} commit header expects.
func (OpenPGP) Sign(ctx context.Context, payload []byte, key capability.SigningKey) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(key.ArmoredPrivateKey) == 0 {
		return nil, ErrNoPrivateKey
	}
	entity, err := readEntity(key)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&out, entity, bytes.NewReader(payload), nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readEntity(key capability.SigningKey) (*openpgp.Entity, error) {
	list, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(key.ArmoredPrivateKey))
	if err != nil {
		return nil, err
	}
	entity := selectEntity(list, key.KeyID)
	if entity == nil {
		return nil, errors.New("signer: no matching key in armored key ring")
	}
	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if key.PassphraseFn == nil {
			return nil, errors.New("signer: private key is passphrase-protected and no PassphraseFn was supplied")
		}
		passphrase, err := key.PassphraseFn()
		if err != nil {
			return nil, err
		}
		if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// selectEntity returns the entity matching keyID (suffix-matched against
// each entity's own key id, since callers commonly supply the short form),
// or the key ring's sole entity when keyID is empty and exactly one entity
// was parsed.
func selectEntity(list openpgp.EntityList, keyID string) *openpgp.Entity {
	if keyID == "" {
		if len(list) == 1 {
			return list[0]
		}
		return nil
	}
	want := strings.ToUpper(keyID)
	for _, e := range list {
		if e.PrivateKey == nil {
			continue
		}
		got := strings.ToUpper(e.PrivateKey.KeyIdString())
		if got == want || strings.HasSuffix(got, want) {
			return e
		}
	}
	return nil
}
