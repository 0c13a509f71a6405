// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for data at
// rest. It wraps filippo.io/age for the operations the audit sink
// needs: generate an x25519 keypair, encrypt a segment to one or more
// recipients, and decrypt with a private key.
//
// Ciphertext is base64-encoded, matching the audit sink's
// line-oriented rotated segment format. Callers pass plaintext []byte
// to [Encrypt] and receive a base64 string; [Decrypt] accepts a base64
// string and returns plaintext.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a private key string
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Used by lib/avcaudit to optionally seal rotated audit segments so
// SID contexts are confidential at rest. Key distribution is out of
// scope: the caller supplies a pre-shared recipient public key through
// its own configuration.
package sealed
