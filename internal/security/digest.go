/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	digestIterations = 4096
	digestSize       = 32
	digestContext    = "TERMINAL_CREDENTIAL_"
)

// Digest derives the stored form of a PIN or password. The salt is a fixed
// context string plus the secret length, so equal secrets always produce
// equal digests.
func Digest(secret string) string {
	salt := []byte(fmt.Sprintf("%s%d", digestContext, len(secret)))
	key := pbkdf2.Key([]byte(secret), salt, digestIterations, digestSize, sha256.New)
	return hex.EncodeToString(key)
}

// Verify reports whether presented matches the stored digest. It never errors;
// an empty or malformed stored digest simply does not match.
func Verify(storedDigest, presented string) bool {
	if storedDigest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedDigest), []byte(Digest(presented))) == 1
}
