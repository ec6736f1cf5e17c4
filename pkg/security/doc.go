/*
Package security implements at-rest encryption for the orchestrator's
two sensitive persisted values.

# Why this exists

Most of cephadmd's persisted state (hosts, specs, cache entries) is
operationally sensitive but not secret. Two things are secret: the SSH
private key used to reach every managed host, and any registry
password set via registry-login. Both live in kvstore's BucketConfig
alongside everything else, so they're encrypted before they're written.

# Usage

	mgr, err := security.NewManager(key) // 32 bytes, AES-256
	if err != nil {
		return err
	}
	ciphertext, err := mgr.Encrypt(privateKeyPEM)
	// ciphertext = nonce || AES-256-GCM(privateKeyPEM)

	plaintext, err := mgr.Decrypt(ciphertext)

A Manager can also be built from an operator-supplied passphrase via
NewManagerFromPassphrase, which derives the AES key with SHA-256.

# See also

pkg/orchestrator wires Manager into the SSH keypair and registry
credential commands (generate-key, set-priv-key, registry-login).
*/
package security
