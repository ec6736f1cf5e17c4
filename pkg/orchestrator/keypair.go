package orchestrator

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/security"

	"golang.org/x/crypto/ssh"
)

const generatedKeyBits = 4096

// newEphemeralKeyPEM returns a throwaway PEM key good enough to stand
// up an SSHTransport before any real keypair has been persisted or
// generated.
func newEphemeralKeyPEM() ([]byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "generate placeholder ssh key", err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), nil
}

// loadPersistedPrivateKey decrypts the private key persisted under
// BucketConfig/ssh_private_key, if any. needsGeneratedKey reports
// that no private key is persisted, so the caller knows to generate
// one.
func loadPersistedPrivateKey(store *kvstore.Store) (key []byte, needsGeneratedKey bool, err error) {
	ciphertext, err := store.Get(kvstore.BucketConfig, []byte(keyPrivateKey))
	if err != nil {
		return nil, false, errs.Wrap(errs.Internal, "read ssh private key", err)
	}
	if len(ciphertext) == 0 {
		return nil, true, nil
	}
	encKey, err := store.Get(kvstore.BucketConfig, []byte(keyEncryptionKey))
	if err != nil {
		return nil, false, errs.Wrap(errs.Internal, "read encryption key", err)
	}
	if len(encKey) != 32 {
		return nil, false, errs.New(errs.Internal, "ssh private key present without encryption key")
	}
	mgr, err := security.NewManager(encKey)
	if err != nil {
		return nil, false, err
	}
	plaintext, err := mgr.Decrypt(ciphertext)
	if err != nil {
		return nil, false, errs.Wrap(errs.Internal, "decrypt ssh private key", err)
	}
	return plaintext, false, nil
}

// GenerateKey creates a fresh RSA keypair, persists the private key
// encrypted at rest and the public key in OpenSSH authorized_keys
// format, and swaps the live transport onto it ("generate-key").
func (o *Orchestrator) GenerateKey() (pubKey []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, generatedKeyBits)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "generate rsa key", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "derive ssh signer", err)
	}
	pub := ssh.MarshalAuthorizedKey(signer.PublicKey())

	if err := o.setPrivateKey(privPEM); err != nil {
		return nil, err
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keyPublicKey), pub); err != nil {
		return nil, errs.Wrap(errs.Internal, "persist ssh public key", err)
	}
	o.logger.Info().Msg("ssh keypair generated")
	return pub, nil
}

// SetPrivateKey installs an operator-supplied PEM private key
// ("set-priv-key -i <file>").
func (o *Orchestrator) SetPrivateKey(pemKey []byte) error {
	return o.setPrivateKey(pemKey)
}

func (o *Orchestrator) setPrivateKey(pemKey []byte) error {
	if err := o.transport.SetPrivateKey(pemKey); err != nil {
		return err
	}
	mgr, err := o.secretsManager()
	if err != nil {
		return err
	}
	ciphertext, err := mgr.Encrypt(pemKey)
	if err != nil {
		return errs.Wrap(errs.Internal, "encrypt ssh private key", err)
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keyPrivateKey), ciphertext); err != nil {
		return errs.Wrap(errs.Internal, "persist ssh private key", err)
	}
	return nil
}

// SetPublicKey records the public half of the active keypair for
// display only ("set-pub-key -i <file>"); it does not affect
// authentication, which is driven entirely by the private key.
func (o *Orchestrator) SetPublicKey(pubKey []byte) error {
	if err := o.store.Put(kvstore.BucketConfig, []byte(keyPublicKey), pubKey); err != nil {
		return errs.Wrap(errs.Internal, "persist ssh public key", err)
	}
	return nil
}

// GetPublicKey returns the public half of the active keypair
// ("get-pub-key").
func (o *Orchestrator) GetPublicKey() ([]byte, error) {
	data, err := o.store.Get(kvstore.BucketConfig, []byte(keyPublicKey))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "read ssh public key", err)
	}
	if len(data) == 0 {
		return nil, errs.New(errs.NotFound, "no ssh keypair configured")
	}
	return data, nil
}

// ClearKey removes the stored keypair ("clear-key"). A later
// operation against a host fails until a new key is set or generated.
func (o *Orchestrator) ClearKey() error {
	if err := o.store.Delete(kvstore.BucketConfig, []byte(keyPrivateKey)); err != nil {
		return errs.Wrap(errs.Internal, "clear ssh private key", err)
	}
	if err := o.store.Delete(kvstore.BucketConfig, []byte(keyPublicKey)); err != nil {
		return errs.Wrap(errs.Internal, "clear ssh public key", err)
	}
	o.logger.Info().Msg("ssh keypair cleared")
	return nil
}
