package orchestrator

// Keys under kvstore.BucketConfig. Unexported: every value here is
// reached only through an Orchestrator method, never read directly by
// another package.
const (
	keyEncryptionKey = "encryption_key"

	keyPrivateKey = "ssh_private_key"
	keyPublicKey  = "ssh_public_key"
	keySSHConfig  = "ssh_config"
	keySSHUser    = "ssh_user"

	keyRegistryURL      = "registry_url"
	keyRegistryUsername = "registry_username"
	keyRegistryPassword = "registry_password"
)
