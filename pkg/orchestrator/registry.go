package orchestrator

import (
	"encoding/json"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/kvstore"
)

// SetUser changes the SSH user used to reach every managed host
// ("set-user <u>"), taking effect on the next connection.
func (o *Orchestrator) SetUser(user string) error {
	if user == "" {
		return errs.New(errs.InvalidArg, "user must not be empty")
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keySSHUser), []byte(user)); err != nil {
		return errs.Wrap(errs.Internal, "persist ssh user", err)
	}
	o.transport.SetConfig(user, 0, 0)
	return nil
}

// GetUser returns the SSH user currently configured ("get-user"),
// falling back to the process default when none has been set.
func (o *Orchestrator) GetUser() (string, error) {
	data, err := o.store.Get(kvstore.BucketConfig, []byte(keySSHUser))
	if err != nil {
		return "", errs.Wrap(errs.Internal, "read ssh user", err)
	}
	if len(data) == 0 {
		return o.cfg.SSHUser, nil
	}
	return string(data), nil
}

// registryCreds is the JSON shape accepted by "registry-login -i
// <json>" and persisted at rest, mirroring the wire agent protocol's
// registry-login payload.
type registryCreds struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegistryLogin persists container registry credentials, encrypting
// the password at rest, and marks every known host as needing a
// registry-login on its next refresh pass ("registry-login").
func (o *Orchestrator) RegistryLogin(url, username, password string) error {
	if url == "" || username == "" || password == "" {
		return errs.New(errs.InvalidArg, "registry-login requires url, username and password")
	}
	mgr, err := o.secretsManager()
	if err != nil {
		return err
	}
	encPassword, err := mgr.Encrypt([]byte(password))
	if err != nil {
		return errs.Wrap(errs.Internal, "encrypt registry password", err)
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keyRegistryURL), []byte(url)); err != nil {
		return errs.Wrap(errs.Internal, "persist registry url", err)
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keyRegistryUsername), []byte(username)); err != nil {
		return errs.Wrap(errs.Internal, "persist registry username", err)
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keyRegistryPassword), encPassword); err != nil {
		return errs.Wrap(errs.Internal, "persist registry password", err)
	}
	for _, h := range o.inventory.All() {
		_ = o.hostcache.SetRegistryLoginNeeded(h.Hostname, true)
	}
	o.logger.Info().Str("registry", url).Msg("registry credentials updated")
	o.reconcile.Wake()
	return nil
}

// RegistryLoginFromJSON parses the -i <json> form of registry-login
// and delegates to RegistryLogin.
func (o *Orchestrator) RegistryLoginFromJSON(doc []byte) error {
	var creds registryCreds
	if err := json.Unmarshal(doc, &creds); err != nil {
		return errs.Wrap(errs.InvalidArg, "parse registry-login json", err)
	}
	return o.RegistryLogin(creds.URL, creds.Username, creds.Password)
}

// registryLoginPayload builds the stdin JSON the reconciler sends to
// the agent's "registry-login" command, decrypting the stored
// password on every call rather than caching it in memory.
func (o *Orchestrator) registryLoginPayload() ([]byte, bool) {
	url, err := o.store.Get(kvstore.BucketConfig, []byte(keyRegistryURL))
	if err != nil || len(url) == 0 {
		return nil, false
	}
	username, err := o.store.Get(kvstore.BucketConfig, []byte(keyRegistryUsername))
	if err != nil || len(username) == 0 {
		return nil, false
	}
	encPassword, err := o.store.Get(kvstore.BucketConfig, []byte(keyRegistryPassword))
	if err != nil || len(encPassword) == 0 {
		return nil, false
	}
	mgr, err := o.secretsManager()
	if err != nil {
		return nil, false
	}
	password, err := mgr.Decrypt(encPassword)
	if err != nil {
		return nil, false
	}
	payload, err := json.Marshal(registryCreds{URL: string(url), Username: string(username), Password: string(password)})
	if err != nil {
		return nil, false
	}
	return payload, true
}
