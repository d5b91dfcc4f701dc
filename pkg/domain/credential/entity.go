// Package credential provides the credential aggregate: named, typed
// authentication material for inventory sources.
package credential

import (
	"time"

	"github.com/hostscout/api/pkg/crypto"
	"github.com/hostscout/api/pkg/domain/shared"
)

// Credential is a named authentication record for one source type.
// Which fields are meaningful depends on Type; fields outside the
// discriminated variant are dropped on write and absent on read.
type Credential struct {
	ID   shared.ID
	Name string
	Type Type

	// network, vcenter, satellite, ansible, openshift (user/pass form)
	Username string
	Password string

	// network only
	SSHKeyfile     string
	SSHKey         string
	SSHPassphrase  string
	BecomeMethod   BecomeMethod
	BecomeUser     string
	BecomePassword string

	// openshift (token form), rhacs
	AuthToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NetworkAuth carries the variant-specific fields of a network credential.
type NetworkAuth struct {
	Password       string
	SSHKeyfile     string
	SSHKey         string
	SSHPassphrase  string
	BecomeMethod   BecomeMethod
	BecomeUser     string
	BecomePassword string
}

// NewNetwork creates a network credential. Exactly one of password,
// ssh_keyfile or ssh_key must be set; a passphrase requires a key.
func NewNetwork(name, username string, auth NetworkAuth) (*Credential, error) {
	if name == "" {
		return nil, shared.NewValidationError("VALIDATION", "name is required")
	}
	if username == "" {
		return nil, shared.NewValidationError("VALIDATION", "username is required")
	}

	set := 0
	for _, v := range []string{auth.Password, auth.SSHKeyfile, auth.SSHKey} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, shared.NewValidationError("VALIDATION",
			"exactly one of password, ssh_keyfile or ssh_key must be provided")
	}
	if auth.SSHPassphrase != "" && auth.SSHKeyfile == "" && auth.SSHKey == "" {
		return nil, shared.NewValidationError("VALIDATION",
			"ssh_passphrase requires ssh_keyfile or ssh_key")
	}
	if auth.BecomeMethod == "" {
		auth.BecomeMethod = BecomeSudo
	}
	if !auth.BecomeMethod.IsValid() {
		return nil, shared.NewValidationError("VALIDATION", "invalid become_method")
	}
	if auth.BecomeUser == "" {
		auth.BecomeUser = "root"
	}

	now := time.Now()
	return &Credential{
		ID:             shared.NewID(),
		Name:           name,
		Type:           TypeNetwork,
		Username:       username,
		Password:       auth.Password,
		SSHKeyfile:     auth.SSHKeyfile,
		SSHKey:         auth.SSHKey,
		SSHPassphrase:  auth.SSHPassphrase,
		BecomeMethod:   auth.BecomeMethod,
		BecomeUser:     auth.BecomeUser,
		BecomePassword: auth.BecomePassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewUserPass creates a vcenter, satellite or ansible credential.
func NewUserPass(name string, credType Type, username, password string) (*Credential, error) {
	if name == "" {
		return nil, shared.NewValidationError("VALIDATION", "name is required")
	}
	if credType != TypeVCenter && credType != TypeSatellite && credType != TypeAnsible {
		return nil, shared.NewValidationError("VALIDATION", "invalid cred_type for user/password credential")
	}
	if username == "" || password == "" {
		return nil, shared.NewValidationError("VALIDATION", "username and password are required")
	}

	now := time.Now()
	return &Credential{
		ID:        shared.NewID(),
		Name:      name,
		Type:      credType,
		Username:  username,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewOpenShift creates an openshift credential from either an auth token
// or a username/password pair, never both.
func NewOpenShift(name, authToken, username, password string) (*Credential, error) {
	if name == "" {
		return nil, shared.NewValidationError("VALIDATION", "name is required")
	}
	hasToken := authToken != ""
	hasUserPass := username != "" && password != ""
	if hasToken == hasUserPass {
		return nil, shared.NewValidationError("VALIDATION",
			"either auth_token or username and password must be provided, not both")
	}

	now := time.Now()
	return &Credential{
		ID:        shared.NewID(),
		Name:      name,
		Type:      TypeOpenShift,
		Username:  username,
		Password:  password,
		AuthToken: authToken,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewRHACS creates an rhacs credential.
func NewRHACS(name, authToken string) (*Credential, error) {
	if name == "" {
		return nil, shared.NewValidationError("VALIDATION", "name is required")
	}
	if authToken == "" {
		return nil, shared.NewValidationError("VALIDATION", "auth_token is required")
	}

	now := time.Now()
	return &Credential{
		ID:        shared.NewID(),
		Name:      name,
		Type:      TypeRHACS,
		AuthToken: authToken,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// secretFields returns pointers to every secret field the variant carries.
func (c *Credential) secretFields() []*string {
	switch c.Type {
	case TypeNetwork:
		return []*string{&c.Password, &c.SSHKey, &c.SSHPassphrase, &c.BecomePassword}
	case TypeOpenShift:
		return []*string{&c.Password, &c.AuthToken}
	case TypeRHACS:
		return []*string{&c.AuthToken}
	default:
		return []*string{&c.Password}
	}
}

// EncryptSecrets encrypts every non-empty secret field in place.
// Already-encrypted values are left untouched.
func (c *Credential) EncryptSecrets(enc crypto.Encryptor) error {
	for _, field := range c.secretFields() {
		if *field == "" || crypto.IsEncrypted(*field) {
			continue
		}
		encrypted, err := enc.EncryptString(*field)
		if err != nil {
			return err
		}
		*field = encrypted
	}
	return nil
}

// DecryptSecrets decrypts every encrypted secret field in place.
func (c *Credential) DecryptSecrets(enc crypto.Encryptor) error {
	for _, field := range c.secretFields() {
		if *field == "" || !crypto.IsEncrypted(*field) {
			continue
		}
		plaintext, err := enc.DecryptString(*field)
		if err != nil {
			return err
		}
		*field = plaintext
	}
	return nil
}

// Masked returns a copy with every secret field replaced by the mask.
func (c *Credential) Masked() *Credential {
	masked := *c
	for _, field := range masked.secretFields() {
		if *field != "" {
			*field = MaskedValue
		}
	}
	return &masked
}

// HasSSHKey reports whether the credential authenticates with a key.
func (c *Credential) HasSSHKey() bool {
	return c.SSHKeyfile != "" || c.SSHKey != ""
}

// Update applies mutable fields. Type is immutable after creation.
func (c *Credential) Update(name string) error {
	if name == "" {
		return shared.NewValidationError("VALIDATION", "name is required")
	}
	c.Name = name
	c.UpdatedAt = time.Now()
	return nil
}
