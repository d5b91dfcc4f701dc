package network

import (
	"fmt"
	"strconv"

	"github.com/hostscout/api/pkg/domain/credential"
)

// Inventory variable names carried on each group. Backends read the
// ones they understand.
const (
	VarUsername       = "username"
	VarPassword       = "password"
	VarPrivateKeyFile = "ssh_private_key_file"
	VarPassphrase     = "ssh_passphrase"
	VarPort           = "port"
	VarBecomeMethod   = "become_method"
	VarBecomeUser     = "become_user"
	VarBecomePassword = "become_password"
)

// Group is one play's worth of hosts sharing connection variables.
type Group struct {
	Name  string
	Hosts []string
	Vars  map[string]string
}

// BuildInventory partitions hosts into ceil(N / maxConcurrency) groups
// of at most maxConcurrency hosts, each carrying the credential's
// connection variables. keyPath, when non-empty, overrides the
// credential's keyfile (used for in-memory keys materialized to disk).
func BuildInventory(hosts []string, cred *credential.Credential, port, maxConcurrency int, keyPath string) []Group {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	vars := map[string]string{
		VarUsername: cred.Username,
		VarPort:     strconv.Itoa(port),
	}
	switch {
	case keyPath != "":
		vars[VarPrivateKeyFile] = keyPath
	case cred.SSHKeyfile != "":
		vars[VarPrivateKeyFile] = cred.SSHKeyfile
	default:
		vars[VarPassword] = cred.Password
	}
	if cred.SSHPassphrase != "" {
		vars[VarPassphrase] = cred.SSHPassphrase
	}
	if cred.BecomeMethod != "" {
		vars[VarBecomeMethod] = cred.BecomeMethod.String()
	}
	if cred.BecomeUser != "" {
		vars[VarBecomeUser] = cred.BecomeUser
	}
	if cred.BecomePassword != "" {
		vars[VarBecomePassword] = cred.BecomePassword
	}

	var groups []Group
	for i := 0; i < len(hosts); i += maxConcurrency {
		end := i + maxConcurrency
		if end > len(hosts) {
			end = len(hosts)
		}
		groups = append(groups, Group{
			Name:  fmt.Sprintf("group_%d", len(groups)),
			Hosts: hosts[i:end],
			Vars:  vars,
		})
	}
	return groups
}
