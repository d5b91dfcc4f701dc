package credential

import (
	"fmt"
	"slices"
	"strings"
)

// Type discriminates the credential variants.
type Type string

const (
	TypeNetwork   Type = "network"
	TypeVCenter   Type = "vcenter"
	TypeSatellite Type = "satellite"
	TypeOpenShift Type = "openshift"
	TypeAnsible   Type = "ansible"
	TypeRHACS     Type = "rhacs"
)

// AllTypes returns all valid credential types.
func AllTypes() []Type {
	return []Type{TypeNetwork, TypeVCenter, TypeSatellite, TypeOpenShift, TypeAnsible, TypeRHACS}
}

// IsValid checks if the credential type is valid.
func (t Type) IsValid() bool {
	return slices.Contains(AllTypes(), t)
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid credential type: %s", s)
	}
	return t, nil
}

// BecomeMethod is the privilege escalation method for network credentials.
type BecomeMethod string

const (
	BecomeSudo   BecomeMethod = "sudo"
	BecomeSu     BecomeMethod = "su"
	BecomePbrun  BecomeMethod = "pbrun"
	BecomePfexec BecomeMethod = "pfexec"
	BecomeDoas   BecomeMethod = "doas"
	BecomeDzdo   BecomeMethod = "dzdo"
	BecomeKsu    BecomeMethod = "ksu"
	BecomeRunas  BecomeMethod = "runas"
)

// AllBecomeMethods returns all valid become methods.
func AllBecomeMethods() []BecomeMethod {
	return []BecomeMethod{BecomeSudo, BecomeSu, BecomePbrun, BecomePfexec, BecomeDoas, BecomeDzdo, BecomeKsu, BecomeRunas}
}

// IsValid checks if the become method is valid.
func (m BecomeMethod) IsValid() bool {
	return slices.Contains(AllBecomeMethods(), m)
}

// String returns the string representation.
func (m BecomeMethod) String() string {
	return string(m)
}

// MaskedValue is what secret fields read back as through the API.
const MaskedValue = "********"
