package domain

import "fmt"

// AuthorizationStatus mirrors the platform permission state for location.
type AuthorizationStatus int

const (
	NotDetermined AuthorizationStatus = iota
	Denied
	Restricted
	AuthorizedWhenInUse
	AuthorizedAlways
)

// Granted reports whether location may be read.
func (s AuthorizationStatus) Granted() bool {
	return s == AuthorizedWhenInUse || s == AuthorizedAlways
}

func (s AuthorizationStatus) String() string {
	switch s {
	case NotDetermined:
		return "not_determined"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	case AuthorizedWhenInUse:
		return "authorized_when_in_use"
	case AuthorizedAlways:
		return "authorized_always"
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s AuthorizationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseAuthorizationStatus accepts the names produced by String.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, error) {
	for st := NotDetermined; st <= AuthorizedAlways; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return NotDetermined, fmt.Errorf("unknown authorization status %q", s)
}

func (s *AuthorizationStatus) UnmarshalText(text []byte) error {
	st, err := ParseAuthorizationStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
