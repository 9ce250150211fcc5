package config

// Secret is a string that redacts itself everywhere it might be printed or
// logged, so credential values never end up in a log line or a String()
// dump even if a caller forgets to special-case them.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString backs %#v so Secret never leaks in debug-formatted structs either.
func (s Secret) GoString() string {
	return redacted
}

// MarshalJSON ensures secrets are redacted when marshaled to JSON.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
