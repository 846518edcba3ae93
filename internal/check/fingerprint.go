package check

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gopkg.in/yaml.v3"
)

// Fingerprint computes a SHA-256 hash identifying a set of definitions.
func Fingerprint(defs []Definition) (string, error) {
	if len(defs) == 0 {
		return "", errors.New("no definitions")
	}
	body, err := yaml.Marshal(SuiteFile{Checks: defs})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
