package export

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the signed metadata written alongside the acceptance ledger.
// Auditors verify the signature and the ledger digest before trusting the
// records.
type Manifest struct {
	Version          string    `yaml:"version"`
	CreatedAt        time.Time `yaml:"created_at"`
	Signer           string    `yaml:"signer,omitempty"`
	SigningPublicKey string    `yaml:"signing_public_key,omitempty"`
	Signature        string    `yaml:"signature,omitempty"`
	RecordCount      int       `yaml:"record_count"`
	LedgerSHA256     string    `yaml:"ledger_sha256"`
	LedgerSize       int64     `yaml:"ledger_size"`
}

// SigningBytes marshals the manifest without its signature, for signing and
// verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}
