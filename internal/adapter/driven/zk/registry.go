package zk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VerifierRegistry = (*Registry)(nil)

const keyExt = ".vk"

// Registry maps (credential type, version) to a loaded verifier.
type Registry struct {
	verifiers map[string]driven.ProofVerifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]driven.ProofVerifier)}
}

// Register installs v for the given type and version, replacing any previous one.
func (r *Registry) Register(credType model.CredentialType, version string, v driven.ProofVerifier) {
	r.verifiers[registryKey(credType, version)] = v
}

// Verifier returns the verifier for credType and version.
func (r *Registry) Verifier(credType model.CredentialType, version string) (driven.ProofVerifier, error) {
	v, ok := r.verifiers[registryKey(credType, version)]
	if !ok {
		return nil, fmt.Errorf("%s version %s: %w", credType, version, model.ErrUnknownVerifier)
	}
	return v, nil
}

// Len returns the number of registered verifiers.
func (r *Registry) Len() int {
	return len(r.verifiers)
}

// LoadRegistry reads verifying keys laid out as <dir>/<TYPE>/<version>.vk.
// Directories that are not a known credential type are rejected so a typo
// cannot silently disable verification.
func LoadRegistry(dir string) (*Registry, error) {
	r := NewRegistry()

	typeDirs, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read verifying key dir: %w", err)
	}

	for _, td := range typeDirs {
		if !td.IsDir() {
			continue
		}

		credType := model.CredentialType(td.Name())
		if !credType.Valid() {
			return nil, fmt.Errorf("verifying key dir %q: unknown credential type", td.Name())
		}

		files, err := os.ReadDir(filepath.Join(dir, td.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s keys: %w", credType, err)
		}

		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != keyExt {
				continue
			}

			version := strings.TrimSuffix(f.Name(), keyExt)
			b, err := os.ReadFile(filepath.Join(dir, td.Name(), f.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s version %s key: %w", credType, version, err)
			}

			v, err := NewVerifier(b)
			if err != nil {
				return nil, fmt.Errorf("load %s version %s: %w", credType, version, err)
			}
			r.Register(credType, version, v)
		}
	}

	return r, nil
}

func registryKey(credType model.CredentialType, version string) string {
	return string(credType) + "/" + version
}
