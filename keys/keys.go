// Package keys stores the node's ed25519 key as a raw 32-byte seed file
// readable only by its owner.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/types"
)

var (
	ErrKeyNotFound      = errors.New("key file not found")
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrKeyExists        = errors.New("key file already exists")
)

// Key is a loaded signing key.
type Key struct {
	PrivateKey ed25519.PrivateKey
	Address    types.Address
}

func fromSeed(seed []byte) *Key {
	priv := ed25519.NewKeyFromSeed(seed)
	return &Key{
		PrivateKey: priv,
		Address:    types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey)),
	}
}

// Generate writes a fresh key to path. It refuses to overwrite an existing
// file.
func Generate(path string) (*Key, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Wrapf(ErrKeyExists, "%s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrapf(err, "create key directory %s", filepath.Dir(path))
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "generate key")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "create key file %s", path)
	}
	if _, err := f.Write(seed); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "write key file %s", path)
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrapf(err, "write key file %s", path)
	}
	return fromSeed(seed), nil
}

// Load reads the key at path.
func Load(path string) (*Key, error) {
	seed, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", path)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidKeyLength, "%s has %d bytes, want %d", path, len(seed), ed25519.SeedSize)
	}
	return fromSeed(seed), nil
}

// LoadOrGenerate loads the key at path, creating it first if it is absent.
func LoadOrGenerate(path string) (key *Key, created bool, err error) {
	key, err = Load(path)
	if errors.Is(err, ErrKeyNotFound) {
		key, err = Generate(path)
		return key, err == nil, err
	}
	return key, false, err
}
