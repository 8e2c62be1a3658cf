package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/afero"
)

const (
	AlgoSecp256k1 = "secp256k1" // settlement account
	AlgoBN254     = "bn254"     // transfer signing
)

var ErrWrongAlgo = errors.New("key file holds a different algorithm")

type KeyFile struct {
	Algo string `json:"algo"`
	Priv string `json:"priv_hex"`
	Pub  string `json:"pub_hex"`
}

// LoadOrCreateOperatorKey reads the settlement key at path, generating and
// saving a new one when the file does not exist.
func LoadOrCreateOperatorKey(fs afero.Fs, path string) (*ecdsa.PrivateKey, error) {
	kf, err := ReadKeyFile(fs, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate operator key: %w", err)
		}
		if err := WriteKeyFile(fs, path, OperatorKeyFile(key)); err != nil {
			return nil, err
		}
		return key, nil
	case err != nil:
		return nil, err
	}
	if kf.Algo != AlgoSecp256k1 {
		return nil, fmt.Errorf("%s: %w (%s)", path, ErrWrongAlgo, kf.Algo)
	}
	key, err := ethcrypto.HexToECDSA(kf.Priv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

func OperatorKeyFile(key *ecdsa.PrivateKey) KeyFile {
	return KeyFile{
		Algo: AlgoSecp256k1,
		Priv: hex.EncodeToString(ethcrypto.FromECDSA(key)),
		Pub:  ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

// LoadBLSKey reads a transfer signing key.
func LoadBLSKey(fs afero.Fs, path string) (*SecretKey, error) {
	kf, err := ReadKeyFile(fs, path)
	if err != nil {
		return nil, err
	}
	if kf.Algo != AlgoBN254 {
		return nil, fmt.Errorf("%s: %w (%s)", path, ErrWrongAlgo, kf.Algo)
	}
	b, err := hex.DecodeString(kf.Priv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return SecretKeyFromBytes(b)
}

func BLSKeyFile(sk *SecretKey) KeyFile {
	return KeyFile{
		Algo: AlgoBN254,
		Priv: hex.EncodeToString(sk.Bytes()),
		Pub:  hex.EncodeToString(sk.PublicKey().Bytes()),
	}
}

func ReadKeyFile(fs afero.Fs, path string) (KeyFile, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return KeyFile{}, err
	}
	var kf KeyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return KeyFile{}, fmt.Errorf("parse key file %s: %w", path, err)
	}
	return kf, nil
}

// WriteKeyFile stores kf readable by the owner only.
func WriteKeyFile(fs afero.Fs, path string, kf KeyFile) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, b, 0o600); err != nil {
		return fmt.Errorf("write key file %s: %w", path, err)
	}
	return nil
}
