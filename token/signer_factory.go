package token

import (
	"strings"

	"github.com/jrsteele09/go-auth-core/internal/config"
	"github.com/pkg/errors"
)

// NewSignerFromConfig builds the process-wide signer. A key file selects an
// asymmetric signer, otherwise the HMAC shared secret is required.
func NewSignerFromConfig(c config.TokenConfig) (Signer, error) {
	if path := c.GetJWTKeyFile(); path != "" {
		keyPair, err := LoadKeyPairFromFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "[NewSignerFromConfig] load key pair")
		}
		if alg := strings.ToUpper(c.GetJWTAlgorithm()); alg != "HS256" && alg != keyPair.Algorithm {
			return nil, errors.Errorf("[NewSignerFromConfig] key file is %s but JWT_ALGORITHM is %s", keyPair.Algorithm, alg)
		}
		return NewKeyPairSigner(keyPair), nil
	}

	if c.GetJWTSecret() == "" {
		return nil, errors.New("[NewSignerFromConfig] JWT_SECRET or JWT_KEY_FILE is required")
	}
	signer, err := NewHMACSigner(c.GetJWTSecret())
	if err != nil {
		return nil, err
	}
	return signer, nil
}
