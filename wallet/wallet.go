// Package wallet loads signing keys from a key file.
package wallet

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ClipFinance/stargate-bridger/chains/evm/signer"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Wallet is one account of the fleet.
type Wallet struct {
	Index  int           // Position in the key file, starting at 1.
	Signer signer.Signer // Holds the private key.
}

// Address returns the checksummed account address.
func (w *Wallet) Address() string {
	return w.Signer.Address().Hex()
}

// LoadFile reads keys from path.
//
// Parameters:
// - path: the key file, one hex key per line.
// - logger: the logger for load summaries.
//
// Returns:
// - []*Wallet: the wallets in file order.
// - error: an error if the file cannot be read or holds no usable key.
func LoadFile(path string, logger *logrus.Logger) ([]*Wallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open key file %s", path)
	}
	defer f.Close()

	wallets, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "key file %s", path)
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"wallets": len(wallets),
	}).Info("Wallets loaded")
	return wallets, nil
}

// Load parses keys from r. Blank lines and lines starting with # are ignored and a key
// repeated on a later line is loaded once. Errors name the line, never the key.
func Load(r io.Reader) ([]*Wallet, error) {
	var wallets []*Wallet
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		s, err := signer.NewSignerFromHex(text)
		if err != nil {
			return nil, errors.Wrapf(commonerrors.ErrInvalidKeyFormat, "line %d", line)
		}

		addr := s.Address().Hex()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		wallets = append(wallets, &Wallet{Index: len(wallets) + 1, Signer: s})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan keys")
	}

	if len(wallets) == 0 {
		return nil, errors.Wrap(commonerrors.ErrInvalidConfig, "no private keys")
	}
	return wallets, nil
}
