// Package chain wraps key handling and transaction broadcast against the
// chain RPC node.
package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TxPayload is a venue-built transaction ready for signing.
type TxPayload struct {
	To       string
	Data     string
	Value    string
	GasPrice string
}

// Signer holds a wallet key and broadcasts transactions through an RPC node.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	client  *ethclient.Client
	logger  *zap.Logger
}

// NewSigner parses the hex private key and connects to the RPC node.
func NewSigner(privateKeyHex, nodeURL string, chainID int64, logger *zap.Logger) (*Signer, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	client, err := ethclient.Dial(nodeURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to RPC node %s", nodeURL)
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
		client:  client,
		logger:  logger,
	}, nil
}

// DeriveAddress returns the checksummed address for a hex private key
// without constructing a signer.
func DeriveAddress(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse private key")
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// Address returns the wallet address of the signing key.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignHash signs a 32-byte hash with the wallet key.
func (s *Signer) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, s.key)
}

// SendTransaction signs and broadcasts a venue-built payload using the
// pending nonce. On failure the error carries the payload and nonce.
func (s *Signer) SendTransaction(ctx context.Context, payload TxPayload) (string, error) {
	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", errors.Wrap(err, "failed to read pending nonce")
	}

	s.logger.Info("broadcasting transaction",
		zap.String("to", payload.To),
		zap.Uint64("nonce", nonce))

	to := common.HexToAddress(payload.To)
	data, err := hexutil.Decode(payload.Data)
	if err != nil {
		return "", errors.Wrapf(err, "malformed transaction data (to=%s nonce=%d)", payload.To, nonce)
	}

	value := big.NewInt(0)
	if payload.Value != "" {
		if _, ok := value.SetString(payload.Value, 10); !ok {
			return "", errors.Errorf("malformed transaction value %q (to=%s nonce=%d)", payload.Value, payload.To, nonce)
		}
	}

	gasPrice := new(big.Int)
	if payload.GasPrice != "" {
		if _, ok := gasPrice.SetString(payload.GasPrice, 10); !ok {
			return "", errors.Errorf("malformed gas price %q (to=%s nonce=%d)", payload.GasPrice, payload.To, nonce)
		}
	} else {
		gasPrice, err = s.client.SuggestGasPrice(ctx)
		if err != nil {
			return "", errors.Wrapf(err, "failed to suggest gas price (to=%s nonce=%d)", payload.To, nonce)
		}
	}

	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return "", errors.Wrapf(err, "gas estimation failed (to=%s data=%s nonce=%d)", payload.To, payload.Data, nonce)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return "", errors.Wrapf(err, "transaction signing failed (to=%s data=%s nonce=%d)", payload.To, payload.Data, nonce)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return "", errors.Wrapf(err, "transaction broadcast failed (to=%s data=%s nonce=%d)", payload.To, payload.Data, nonce)
	}

	return signedTx.Hash().Hex(), nil
}
