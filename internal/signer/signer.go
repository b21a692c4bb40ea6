package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the process wallet identity. It is built once at startup and is
// safe for concurrent use because nothing in it changes after construction.
type Signer struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	chainID         *big.Int
	domainSeparator common.Hash
	authSigner      auth.Signer
}

// NewSigner derives the identity from a key already validated by keyguard.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	// 1. Parse Private Key
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	bare := strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X")
	key, err := crypto.HexToECDSA(bare)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	// 2. Derive Address
	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	address := crypto.PubkeyToAddress(*publicKeyECDSA)

	// 3. SDK signer for L2 request auth
	authSigner, err := auth.NewPrivateKeySigner(bare, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build sdk signer: %w", err)
	}

	return &Signer{
		key:             key,
		address:         address,
		chainID:         big.NewInt(chainID),
		domainSeparator: domainSeparator(chainID),
		authSigner:      authSigner,
	}, nil
}

// domainSeparator computes
// keccak256(abi.encode(EIP712DomainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract))
func domainSeparator(chainID int64) common.Hash {
	domainData := make([]byte, 32*5)
	copy(domainData[0:32], EIP712DomainTypeHash.Bytes())
	copy(domainData[32:64], crypto.Keccak256Hash([]byte(EIP712DomainName)).Bytes())
	copy(domainData[64:96], crypto.Keccak256Hash([]byte(EIP712DomainVersion)).Bytes())
	copy(domainData[96:128], math.U256Bytes(big.NewInt(chainID)))

	verifyingAddr := common.HexToAddress(ExchangeContractAddress)
	copy(domainData[128+12:160], verifyingAddr.Bytes())

	return crypto.Keccak256Hash(domainData)
}

// SignOrder calculates the EIP-712 hash of a CTF exchange order and signs it.
func (s *Signer) SignOrder(order *Order) (string, error) {
	if order == nil {
		return "", fmt.Errorf("order is required")
	}
	hashStruct := hashOrder(order)

	// keccak256("\x19\x01" + domainSeparator + hashStruct)
	finalHash := crypto.Keccak256([]byte{0x19, 0x01}, s.domainSeparator.Bytes(), hashStruct)
	return s.sign(finalHash)
}

// SignMessage produces an EIP-191 personal_sign signature over msg.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	return s.sign(accounts.TextHash(msg))
}

func (s *Signer) sign(digest []byte) (string, error) {
	signature, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", err
	}
	// crypto.Sign returns V as 0/1; verifiers on Polygon expect 27/28.
	if signature[64] < 27 {
		signature[64] += 27
	}
	return hexutil.Encode(signature), nil
}

// hashOrder calculates hashStruct(order)
// keccak256(abi.encode(typeHash, salt, maker, ...))
func hashOrder(order *Order) []byte {
	// 12 fields + typeHash, 32 bytes each
	data := make([]byte, 32*13)
	copy(data[0:32], OrderTypeHash.Bytes())

	putUint := func(slot int, v *big.Int) {
		if v != nil {
			copy(data[slot*32:(slot+1)*32], math.U256Bytes(new(big.Int).Set(v)))
		}
	}
	putAddr := func(slot int, a common.Address) {
		copy(data[slot*32+12:(slot+1)*32], a.Bytes())
	}

	putUint(1, order.Salt)
	putAddr(2, order.Maker)
	putAddr(3, order.Signer)
	putAddr(4, order.Taker)
	putUint(5, order.TokenID)
	putUint(6, order.MakerAmount)
	putUint(7, order.TakerAmount)
	putUint(8, order.Expiration)
	putUint(9, order.Nonce)
	putUint(10, order.FeeRateBps)
	putUint(11, big.NewInt(int64(order.Side)))
	putUint(12, big.NewInt(int64(order.SignatureType)))

	return crypto.Keccak256(data)
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) ChainID() int64 {
	return s.chainID.Int64()
}

// AuthSigner exposes the identity in the form the Polymarket SDK expects.
func (s *Signer) AuthSigner() auth.Signer {
	return s.authSigner
}
