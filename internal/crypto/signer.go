package crypto

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

const (
	domainName    = "perpdash"
	domainVersion = "1"
)

var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint16 marketIndex,uint8 direction,uint8 kind,int64 size,int64 price,int64 triggerPrice,uint8 triggerCondition,int64 oraclePriceOffset,bool reduceOnly)"),
	)
	orderSetTypeHash = ethcrypto.Keccak256(
		[]byte("OrderSet(string setId,address authority,uint32 subaccount,Order[] orders)Order(uint16 marketIndex,uint8 direction,uint8 kind,int64 size,int64 price,int64 triggerPrice,uint8 triggerCondition,int64 oraclePriceOffset,bool reduceOnly)"),
	)
)

// Signer signs order-set digests with the wallet key. The venue gateway
// checks the signature against the authority address before it forwards any
// leg of the set.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte
}

// NewSigner creates a Signer from a hex secp256k1 private key.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep:  domainSeparator(chainID),
	}, nil
}

// Address returns the wallet address of the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Digest returns the EIP-712 digest of an order set. Orders keep the
// submission order; reordering them changes the digest.
func (s *Signer) Digest(set domain.OrderSet) []byte {
	hashes := make([][]byte, len(set.Orders))
	for i, o := range set.Orders {
		hashes[i] = orderHash(o.Order)
	}
	structHash := ethcrypto.Keccak256(
		orderSetTypeHash,
		ethcrypto.Keccak256([]byte(set.ID)),
		common.LeftPadBytes(common.HexToAddress(set.Wallet).Bytes(), 32),
		uintTo32Bytes(uint64(set.Subaccount)),
		ethcrypto.Keccak256(hashes...),
	)
	return eip712Hash(s.domainSep, structHash)
}

// SignOrderSet signs the digest of set and returns a 0x-prefixed 65 byte
// signature with v in {27,28}.
func (s *Signer) SignOrderSet(set domain.OrderSet) (string, error) {
	sig, err := ethcrypto.Sign(s.Digest(set), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: %w: %v", domain.ErrSigningFailed, err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAddress returns the address that produced sig over digest.
func RecoverAddress(digest []byte, sig string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(raw) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: signature is %d bytes, want 65", len(raw))
	}
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

func domainSeparator(chainID int64) []byte {
	return ethcrypto.Keccak256(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(domainName)),
		ethcrypto.Keccak256([]byte(domainVersion)),
		common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32),
	)
}

// eip712Hash computes keccak256("\x19\x01" || domainSeparator || structHash).
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}

func orderHash(o domain.GeneratedOrder) []byte {
	var offset int64
	if o.OraclePriceOffset != nil {
		offset = *o.OraclePriceOffset
	}
	reduceOnly := uint64(0)
	if o.ReduceOnly {
		reduceOnly = 1
	}
	return ethcrypto.Keccak256(
		orderTypeHash,
		uintTo32Bytes(uint64(o.MarketIndex)),
		uintTo32Bytes(directionCode(o.Direction)),
		uintTo32Bytes(kindCode(o.Kind)),
		intTo32Bytes(o.Size),
		intTo32Bytes(o.PriceValue()),
		intTo32Bytes(o.TriggerValue()),
		uintTo32Bytes(conditionCode(o.TriggerCondition)),
		intTo32Bytes(offset),
		uintTo32Bytes(reduceOnly),
	)
}

func directionCode(d domain.Direction) uint64 {
	if d == domain.DirectionShort {
		return 1
	}
	return 0
}

func kindCode(k domain.OrderKind) uint64 {
	switch k {
	case domain.OrderKindLimit:
		return 1
	case domain.OrderKindTriggerMarket:
		return 2
	case domain.OrderKindTriggerLimit:
		return 3
	case domain.OrderKindOracle:
		return 4
	}
	return 0
}

func conditionCode(c *domain.TriggerCondition) uint64 {
	if c == nil {
		return 0
	}
	if *c == domain.TriggerAbove {
		return 1
	}
	return 2
}

func uintTo32Bytes(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

// intTo32Bytes sign-extends v to a 256-bit two's complement word.
func intTo32Bytes(v int64) []byte {
	b := make([]byte, 32)
	if v < 0 {
		for i := range 24 {
			b[i] = 0xff
		}
	}
	binary.BigEndian.PutUint64(b[24:], uint64(v))
	return b
}
