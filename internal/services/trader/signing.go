package trader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// SourceMainnet source tag of actions signed for mainnet.
	SourceMainnet = "a"
	// SourceTestnet source tag of actions signed for testnet.
	SourceTestnet = "b"

	exchangeDomainName    = "Exchange"
	exchangeDomainVersion = "1"
	exchangeChainID       = 1337
	zeroContract          = "0x0000000000000000000000000000000000000000"

	signatureHexLen = 132 // 0x + r(64) + s(64) + v(2)
)

// Signature signature split into its fixed-width components.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// SignedOrderRequest body posted to the exchange. Built once per attempt.
type SignedOrderRequest struct {
	Action       OrderAction `json:"action"`
	Nonce        uint64      `json:"nonce"`
	Signature    Signature   `json:"signature"`
	VaultAddress *string     `json:"vaultAddress"`
}

// actionHash keccak256(msgpack(action) || nonce(8 bytes BE) || 0x00): the
// connectionId committing the agent message to this action and nonce.
func actionHash(action OrderAction, nonce uint64) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, errors.Wrap(err, "msgpack encode action")
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	buf.Write(n[:])
	// no vault address
	buf.WriteByte(0x00)

	return crypto.Keccak256(buf.Bytes()), nil
}

// typedDataForAction builds the EIP-712 agent message for action signed under nonce.
func typedDataForAction(action OrderAction, nonce uint64, source string) (apitypes.TypedData, error) {
	hash, err := actionHash(action, nonce)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              exchangeDomainName,
			Version:           exchangeDomainVersion,
			ChainId:           math.NewHexOrDecimal256(exchangeChainID),
			VerifyingContract: zeroContract,
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": hexutil.Encode(hash),
		},
	}, nil
}

// SplitSignature decomposes a 65-byte hex signature into r, s and v.
func SplitSignature(sig string) (Signature, error) {
	sig = strings.TrimSpace(sig)
	if !strings.HasPrefix(sig, "0x") {
		sig = "0x" + sig
	}
	if len(sig) != signatureHexLen {
		return Signature{}, fmt.Errorf("signature must be %d hex chars, got %d", signatureHexLen, len(sig))
	}
	if _, err := hexutil.Decode(sig); err != nil {
		return Signature{}, errors.Wrap(err, "signature is not hex")
	}

	v, err := strconv.ParseUint(sig[130:132], 16, 8)
	if err != nil {
		return Signature{}, errors.Wrap(err, "parse v")
	}
	if v < 27 {
		v += 27
	}

	return Signature{
		R: sig[0:66],
		S: "0x" + sig[66:130],
		V: int(v),
	}, nil
}
