package chain

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/lenspost/lenspost/pkg/types"
)

// PostWithSigPrimaryType is the EIP-712 primary type of a gasless post.
const PostWithSigPrimaryType = "PostWithSig"

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// PostWithSigTypes is the canonical PostWithSig struct layout.
var PostWithSigTypes = []types.TypedDataField{
	{Name: "profileId", Type: "uint256"},
	{Name: "contentURI", Type: "string"},
	{Name: "collectModule", Type: "address"},
	{Name: "collectModuleInitData", Type: "bytes"},
	{Name: "referenceModule", Type: "address"},
	{Name: "referenceModuleInitData", Type: "bytes"},
	{Name: "nonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
}

// EIP712Signature is the sig member of PostWithSigData.
type EIP712Signature struct {
	V        uint8    `abi:"v"`
	R        [32]byte `abi:"r"`
	S        [32]byte `abi:"s"`
	Deadline *big.Int `abi:"deadline"`
}

// PostWithSigData is the argument of LensHub.postWithSig.
type PostWithSigData struct {
	ProfileId               *big.Int        `abi:"profileId"`
	ContentURI              string          `abi:"contentURI"`
	CollectModule           common.Address  `abi:"collectModule"`
	CollectModuleInitData   []byte          `abi:"collectModuleInitData"`
	ReferenceModule         common.Address  `abi:"referenceModule"`
	ReferenceModuleInitData []byte          `abi:"referenceModuleInitData"`
	Sig                     EIP712Signature `abi:"sig"`
}

// ToAPITypes converts API typed data into the go-ethereum EIP-712 form.
// The EIP712Domain type is added when the API omits it.
func ToAPITypes(td types.PostTypedData) apitypes.TypedData {
	typesOut := apitypes.Types{"EIP712Domain": eip712DomainType}
	for name, fields := range td.Types {
		if name == "__typename" {
			continue
		}
		converted := make([]apitypes.Type, 0, len(fields))
		for _, f := range fields {
			converted = append(converted, apitypes.Type{Name: f.Name, Type: f.Type})
		}
		typesOut[name] = converted
	}
	if _, ok := typesOut[PostWithSigPrimaryType]; !ok {
		fields := make([]apitypes.Type, 0, len(PostWithSigTypes))
		for _, f := range PostWithSigTypes {
			fields = append(fields, apitypes.Type{Name: f.Name, Type: f.Type})
		}
		typesOut[PostWithSigPrimaryType] = fields
	}

	v := td.Value
	return apitypes.TypedData{
		Types:       typesOut,
		PrimaryType: PostWithSigPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              td.Domain.Name,
			Version:           td.Domain.Version,
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(td.Domain.ChainID)),
			VerifyingContract: td.Domain.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"profileId":               v.ProfileID,
			"contentURI":              v.ContentURI,
			"collectModule":           addressOrZero(v.CollectModule),
			"collectModuleInitData":   hexOrEmpty(v.CollectModuleInitData),
			"referenceModule":         addressOrZero(v.ReferenceModule),
			"referenceModuleInitData": hexOrEmpty(v.ReferenceModuleInitData),
			"nonce":                   strconv.FormatInt(v.Nonce, 10),
			"deadline":                strconv.FormatInt(v.Deadline, 10),
		},
	}
}

func addressOrZero(s string) string {
	if s == "" {
		return common.Address{}.Hex()
	}
	return s
}

func hexOrEmpty(s string) string {
	if s == "" {
		return "0x"
	}
	return s
}

// BuildPostWithSigData assembles the contract argument from the signed
// typed-data value and its split signature.
func BuildPostWithSigData(v types.PostWithSigValue, sig Signature) (PostWithSigData, error) {
	profileID, ok := math.ParseBig256(v.ProfileID)
	if !ok {
		return PostWithSigData{}, fmt.Errorf("invalid profile id %q", v.ProfileID)
	}

	collectModule, err := parseAddress("collectModule", v.CollectModule)
	if err != nil {
		return PostWithSigData{}, err
	}
	referenceModule, err := parseAddress("referenceModule", v.ReferenceModule)
	if err != nil {
		return PostWithSigData{}, err
	}

	collectInit, err := decodeBytes("collectModuleInitData", v.CollectModuleInitData)
	if err != nil {
		return PostWithSigData{}, err
	}
	referenceInit, err := decodeBytes("referenceModuleInitData", v.ReferenceModuleInitData)
	if err != nil {
		return PostWithSigData{}, err
	}

	return PostWithSigData{
		ProfileId:               profileID,
		ContentURI:              v.ContentURI,
		CollectModule:           collectModule,
		CollectModuleInitData:   collectInit,
		ReferenceModule:         referenceModule,
		ReferenceModuleInitData: referenceInit,
		Sig: EIP712Signature{
			V:        sig.V,
			R:        sig.R,
			S:        sig.S,
			Deadline: big.NewInt(v.Deadline),
		},
	}, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func decodeBytes(field, s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return b, nil
}
