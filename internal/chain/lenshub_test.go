package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/lenspost/lenspost/pkg/types"
)

var hubAddr = common.HexToAddress("0x60Ae865ee4C725cd04353b5AAb364553f56ceF82")

func testValue() types.PostWithSigValue {
	return types.PostWithSigValue{
		Nonce:                   4,
		Deadline:                1700000000,
		ProfileID:               "0x15",
		ContentURI:              "ipfs://QmTest",
		CollectModule:           "0x0BE6bD7092ee83D44a6eC1D949626FeE48caB30c",
		CollectModuleInitData:   "0x0000000000000000000000000000000000000000000000000000000000000001",
		ReferenceModule:         "0x0000000000000000000000000000000000000000",
		ReferenceModuleInitData: "0x",
	}
}

func testTypedData() types.PostTypedData {
	return types.PostTypedData{
		Types: map[string][]types.TypedDataField{"PostWithSig": PostWithSigTypes},
		Domain: types.TypedDataDomain{
			Name:              "Lens Protocol Profiles",
			ChainID:           80001,
			Version:           "1",
			VerifyingContract: hubAddr.Hex(),
		},
		Value: testValue(),
	}
}

func TestLensHubABI(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(LensHubABI))
	if err != nil {
		t.Fatalf("failed to parse ABI: %v", err)
	}
	for _, name := range []string{"postWithSig", "getPubCount"} {
		if _, ok := parsed.Methods[name]; !ok {
			t.Errorf("ABI missing method %s", name)
		}
	}

	want := crypto.Keccak256([]byte("postWithSig((uint256,string,address,bytes,address,bytes,(uint8,bytes32,bytes32,uint256)))"))[:4]
	if !bytes.Equal(parsed.Methods["postWithSig"].ID, want) {
		t.Errorf("unexpected postWithSig selector %x", parsed.Methods["postWithSig"].ID)
	}
}

func TestBuildPostWithSigData(t *testing.T) {
	sig := Signature{V: 28}
	sig.R[0], sig.S[0] = 0xaa, 0xbb

	data, err := BuildPostWithSigData(testValue(), sig)
	if err != nil {
		t.Fatalf("BuildPostWithSigData failed: %v", err)
	}

	if data.ProfileId.Cmp(big.NewInt(0x15)) != 0 {
		t.Errorf("unexpected profile id %s", data.ProfileId)
	}
	if data.ContentURI != "ipfs://QmTest" {
		t.Errorf("unexpected content URI %s", data.ContentURI)
	}
	if len(data.CollectModuleInitData) != 32 || data.CollectModuleInitData[31] != 1 {
		t.Errorf("unexpected collect init data %x", data.CollectModuleInitData)
	}
	if len(data.ReferenceModuleInitData) != 0 {
		t.Errorf("expected empty reference init data, got %x", data.ReferenceModuleInitData)
	}
	if data.Sig.V != 28 || data.Sig.R[0] != 0xaa || data.Sig.S[0] != 0xbb {
		t.Errorf("signature not carried over: %+v", data.Sig)
	}
	if data.Sig.Deadline.Int64() != 1700000000 {
		t.Errorf("unexpected deadline %s", data.Sig.Deadline)
	}
}

func TestBuildPostWithSigDataInvalid(t *testing.T) {
	v := testValue()
	v.ProfileID = "not-a-number"
	if _, err := BuildPostWithSigData(v, Signature{V: 27}); err == nil {
		t.Error("expected error for invalid profile id")
	}

	v = testValue()
	v.CollectModule = "0x123"
	if _, err := BuildPostWithSigData(v, Signature{V: 27}); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestPackPostWithSig(t *testing.T) {
	hub := NewMockLensHub(hubAddr, LensHubOptions{})

	data, err := BuildPostWithSigData(testValue(), Signature{V: 27})
	if err != nil {
		t.Fatal(err)
	}

	input, err := hub.PackPostWithSig(data)
	if err != nil {
		t.Fatalf("PackPostWithSig failed: %v", err)
	}
	if !bytes.Equal(input[:4], hub.contractABI.Methods["postWithSig"].ID) {
		t.Error("calldata should start with postWithSig selector")
	}

	args, err := hub.contractABI.Methods["postWithSig"].Inputs.Unpack(input[4:])
	if err != nil {
		t.Fatalf("failed to unpack calldata: %v", err)
	}
	if len(args) != 1 {
		t.Fatalf("expected one tuple argument, got %d", len(args))
	}
}

func TestMockPostWithSig(t *testing.T) {
	hub := NewMockLensHub(hubAddr, LensHubOptions{})
	ctx := context.Background()

	data, _ := BuildPostWithSigData(testValue(), Signature{V: 27})

	h1, err := hub.PostWithSig(ctx, data)
	if err != nil {
		t.Fatalf("PostWithSig failed: %v", err)
	}
	h2, _ := hub.PostWithSig(ctx, data)
	if h1 == (common.Hash{}) || h1 == h2 {
		t.Errorf("expected distinct non-zero hashes, got %s and %s", h1.Hex(), h2.Hex())
	}

	if got := len(hub.Submitted()); got != 2 {
		t.Errorf("expected 2 submissions, got %d", got)
	}
	count, err := hub.PubCount(ctx, big.NewInt(0x15))
	if err != nil || count.Int64() != 2 {
		t.Errorf("PubCount = %v, %v", count, err)
	}
	if !hub.IsMockMode() || hub.Address() != hubAddr {
		t.Error("unexpected mock hub state")
	}
}

func TestMockPostWithSigWaitConfirmsPubCount(t *testing.T) {
	hub := NewMockLensHub(hubAddr, LensHubOptions{WaitForReceipt: true})
	ctx := context.Background()

	data, _ := BuildPostWithSigData(testValue(), Signature{V: 27})
	if _, err := hub.PostWithSig(ctx, data); err != nil {
		t.Fatalf("PostWithSig failed: %v", err)
	}
	count, err := hub.PubCount(ctx, data.ProfileId)
	if err != nil || count.Int64() != 1 {
		t.Errorf("PubCount = %v, %v", count, err)
	}
}

func TestCheckPubCount(t *testing.T) {
	tests := []struct {
		name          string
		before, after int64
		wantErr       bool
	}{
		{"increased", 3, 4, false},
		{"unchanged", 3, 3, true},
		{"decreased", 3, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPubCount(big.NewInt(tt.before), big.NewInt(tt.after))
			if tt.wantErr != (err != nil) {
				t.Fatalf("checkPubCount(%d, %d) = %v", tt.before, tt.after, err)
			}
			if err != nil && !errors.Is(err, ErrPubCountUnchanged) {
				t.Errorf("expected ErrPubCountUnchanged, got %v", err)
			}
		})
	}
}

func TestToAPITypesHashes(t *testing.T) {
	td := ToAPITypes(testTypedData())

	if td.PrimaryType != PostWithSigPrimaryType {
		t.Errorf("unexpected primary type %s", td.PrimaryType)
	}
	if _, ok := td.Types["EIP712Domain"]; !ok {
		t.Error("EIP712Domain type should be added")
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		t.Fatalf("typed data should hash: %v", err)
	}

	// Signing the hash and recovering must yield the signer.
	key, _ := crypto.GenerateKey()
	sig, _ := crypto.Sign(hash, key)
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		t.Fatal(err)
	}
	if crypto.PubkeyToAddress(*pub) != crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("recovered signer mismatch")
	}
}

func TestToAPITypesDefaultsPostWithSig(t *testing.T) {
	td := testTypedData()
	td.Types = nil
	td.Value.ReferenceModule = ""

	out := ToAPITypes(td)
	if len(out.Types[PostWithSigPrimaryType]) != len(PostWithSigTypes) {
		t.Error("missing PostWithSig type should default to the canonical layout")
	}
	if _, _, err := apitypes.TypedDataAndHash(out); err != nil {
		t.Errorf("defaulted typed data should hash: %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil)
	if c.ChainID().Int64() != 80001 {
		t.Errorf("expected Mumbai chain id, got %s", c.ChainID())
	}
	if c.IsConnected() {
		t.Error("client should start disconnected")
	}
	if _, err := c.TransactOpts(context.Background(), nil); err == nil {
		t.Error("expected error without key")
	}
}
