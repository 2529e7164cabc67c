package crypto

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// Well-known hardhat account #0.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func ptr[T any](v T) *T { return &v }

func testSet() domain.OrderSet {
	above := domain.TriggerAbove
	return domain.OrderSet{
		ID:         "set-1",
		Wallet:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Subaccount: 2,
		Orders: []domain.SubmittedOrder{
			{Seq: 0, Order: domain.GeneratedOrder{
				MarketIndex: 0, Direction: domain.DirectionLong, Kind: domain.OrderKindLimit,
				Size: 1_000_000, Price: ptr(int64(25_000_000)), Tag: domain.LegTagPrimary,
			}},
			{Seq: 1, Order: domain.GeneratedOrder{
				MarketIndex: 0, Direction: domain.DirectionShort, Kind: domain.OrderKindTriggerMarket,
				Size: 1_000_000, TriggerPrice: ptr(int64(27_500_000)), TriggerCondition: &above,
				ReduceOnly: true, Tag: domain.LegTagTakeProfit,
			}},
		},
	}
}

func TestSignOrderSetRecoversAddress(t *testing.T) {
	s, err := NewSigner("0x"+testKey, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())

	set := testSet()
	sig, err := s.SignOrderSet(set)
	require.NoError(t, err)
	assert.Len(t, sig, 2+65*2)

	addr, err := RecoverAddress(s.Digest(set), sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)
}

func TestDigestDependsOnContent(t *testing.T) {
	s, err := NewSigner(testKey, 1)
	require.NoError(t, err)
	base := s.Digest(testSet())

	tests := []struct {
		name   string
		mutate func(*domain.OrderSet)
	}{
		{"set id", func(o *domain.OrderSet) { o.ID = "set-2" }},
		{"subaccount", func(o *domain.OrderSet) { o.Subaccount = 3 }},
		{"size", func(o *domain.OrderSet) { o.Orders[0].Order.Size++ }},
		{"reduce only", func(o *domain.OrderSet) { o.Orders[0].Order.ReduceOnly = true }},
		{"order swap", func(o *domain.OrderSet) { o.Orders[0], o.Orders[1] = o.Orders[1], o.Orders[0] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := testSet()
			tt.mutate(&set)
			assert.NotEqual(t, base, s.Digest(set))
		})
	}

	other, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	assert.NotEqual(t, base, other.Digest(testSet()), "chain id is part of the domain")
}

func TestIntTo32BytesSignExtends(t *testing.T) {
	neg := intTo32Bytes(-1)
	for _, b := range neg {
		assert.Equal(t, byte(0xff), b)
	}
	pos := intTo32Bytes(258)
	assert.Equal(t, byte(1), pos[30])
	assert.Equal(t, byte(2), pos[31])
	assert.Equal(t, byte(0), pos[0])
}

func TestRecoverAddressRejectsBadSignature(t *testing.T) {
	digest := ethcrypto.Keccak256([]byte("x"))
	_, err := RecoverAddress(digest, "0x1234")
	require.Error(t, err)
	_, err = RecoverAddress(digest, "zz")
	require.Error(t, err)
}

func TestHMACHeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "key-1", Secret: "c2VjcmV0", Passphrase: "pass"}

	h1, h2 := http.Header{}, http.Header{}
	auth.applyAt(h1, "0xabc", http.MethodPost, "/v1/orders", []byte(`{"a":1}`), 1700000000)
	auth.applyAt(h2, "0xabc", http.MethodPost, "/v1/orders", []byte(`{"a":1}`), 1700000000)

	assert.Equal(t, "key-1", h1.Get(HeaderAPIKey))
	assert.Equal(t, "1700000000", h1.Get(HeaderTimestamp))
	assert.Equal(t, "pass", h1.Get(HeaderPassphrase))
	assert.Equal(t, "0xabc", h1.Get(HeaderAddress))
	assert.NotEmpty(t, h1.Get(HeaderSignature))
	assert.Equal(t, h1.Get(HeaderSignature), h2.Get(HeaderSignature))

	h3 := http.Header{}
	auth.applyAt(h3, "", http.MethodPost, "/v1/orders", []byte(`{"a":2}`), 1700000000)
	assert.NotEqual(t, h1.Get(HeaderSignature), h3.Get(HeaderSignature))
	assert.Empty(t, h3.Get(HeaderAddress))
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "abcdefgh", Secret: "topsecretvalue"}
	s := auth.String()
	assert.NotContains(t, s, "topsecretvalue")
	assert.Contains(t, s, "abcd****")
}

func TestEncryptDecryptKey(t *testing.T) {
	data, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(data, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(data, "wrong")
	require.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	data, err := EncryptKey(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	tests := []struct {
		name    string
		cfg     KeyConfig
		want    string
		wantErr bool
	}{
		{"raw with prefix", KeyConfig{RawPrivateKey: "0x" + testKey}, testKey, false},
		{"raw wins over file", KeyConfig{RawPrivateKey: testKey, EncryptedKeyPath: "/nope"}, testKey, false},
		{"encrypted file", KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"}, testKey, false},
		{"short raw", KeyConfig{RawPrivateKey: "abcd"}, "", true},
		{"missing file", KeyConfig{EncryptedKeyPath: filepath.Join(t.TempDir(), "x"), KeyPassword: "pw"}, "", true},
		{"nothing", KeyConfig{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadKey(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
