package awsv4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Vector(t *testing.T) {
	digest := HexString(Sha256([]byte("hello world")))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", digest)
}

func TestHmacSHA256Vector(t *testing.T) {
	digest := HexString(HmacSHA256([]byte("secret 1"), []byte("hello world")))
	assert.Equal(t, "0335641ddad0022d6fc1fbeaa3d322a7ae8b651b6455e582bc50af2b9e890dc8", digest)
}

func TestHmacChainVector(t *testing.T) {
	chain, err := HmacChain([]byte("secret 1"), []byte("hello world"), []byte("secret 2"))
	require.NoError(t, err)
	assert.Equal(t, "c74fb55d0d78a3e0c524404012d3139b04e2d534cee19525a0228ebc80a769b3", HexString(chain))
}

func TestHmacChainSingleMessageEqualsHmac(t *testing.T) {
	chain, err := HmacChain([]byte("secret 1"), []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, HexString(HmacSHA256([]byte("secret 1"), []byte("hello world"))), HexString(chain))
}

func TestHmacChainRequiresMessage(t *testing.T) {
	_, err := HmacChain([]byte("seed"))
	assert.ErrorIs(t, err, ErrChainTooShort)
}

func TestHexStringLowercase(t *testing.T) {
	assert.Equal(t, "00ff10", HexString([]byte{0x00, 0xFF, 0x10}))
}
