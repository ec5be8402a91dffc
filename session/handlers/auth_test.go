package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyChallengeAcceptsValidSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey(Curve)
	require.NoError(t, err)

	var challenge [32]byte
	_, err = rand.Read(challenge[:])
	require.NoError(t, err)

	digest := sha256.Sum256(challenge[:])
	sig, err := priv.Sign(digest[:])
	require.NoError(t, err)

	ok := verifyChallenge(priv.PubKey().ToECDSA(), challenge[:], sig.Serialize())
	assert.True(t, ok)
}

func TestVerifyChallengeRejectsSingleBitFlip(t *testing.T) {
	priv, err := btcec.NewPrivateKey(Curve)
	require.NoError(t, err)

	var challenge [32]byte
	_, err = rand.Read(challenge[:])
	require.NoError(t, err)

	digest := sha256.Sum256(challenge[:])
	sig, err := priv.Sign(digest[:])
	require.NoError(t, err)

	flipped := make([]byte, len(challenge))
	copy(flipped, challenge[:])
	flipped[0] ^= 0x01

	ok := verifyChallenge(priv.PubKey().ToECDSA(), flipped, sig.Serialize())
	assert.False(t, ok, "a single flipped bit in the challenge must invalidate the signature")
}

func TestVerifyChallengeIsDeterministic(t *testing.T) {
	priv, err := btcec.NewPrivateKey(Curve)
	require.NoError(t, err)

	var challenge [32]byte
	_, err = rand.Read(challenge[:])
	require.NoError(t, err)

	digest := sha256.Sum256(challenge[:])
	sig, err := priv.Sign(digest[:])
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.True(t, verifyChallenge(priv.PubKey().ToECDSA(), challenge[:], sig.Serialize()))
	}
}

func TestVerifyChallengeRejectsMalformedSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey(Curve)
	require.NoError(t, err)
	ok := verifyChallenge(priv.PubKey().ToECDSA(), []byte("not a real challenge"), []byte{0x01, 0x02})
	assert.False(t, ok)
}
