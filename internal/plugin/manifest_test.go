package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifier_DigestMismatchRegardlessOfSignature(t *testing.T) {
	v := &Verifier{RequireSignatures: false}
	wasm := []byte("not empty module bytes")
	m := Manifest{WasmDigest: "00" + repeat("0", 62)}

	err := v.Verify(m, wasm)
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, DigestMismatch, ve.Code)
}

func TestVerifier_InvalidDigestFormat(t *testing.T) {
	v := &Verifier{RequireSignatures: false}
	err := v.Verify(Manifest{WasmDigest: "not-hex"}, []byte("x"))
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, InvalidDigestFormat, ve.Code)
}

func TestVerifier_RequiresSignatureAndSbom(t *testing.T) {
	v := NewVerifier(nil)
	wasm := []byte("module")
	digest := sha256.Sum256(wasm)

	err := v.Verify(Manifest{WasmDigest: hex.EncodeToString(digest[:])}, wasm)
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, MissingSignature, ve.Code)

	err = v.Verify(Manifest{WasmDigest: hex.EncodeToString(digest[:]), Signature: "c2ln"}, wasm)
	require.ErrorAs(t, err, &ve)
	require.Equal(t, MissingSbom, ve.Code)
}

func TestVerifier_StubBundleVerifierFailsClosed(t *testing.T) {
	v := NewVerifier(nil)
	wasm := []byte("module")
	digest := sha256.Sum256(wasm)

	m := Manifest{
		WasmDigest: hex.EncodeToString(digest[:]),
		Signature:  "c2ln", // valid base64, arbitrary content
		SBOMRef:    "sbom://example",
	}
	err := v.Verify(m, wasm)
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, InvalidSignature, ve.Code)
}

func TestVerifier_OversizedSignature(t *testing.T) {
	v := &Verifier{RequireSignatures: false}
	wasm := []byte("module")
	digest := sha256.Sum256(wasm)

	big := make([]byte, maxSignatureBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	m := Manifest{WasmDigest: hex.EncodeToString(digest[:]), Signature: string(big)}
	err := v.Verify(m, wasm)
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, OversizedSignature, ve.Code)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
