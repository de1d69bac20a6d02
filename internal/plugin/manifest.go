// Package plugin implements the sandboxed WASM plugin host: offline
// manifest verification (spec.md §4.6 "Manifest verification") and a
// wazero-backed runner with fuel/epoch/memory caps
// (SPEC_FULL.md §4.6 "WASM engine").
package plugin

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/ziXnOrg/ORCA/internal/metrics"
)

// Manifest describes a plugin offered for execution (spec.md §3 Plugin
// manifest).
type Manifest struct {
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	WasmDigest string `json:"wasm_digest" yaml:"wasm_digest"`
	Signature  string `json:"signature,omitempty" yaml:"signature,omitempty"`
	SBOMRef    string `json:"sbom_ref,omitempty" yaml:"sbom_ref,omitempty"`
}

// ErrorCode is the taxonomy spec.md §4.6 requires. Every verification
// failure increments `plugin_verify_failures{error_code}`; no tracing
// span or span attribute is recorded.
type ErrorCode string

const (
	MissingSignature    ErrorCode = "MissingSignature"
	MissingSbom         ErrorCode = "MissingSbom"
	InvalidDigestFormat ErrorCode = "InvalidDigestFormat"
	DigestMismatch      ErrorCode = "DigestMismatch"
	OversizedSignature  ErrorCode = "OversizedSignature"
	InvalidSignature    ErrorCode = "InvalidSignature"
)

// VerifyError is the error type every Verifier.Verify failure returns.
type VerifyError struct {
	Code ErrorCode
	Msg  string
}

func (e *VerifyError) Error() string { return string(e.Code) + ": " + e.Msg }

const maxSignatureBytes = 16 * 1024

// BundleVerifier checks a plugin's Sigstore signature bundle against a
// pinned trust root (Fulcio root, CTFE public key, issuer/SAN
// allowlists). See StubBundleVerifier for the shipped implementation.
type BundleVerifier interface {
	Verify(wasmDigest [32]byte, signature []byte) error
}

// StubBundleVerifier fails closed on every call. Spec.md §9 Open
// Question (c) explicitly sanctions this: "the Sigstore path currently
// fails-closed even when trust material is present... integrate actual
// bundle verification before production." MissingSignature and
// InvalidSignature therefore cover every real invocation until a real
// sigstore-go verifier is substituted behind this same interface.
type StubBundleVerifier struct{}

func (StubBundleVerifier) Verify([32]byte, []byte) error {
	return &VerifyError{Code: InvalidSignature, Msg: "sigstore bundle verification is not integrated; failing closed"}
}

var verifyFailuresCounter = metrics.NewCounterVec(
	"plugin_verify_failures",
	"Plugin manifest verification failures by error code.",
	"error_code",
)

// RegisterMetrics adds the plugin host's counters to r.
func RegisterMetrics(r *metrics.Registry) {
	r.Register(verifyFailuresCounter)
}

// Verifier runs the offline, deterministic manifest verification
// pipeline (spec.md §4.6).
type Verifier struct {
	// RequireSignatures enforces step 1: absence of signature or SBOM
	// fails fast. Always true in production; tests may disable it to
	// exercise the digest-only path.
	RequireSignatures bool
	Bundle            BundleVerifier
}

// NewVerifier returns a fail-closed Verifier. A nil bundle defaults to
// StubBundleVerifier.
func NewVerifier(bundle BundleVerifier) *Verifier {
	if bundle == nil {
		bundle = StubBundleVerifier{}
	}
	return &Verifier{RequireSignatures: true, Bundle: bundle}
}

// Verify runs spec.md §4.6's four-step pipeline against m and the wasm
// bytes it describes.
func (v *Verifier) Verify(m Manifest, wasm []byte) error {
	// Step 1.
	if v.RequireSignatures {
		if strings.TrimSpace(m.Signature) == "" {
			return v.fail(MissingSignature, "manifest has no signature")
		}
		if strings.TrimSpace(m.SBOMRef) == "" {
			return v.fail(MissingSbom, "manifest has no sbom_ref")
		}
	}

	// Step 2.
	digestHex := strings.ToLower(strings.TrimSpace(m.WasmDigest))
	if len(digestHex) != 64 {
		return v.fail(InvalidDigestFormat, "wasm_digest must be exactly 64 hex characters")
	}
	expected, err := hex.DecodeString(digestHex)
	if err != nil {
		return v.fail(InvalidDigestFormat, "wasm_digest is not valid hex")
	}

	// Step 3.
	actual := sha256.Sum256(wasm)
	if subtle.ConstantTimeCompare(actual[:], expected) != 1 {
		return v.fail(DigestMismatch, "sha256(wasm) does not match wasm_digest")
	}

	// Step 4: signature verification, only if a signature is present.
	if strings.TrimSpace(m.Signature) == "" {
		return nil
	}
	if len(m.Signature) > maxSignatureBytes {
		return v.fail(OversizedSignature, "signature exceeds 16 KiB")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return v.fail(InvalidSignature, "signature is not valid base64")
	}
	if err := v.Bundle.Verify(actual, sigBytes); err != nil {
		return v.fail(InvalidSignature, err.Error())
	}
	return nil
}

func (v *Verifier) fail(code ErrorCode, msg string) error {
	verifyFailuresCounter.Inc(string(code))
	return &VerifyError{Code: code, Msg: msg}
}
