package descriptor

import (
	"fmt"

	"github.com/goliatone/go-futurism/pkg/signer"
)

// PurposeSignedParams scopes descriptor tokens.
const PurposeSignedParams = "signed_params"

// Sign returns the signed_params token for d.
func Sign(s *signer.Signer, d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", buildError(-1, "invalid descriptor", err)
	}
	token, err := s.Sign(d, PurposeSignedParams)
	if err != nil {
		return "", fmt.Errorf("descriptor: sign: %w", err)
	}
	return token, nil
}

// Verify recovers the descriptor carried by token. Every failure, including a
// validly signed payload that is not a descriptor, is signer.ErrInvalidSignature.
func Verify(s *signer.Signer, token string) (Descriptor, error) {
	var d Descriptor
	if err := s.Verify(token, PurposeSignedParams, &d); err != nil {
		return Descriptor{}, signer.ErrInvalidSignature
	}
	return d, nil
}
