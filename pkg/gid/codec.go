package gid

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-futurism/pkg/signer"
)

// PurposeSGID scopes signed entity references.
const PurposeSGID = "sgid"

// Codec turns entities into references and back, optionally signing the
// reference on its own.
type Codec struct {
	locator *Locator
	signer  *signer.Signer
}

// NewCodec wires a locator with the signer used for signed references.
func NewCodec(locator *Locator, s *signer.Signer) (*Codec, error) {
	if locator == nil {
		return nil, errors.New("gid: locator is required")
	}
	if locator.App() == "" {
		return nil, errors.New("gid: locator app is required")
	}
	if s == nil {
		return nil, errors.New("gid: signer is required")
	}
	return &Codec{locator: locator, signer: s}, nil
}

// App returns the application the codec issues references for.
func (c *Codec) App() string {
	return c.locator.App()
}

// Locator exposes the underlying locator.
func (c *Codec) Locator() *Locator {
	return c.locator
}

// Encode returns the reference for obj.
func (c *Codec) Encode(obj any) (GlobalID, error) {
	return New(c.locator.App(), obj)
}

// Decode resolves ref. found == false is the stale-reference case.
func (c *Codec) Decode(ctx context.Context, ref GlobalID) (Identifiable, bool, error) {
	return c.locator.Locate(ctx, ref)
}

// Sign returns a signed reference token for obj.
func (c *Codec) Sign(obj any) (string, error) {
	ref, err := c.Encode(obj)
	if err != nil {
		return "", err
	}
	return c.SignReference(ref)
}

// SignReference signs an already encoded reference.
func (c *Codec) SignReference(ref GlobalID) (string, error) {
	if ref.IsZero() {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}
	token, err := c.signer.Sign(ref.String(), PurposeSGID)
	if err != nil {
		return "", fmt.Errorf("gid: sign reference: %w", err)
	}
	return token, nil
}

// VerifySigned returns the reference carried by token. Any tampering yields
// signer.ErrInvalidSignature.
func (c *Codec) VerifySigned(token string) (GlobalID, error) {
	var raw string
	if err := c.signer.Verify(token, PurposeSGID, &raw); err != nil {
		return GlobalID{}, err
	}
	ref, err := Parse(raw)
	if err != nil {
		return GlobalID{}, signer.ErrInvalidSignature
	}
	return ref, nil
}

// LocateSigned verifies token and resolves the entity it references.
func (c *Codec) LocateSigned(ctx context.Context, token string) (Identifiable, bool, error) {
	ref, err := c.VerifySigned(token)
	if err != nil {
		return nil, false, err
	}
	return c.Decode(ctx, ref)
}
