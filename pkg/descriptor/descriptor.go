package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-futurism/pkg/gid"
)

// Mode tells which shape a descriptor has.
type Mode int

const (
	// ModeEntity renders a single entity through its own partial.
	ModeEntity Mode = iota
	// ModePartial renders an explicit partial with locals.
	ModePartial
)

func (m Mode) String() string {
	switch m {
	case ModeEntity:
		return "entity"
	case ModePartial:
		return "partial"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Descriptor is the deferred-render instruction. It holds either an entity
// reference or a partial with locals, plus the caller's data namespace
// (protocol keys already removed). Build it through a Builder; treat it as
// immutable afterwards.
type Descriptor struct {
	Entity  gid.GlobalID
	Partial string
	Locals  Locals
	Data    Locals
}

// Mode returns the descriptor shape.
func (d Descriptor) Mode() Mode {
	if d.Partial != "" {
		return ModePartial
	}
	return ModeEntity
}

// Validate checks the entity/partial exclusivity rule.
func (d Descriptor) Validate() error {
	hasEntity := !d.Entity.IsZero()
	hasPartial := strings.TrimSpace(d.Partial) != ""
	switch {
	case hasEntity && hasPartial:
		return errors.New("descriptor: entity and partial are mutually exclusive")
	case !hasEntity && !hasPartial:
		return errors.New("descriptor: entity or partial is required")
	case hasEntity && d.Locals.Len() > 0:
		return errors.New("descriptor: entity descriptors carry no locals")
	}
	return nil
}

// Equal reports structural equality.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Entity == other.Entity &&
		d.Partial == other.Partial &&
		d.Locals.Equal(other.Locals) &&
		d.Data.Equal(other.Data)
}

type wireDescriptor struct {
	Entity  string          `json:"entity,omitempty"`
	Partial string          `json:"partial,omitempty"`
	Locals  json.RawMessage `json:"locals,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes {entity} or {partial, locals}, with data when present.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	wire := wireDescriptor{Partial: d.Partial}
	if !d.Entity.IsZero() {
		wire.Entity = d.Entity.String()
	}
	if d.Mode() == ModePartial {
		raw, err := d.Locals.MarshalJSON()
		if err != nil {
			return nil, err
		}
		wire.Locals = raw
	}
	if d.Data.Len() > 0 {
		raw, err := d.Data.MarshalJSON()
		if err != nil {
			return nil, err
		}
		wire.Data = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes and validates a descriptor.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var wire wireDescriptor
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var out Descriptor
	if wire.Entity != "" {
		ref, err := gid.Parse(wire.Entity)
		if err != nil {
			return err
		}
		out.Entity = ref
	}
	out.Partial = wire.Partial
	if len(wire.Locals) > 0 {
		if err := out.Locals.UnmarshalJSON(wire.Locals); err != nil {
			return err
		}
	}
	if len(wire.Data) > 0 {
		if err := out.Data.UnmarshalJSON(wire.Data); err != nil {
			return err
		}
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}
