// Package resolver implements the recursive asset-field decode/build
// protocol: nested asset references (a scalar External reference, an
// Option, or a homogeneous Sequence) are decoded concurrently against a
// Loader's shared cache and then built synchronously against a
// host-provided context.
//
// The three variants are modeled as a single tagged-union Info/Decoded/
// Built tree interpreted by the recursive Decode/Build functions, rather
// than as a generic per-variant capability interface: Go's generics have
// no associated types, so a faithful interface translation would need a
// four-parameter interface repeated at every nesting level. A sealed
// union walked by a switch is the shape this kind of small recursive tree
// takes elsewhere in the ecosystem.
package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Kind discriminates the three field variants.
type Kind int

const (
	KindExternal Kind = iota
	KindOption
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindExternal:
		return "external"
	case KindOption:
		return "option"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("resolver.Kind(%d)", int(k))
	}
}

// Info is the deserializable description of a field value.
type Info struct {
	Kind Kind

	External uuid.UUID
	Option   *Info
	Sequence []Info
}

// ExternalInfo builds an Info for a scalar asset reference.
func ExternalInfo(id uuid.UUID) Info { return Info{Kind: KindExternal, External: id} }

// OptionInfo builds an Info wrapping an optional inner field. A nil inner
// represents None.
func OptionInfo(inner *Info) Info { return Info{Kind: KindOption, Option: inner} }

// SequenceInfo builds an Info for an ordered homogeneous sequence.
func SequenceInfo(elems []Info) Info { return Info{Kind: KindSequence, Sequence: elems} }

// Decoded is the result of the async decode stage.
type Decoded struct {
	Kind Kind

	External *AssetResult
	Option   *Decoded
	Sequence []Decoded
}

// Built is the final field value, produced by applying the synchronous
// builder to a Decoded tree against a host build context.
type Built struct {
	Kind Kind

	External any
	Option   *Built
	Sequence []Built
}

// Value is implemented by anything an External reference can resolve to.
// Build runs on the single thread that owns buildCtx (a graphics device,
// world state, or whatever the host build context holds) and returns the
// field's final value.
type Value interface {
	Build(buildCtx any) (any, error)
}

// Decode walks info and returns the decoded tree, or the first error
// encountered. For External, decode waits on the loader's shared cache
// slot for the referenced uuid. For Sequence, every element is decoded
// concurrently; the first error observed cancels the wait on the
// remaining siblings (their own Loader effects are not canceled — they
// keep running and still populate the shared cache for later callers).
func Decode(ctx context.Context, info Info, loader Loader) (Decoded, error) {
	switch info.Kind {
	case KindExternal:
		handle := loader.Load(info.External)
		if _, err := handle.Wait(ctx); err != nil {
			return Decoded{}, fmt.Errorf("decode external %s: %w", info.External, err)
		}
		return Decoded{Kind: KindExternal, External: handle}, nil

	case KindOption:
		if info.Option == nil {
			return Decoded{Kind: KindOption}, nil
		}
		inner, err := Decode(ctx, *info.Option, loader)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindOption, Option: &inner}, nil

	case KindSequence:
		return decodeSequence(ctx, info.Sequence, loader)

	default:
		panic(fmt.Sprintf("resolver: unknown field kind %d", info.Kind))
	}
}

// Build applies the synchronous builder to a fully decoded tree. It must
// only be called with a Decoded value Decode has already returned
// successfully: every External slot is guaranteed ready, so Build never
// blocks.
func Build(decoded Decoded, buildCtx any) (Built, error) {
	switch decoded.Kind {
	case KindExternal:
		value, err := decoded.External.Value()
		if err != nil {
			return Built{}, err
		}
		built, err := value.Build(buildCtx)
		if err != nil {
			return Built{}, fmt.Errorf("build external: %w", err)
		}
		return Built{Kind: KindExternal, External: built}, nil

	case KindOption:
		if decoded.Option == nil {
			return Built{Kind: KindOption}, nil
		}
		inner, err := Build(*decoded.Option, buildCtx)
		if err != nil {
			return Built{}, err
		}
		return Built{Kind: KindOption, Option: &inner}, nil

	case KindSequence:
		out := make([]Built, len(decoded.Sequence))
		for i, d := range decoded.Sequence {
			b, err := Build(d, buildCtx)
			if err != nil {
				return Built{}, err
			}
			out[i] = b
		}
		return Built{Kind: KindSequence, Sequence: out}, nil

	default:
		panic(fmt.Sprintf("resolver: unknown field kind %d", decoded.Kind))
	}
}
