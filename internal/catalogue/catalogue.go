package catalogue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/handle"
)

// Catalogue is the immutable API surface of one library.
type Catalogue struct {
	library   string
	source    string
	includes  []string
	kinds     []HandleKind // indexed by handle.Kind; entry 0 is unused
	kindIndex map[string]handle.Kind
	functions []*FunctionSignature
	index     map[string]*FunctionSignature
	version   string
}

// Library returns the library name.
func (c *Catalogue) Library() string { return c.library }

// Source returns the descriptor the catalogue was built from.
func (c *Catalogue) Source() string { return c.source }

// Includes returns the headers every seed of this library includes.
func (c *Catalogue) Includes() []string { return c.includes }

// Version is a content hash of the descriptor. Two catalogues with the same
// version synthesize and score identically.
func (c *Catalogue) Version() string { return c.version }

// Functions returns all signatures in descriptor order.
func (c *Catalogue) Functions() []*FunctionSignature { return c.functions }

// Lookup returns the signature named name.
func (c *Catalogue) Lookup(name string) (*FunctionSignature, error) {
	if fn, ok := c.index[name]; ok {
		return fn, nil
	}
	return nil, &UnknownFunctionError{Library: c.library, Name: name}
}

// Kind returns the handle kind declared under name.
func (c *Catalogue) Kind(name string) (HandleKind, bool) {
	k, ok := c.kindIndex[name]
	if !ok {
		return HandleKind{}, false
	}
	return c.kinds[k], true
}

// KindInfo returns the declaration of an interned kind.
func (c *Catalogue) KindInfo(k handle.Kind) HandleKind {
	if int(k) <= 0 || int(k) >= len(c.kinds) {
		return HandleKind{}
	}
	return c.kinds[k]
}

// Kinds returns every declared handle kind in declaration order.
func (c *Catalogue) Kinds() []HandleKind { return c.kinds[1:] }

// Critical returns the names of the high-value functions, sorted.
func (c *Catalogue) Critical() []string {
	var out []string
	for _, fn := range c.functions {
		if fn.Critical {
			out = append(out, fn.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Destructors returns the functions that free a handle of kind k, with
// functions flagged as destructors first and ties broken by name.
func (c *Catalogue) Destructors(k handle.Kind) []*FunctionSignature {
	var out []*FunctionSignature
	for _, fn := range c.functions {
		if fn.frees(k) {
			out = append(out, fn)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Destructor != out[j].Destructor {
			return out[i].Destructor
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// frees reports whether the function has exactly one owns_in parameter of
// kind k and no other handle-consuming parameters.
func (f *FunctionSignature) frees(k handle.Kind) bool {
	n := 0
	for _, p := range f.Params {
		switch p.Ownership {
		case OwnsIn:
			if p.Kind != k {
				return false
			}
			n++
		case TransferOut, Detach:
			return false
		}
	}
	return n == 1 && !f.Return.Produces()
}

// Ingest validates a library descriptor and builds its catalogue.
func Ingest(lib *config.Library) (*Catalogue, error) {
	v := &validator{lib: lib}
	c := &Catalogue{
		library:   lib.Name,
		source:    lib.Source,
		includes:  append([]string(nil), lib.Includes...),
		kinds:     make([]HandleKind, 1, len(lib.Handles)+1),
		kindIndex: make(map[string]handle.Kind),
		index:     make(map[string]*FunctionSignature),
	}

	if lib.Name == "" {
		v.fail("library has no name")
	}

	for _, hk := range lib.Handles {
		if _, dup := c.kindIndex[hk.Name]; dup {
			v.fail("handle kind %q declared twice", hk.Name)
			continue
		}
		if hk.CType == "" {
			v.fail("handle kind %q has no c_type", hk.Name)
		}
		var stack bool
		switch hk.Storage {
		case "pointer", "":
		case "stack":
			stack = true
		default:
			v.fail("handle kind %q: unknown storage %q", hk.Name, hk.Storage)
		}
		k := handle.Kind(len(c.kinds))
		c.kinds = append(c.kinds, HandleKind{Kind: k, Name: hk.Name, CType: hk.CType, Stack: stack})
		c.kindIndex[hk.Name] = k
	}

	for _, fn := range lib.Functions {
		if _, dup := c.index[fn.Name]; dup {
			v.fail("function %q declared twice", fn.Name)
			continue
		}
		sig := v.function(c, fn)
		c.functions = append(c.functions, sig)
		c.index[fn.Name] = sig
	}

	v.checkDestructors(c)

	if len(v.problems) > 0 {
		return nil, &DescriptorError{Library: lib.Name, Source: lib.Source, Problems: v.problems}
	}

	// The source path is not part of the content.
	hashed := *lib
	hashed.Source = ""
	sum, err := json.Marshal(&hashed)
	if err != nil {
		return nil, fmt.Errorf("failed to hash descriptor for %q: %w", lib.Name, err)
	}
	digest := sha256.Sum256(sum)
	c.version = hex.EncodeToString(digest[:])
	return c, nil
}
