package revisionable

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/appframe/internal/ir"
)

// PartCopyFunc copies one part of a source revision into target, which has
// an open transaction.
type PartCopyFunc func(ctx context.Context, part string, value ir.IRValue, target *Revisionable) error

// PartMethod is the signature of Copy<PartName> handler methods.
type PartMethod = func(ctx context.Context, value ir.IRValue, target *Revisionable) error

// CopyPartValue is a PartCopyFunc that stores the source value as is.
func CopyPartValue(_ context.Context, part string, value ir.IRValue, target *Revisionable) error {
	_, err := target.SetPart(part, value)
	return err
}

// Copier copies a revision into another record of the same type.
//
// The data keys phase copies every declared data key not in the skip list,
// and the label when CopyLabel is set. The parts phase then copies each
// declared part using, in order of preference: a function registered with
// RegisterPart, a method Copy<PartName> on the handler (part "related_items"
// maps to CopyRelatedItems), or the default part copier. A part with none
// of these fails the copy before anything is changed.
type Copier struct {
	handler    any
	skip       map[string]bool
	parts      map[string]PartCopyFunc
	fallback   PartCopyFunc
	copyLabel  bool
	titleCaser cases.Caser
}

// NewCopier creates a copier. handler may be nil; otherwise its exported
// Copy<PartName> methods with the PartMethod signature copy parts.
func NewCopier(handler any) *Copier {
	return &Copier{
		handler:    handler,
		skip:       make(map[string]bool),
		parts:      make(map[string]PartCopyFunc),
		titleCaser: cases.Title(language.Und),
	}
}

// SkipDataKeys excludes data keys from the data keys phase.
func (c *Copier) SkipDataKeys(keys ...string) *Copier {
	for _, k := range keys {
		c.skip[k] = true
	}
	return c
}

// CopyLabel makes the data keys phase copy the label too.
func (c *Copier) CopyLabel() *Copier {
	c.copyLabel = true
	return c
}

// RegisterPart sets the copy function for a part.
func (c *Copier) RegisterPart(part string, fn PartCopyFunc) *Copier {
	c.parts[part] = fn
	return c
}

// DefaultPartCopier sets the function used for parts with neither a
// registered function nor a handler method.
func (c *Copier) DefaultPartCopier(fn PartCopyFunc) *Copier {
	c.fallback = fn
	return c
}

// MethodName returns the handler method name for a part.
func (c *Copier) MethodName(part string) string {
	words := strings.FieldsFunc(part, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	b.WriteString("Copy")
	for _, w := range words {
		b.WriteString(c.titleCaser.String(w))
	}
	return b.String()
}

// Copy copies source into target. target must have an open transaction
// and the same record type as source.
func (c *Copier) Copy(ctx context.Context, source ir.RevisionRecord, target *Revisionable) error {
	if source.TypeName != target.TypeName() {
		return target.lockedErrorf(ErrCodeTypeMismatch, "cannot copy a %s revision into a %s", source.TypeName, target.TypeName())
	}
	if !target.InTransaction() {
		return target.lockedErrorf(ErrCodeNoTransaction, "copy: no transaction started on target")
	}

	rtype := target.RecordType()
	copiers := make([]PartCopyFunc, len(rtype.Parts))
	for i, part := range rtype.Parts {
		fn, err := c.resolvePart(part)
		if err != nil {
			return target.lockedErrorf(ErrCodeMissingPartCopier, "%v", err)
		}
		copiers[i] = fn
	}

	for _, dk := range rtype.DataKeys {
		if c.skip[dk.Name] {
			continue
		}
		value, ok := source.DataKeys[dk.Name]
		if !ok {
			value = dk.Default
		}
		if _, err := target.SetDataKey(dk.Name, value); err != nil {
			return fmt.Errorf("copy data key %s: %w", dk.Name, err)
		}
	}
	if c.copyLabel {
		if _, err := target.SetLabel(source.Label); err != nil {
			return fmt.Errorf("copy label: %w", err)
		}
	}

	for i, part := range rtype.Parts {
		value, ok := source.Parts[part]
		if !ok || value == nil {
			value = ir.IRNull{}
		}
		if err := copiers[i](ctx, part, ir.CloneValue(value), target); err != nil {
			return fmt.Errorf("copy part %s: %w", part, err)
		}
	}
	return nil
}

func (c *Copier) resolvePart(part string) (PartCopyFunc, error) {
	if fn, ok := c.parts[part]; ok {
		return fn, nil
	}

	name := c.MethodName(part)
	if c.handler != nil {
		method := reflect.ValueOf(c.handler).MethodByName(name)
		if method.IsValid() {
			fn, ok := method.Interface().(PartMethod)
			if !ok {
				return nil, fmt.Errorf("method %s has signature %s", name, method.Type())
			}
			return func(ctx context.Context, _ string, value ir.IRValue, target *Revisionable) error {
				return fn(ctx, value, target)
			}, nil
		}
	}

	if c.fallback != nil {
		return c.fallback, nil
	}
	return nil, fmt.Errorf("no copy function or method %s for part %q", name, part)
}
