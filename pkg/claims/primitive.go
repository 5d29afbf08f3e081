package claims

import (
	"context"
	"fmt"
	"time"
)

// FetchFunc computes a claim value for a user. ok is false when the user has
// no value, in which case nothing is added to the payload.
type FetchFunc[T any] func(ctx context.Context, userID, tenantID string) (value T, ok bool, err error)

// Primitive is a claim holding a single comparable value.
type Primitive[T comparable] struct {
	key              string
	fetch            FetchFunc[T]
	opts             options
	defaultValidator Validator

	Validators PrimitiveValidators[T]
}

// New creates a Primitive claim stored under key.
func New[T comparable](key string, fetch FetchFunc[T], opts ...Option) *Primitive[T] {
	c := &Primitive[T]{key: key, fetch: fetch, opts: buildOptions(opts)}
	c.Validators = PrimitiveValidators[T]{claim: c}
	return c
}

func (c *Primitive[T]) Key() string { return c.key }

// WithDefaultValidator sets the validator added to the global list on registration.
func (c *Primitive[T]) WithDefaultValidator(v Validator) *Primitive[T] {
	c.defaultValidator = v
	return c
}

func (c *Primitive[T]) DefaultValidator() Validator { return c.defaultValidator }

func (c *Primitive[T]) Build(ctx context.Context, userID, tenantID string) (map[string]any, error) {
	v, ok, err := c.fetch(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	return c.AddToPayload(nil, v)
}

// AddToPayload returns a copy of payload carrying value stamped with the
// current time.
func (c *Primitive[T]) AddToPayload(payload map[string]any, value T) (map[string]any, error) {
	return withEntry(payload, c.key, value, c.opts.now())
}

func (c *Primitive[T]) RemoveFromPayload(payload map[string]any) map[string]any {
	return without(payload, c.key)
}

func (c *Primitive[T]) RemoveFromPayloadByMerge(payload map[string]any) map[string]any {
	return nulled(payload, c.key)
}

// GetValueFromPayload reads the claim value.
func (c *Primitive[T]) GetValueFromPayload(payload map[string]any) (T, bool) {
	e, ok := entry(payload, c.key)
	if !ok {
		var zero T
		return zero, false
	}
	return decode[T](e[valueField])
}

// GetLastRefetchTime reads when the value was fetched.
func (c *Primitive[T]) GetLastRefetchTime(payload map[string]any) (time.Time, bool) {
	return lastRefetch(payload, c.key)
}

func (c *Primitive[T]) ValueFromPayload(payload map[string]any) (any, bool) {
	return c.GetValueFromPayload(payload)
}

func (c *Primitive[T]) AddValueToPayload(payload map[string]any, value any) (map[string]any, error) {
	v, ok := decode[T](value)
	if !ok {
		return nil, fmt.Errorf("%w: %s wants %T, got %T", ErrValueType, c.key, v, value)
	}
	return c.AddToPayload(payload, v)
}

// PrimitiveValidators builds validators for a Primitive claim.
type PrimitiveValidators[T comparable] struct {
	claim *Primitive[T]
}

// HasValue passes when the claim equals want and is not older than the max age.
func (pv PrimitiveValidators[T]) HasValue(want T, opts ...ValidatorOption) Validator {
	c := pv.claim
	o := buildValidatorOptions(c.key, c.opts.defaultMaxAge, opts)

	return Custom{
		IDValue:    o.id,
		ClaimValue: c,
		RefetchFunc: func(payload map[string]any, now time.Time) bool {
			return isStale(payload, c.key, o.maxAge, now)
		},
		CheckFunc: func(payload map[string]any, now time.Time) Result {
			got, ok := c.GetValueFromPayload(payload)
			if !ok {
				return invalid(Reason{Message: MsgValueDoesNotExist, Expected: want})
			}
			if res, fresh := ageCheck(payload, c.key, o.maxAge, now); !fresh {
				return res
			}
			if got != want {
				return invalid(Reason{Message: MsgWrongValue, Expected: want, Actual: got})
			}
			return Valid
		},
	}
}

// Boolean is a Primitive[bool] with IsTrue and IsFalse validators.
type Boolean struct {
	*Primitive[bool]
	Validators BooleanValidators
}

// NewBoolean creates a Boolean claim stored under key.
func NewBoolean(key string, fetch FetchFunc[bool], opts ...Option) *Boolean {
	p := New(key, fetch, opts...)
	return &Boolean{Primitive: p, Validators: BooleanValidators{p.Validators}}
}

// BooleanValidators adds IsTrue and IsFalse to the primitive validators.
type BooleanValidators struct {
	PrimitiveValidators[bool]
}

func (bv BooleanValidators) IsTrue(opts ...ValidatorOption) Validator {
	return bv.HasValue(true, opts...)
}

func (bv BooleanValidators) IsFalse(opts ...ValidatorOption) Validator {
	return bv.HasValue(false, opts...)
}
