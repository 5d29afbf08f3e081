package claims

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// PrimitiveArray is a claim holding a list of comparable values, such as roles
// or permissions.
type PrimitiveArray[T comparable] struct {
	key              string
	fetch            FetchFunc[[]T]
	opts             options
	defaultValidator Validator

	Validators ArrayValidators[T]
}

// NewArray creates a PrimitiveArray claim stored under key.
func NewArray[T comparable](key string, fetch FetchFunc[[]T], opts ...Option) *PrimitiveArray[T] {
	c := &PrimitiveArray[T]{key: key, fetch: fetch, opts: buildOptions(opts)}
	c.Validators = ArrayValidators[T]{claim: c}
	return c
}

func (c *PrimitiveArray[T]) Key() string { return c.key }

// WithDefaultValidator sets the validator added to the global list on registration.
func (c *PrimitiveArray[T]) WithDefaultValidator(v Validator) *PrimitiveArray[T] {
	c.defaultValidator = v
	return c
}

func (c *PrimitiveArray[T]) DefaultValidator() Validator { return c.defaultValidator }

func (c *PrimitiveArray[T]) Build(ctx context.Context, userID, tenantID string) (map[string]any, error) {
	v, ok, err := c.fetch(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	return c.AddToPayload(nil, v)
}

// AddToPayload returns a copy of payload carrying values stamped with the
// current time. A nil slice is stored as an empty list.
func (c *PrimitiveArray[T]) AddToPayload(payload map[string]any, values []T) (map[string]any, error) {
	if values == nil {
		values = []T{}
	}
	return withEntry(payload, c.key, values, c.opts.now())
}

func (c *PrimitiveArray[T]) RemoveFromPayload(payload map[string]any) map[string]any {
	return without(payload, c.key)
}

func (c *PrimitiveArray[T]) RemoveFromPayloadByMerge(payload map[string]any) map[string]any {
	return nulled(payload, c.key)
}

// GetValueFromPayload reads the claim values.
func (c *PrimitiveArray[T]) GetValueFromPayload(payload map[string]any) ([]T, bool) {
	e, ok := entry(payload, c.key)
	if !ok {
		return nil, false
	}
	return decode[[]T](e[valueField])
}

// GetLastRefetchTime reads when the values were fetched.
func (c *PrimitiveArray[T]) GetLastRefetchTime(payload map[string]any) (time.Time, bool) {
	return lastRefetch(payload, c.key)
}

func (c *PrimitiveArray[T]) ValueFromPayload(payload map[string]any) (any, bool) {
	return c.GetValueFromPayload(payload)
}

func (c *PrimitiveArray[T]) AddValueToPayload(payload map[string]any, value any) (map[string]any, error) {
	v, ok := decode[[]T](value)
	if !ok {
		return nil, fmt.Errorf("%w: %s wants %T, got %T", ErrValueType, c.key, v, value)
	}
	return c.AddToPayload(payload, v)
}

// ArrayValidators builds validators for a PrimitiveArray claim.
type ArrayValidators[T comparable] struct {
	claim *PrimitiveArray[T]
}

// check builds a validator that reports missing and stale values the same way
// for every array rule, then defers to rule.
func (av ArrayValidators[T]) check(missing Reason, rule func(got []T) *Reason, opts []ValidatorOption) Validator {
	c := av.claim
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
				return invalid(missing)
			}
			if res, fresh := ageCheck(payload, c.key, o.maxAge, now); !fresh {
				return res
			}
			if r := rule(got); r != nil {
				return Result{Reason: r}
			}
			return Valid
		},
	}
}

// Includes passes when the list contains want.
func (av ArrayValidators[T]) Includes(want T, opts ...ValidatorOption) Validator {
	return av.check(
		Reason{Message: MsgValueDoesNotExist, ExpectedToInclude: want},
		func(got []T) *Reason {
			if slices.Contains(got, want) {
				return nil
			}
			return &Reason{Message: MsgWrongValue, ExpectedToInclude: want, Actual: got}
		}, opts)
}

// Excludes passes when the list does not contain want.
func (av ArrayValidators[T]) Excludes(want T, opts ...ValidatorOption) Validator {
	return av.check(
		Reason{Message: MsgValueDoesNotExist, ExpectedToNotInclude: want},
		func(got []T) *Reason {
			if !slices.Contains(got, want) {
				return nil
			}
			return &Reason{Message: MsgWrongValue, ExpectedToNotInclude: want, Actual: got}
		}, opts)
}

// IncludesAll passes when every element of want is in the list. An empty want
// always passes once a value exists.
func (av ArrayValidators[T]) IncludesAll(want []T, opts ...ValidatorOption) Validator {
	return av.check(
		Reason{Message: MsgValueDoesNotExist, ExpectedToInclude: want},
		func(got []T) *Reason {
			for _, w := range want {
				if !slices.Contains(got, w) {
					return &Reason{Message: MsgWrongValue, ExpectedToInclude: want, Actual: got}
				}
			}
			return nil
		}, opts)
}

// IncludesAny passes when at least one element of want is in the list. An
// empty want never passes.
func (av ArrayValidators[T]) IncludesAny(want []T, opts ...ValidatorOption) Validator {
	return av.check(
		Reason{Message: MsgValueDoesNotExist, ExpectedToIncludeAtLeastOneOf: want},
		func(got []T) *Reason {
			for _, w := range want {
				if slices.Contains(got, w) {
					return nil
				}
			}
			return &Reason{Message: MsgWrongValue, ExpectedToIncludeAtLeastOneOf: want, Actual: got}
		}, opts)
}

// ExcludesAll passes when no element of want is in the list.
func (av ArrayValidators[T]) ExcludesAll(want []T, opts ...ValidatorOption) Validator {
	return av.check(
		Reason{Message: MsgValueDoesNotExist, ExpectedToNotInclude: want},
		func(got []T) *Reason {
			for _, w := range want {
				if slices.Contains(got, w) {
					return &Reason{Message: MsgWrongValue, ExpectedToNotInclude: want, Actual: got}
				}
			}
			return nil
		}, opts)
}

// StrictEquals passes when the list equals want element by element, in order.
func (av ArrayValidators[T]) StrictEquals(want []T, opts ...ValidatorOption) Validator {
	return av.check(
		Reason{Message: MsgValueDoesNotExist, Expected: want},
		func(got []T) *Reason {
			if slices.Equal(got, want) {
				return nil
			}
			return &Reason{Message: MsgWrongValue, Expected: want, Actual: got}
		}, opts)
}
