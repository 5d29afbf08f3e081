// Package claims builds, stores and checks session claims: values the
// application computes per user and carries inside the access token payload.
//
// A claim value lives in the payload under its key as {"v": value, "t": ms},
// where t is when the value was last fetched. Validators read that entry and
// decide both whether it is correct and whether it is too old to trust.
package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// Payload entry field names.
const (
	valueField = "v"
	timeField  = "t"
)

// ErrValueType is returned when a value does not fit the claim's type.
var ErrValueType = errors.New("claims: value has the wrong type")

// Reason messages.
const (
	MsgValueDoesNotExist = "value does not exist"
	MsgExpired           = "expired"
	MsgWrongValue        = "wrong value"
)

// Claim is the type-erased view of a claim the session engine works with.
type Claim interface {
	Key() string

	// Build fetches the current value and returns the payload fragment to
	// merge in. An empty fragment means there is no value for this user.
	Build(ctx context.Context, userID, tenantID string) (map[string]any, error)

	// RemoveFromPayload returns a copy of payload without this claim.
	RemoveFromPayload(payload map[string]any) map[string]any

	// RemoveFromPayloadByMerge returns a copy of payload with the claim set to
	// nil, for merge operations where nil deletes.
	RemoveFromPayloadByMerge(payload map[string]any) map[string]any

	// DefaultValidator is added to the global validators when the claim is
	// registered. It may be nil.
	DefaultValidator() Validator
}

// ValueAccessor is a Claim whose value can be read and written without
// knowing its Go type. Primitive, Boolean and PrimitiveArray implement it.
type ValueAccessor interface {
	Claim
	ValueFromPayload(payload map[string]any) (any, bool)
	AddValueToPayload(payload map[string]any, value any) (map[string]any, error)
}

// Reason explains a failed validation. Only the fields relevant to the
// failure are set.
type Reason struct {
	Message                       string `json:"message"`
	Expected                      any    `json:"expectedValue,omitempty"`
	ExpectedToInclude             any    `json:"expectedToInclude,omitempty"`
	ExpectedToNotInclude          any    `json:"expectedToNotInclude,omitempty"`
	ExpectedToIncludeAtLeastOneOf any    `json:"expectedToIncludeAtLeastOneOf,omitempty"`
	Actual                        any    `json:"actualValue,omitempty"`
	AgeInSeconds                  int64  `json:"ageInSeconds,omitempty"`
	MaxAgeInSeconds               int64  `json:"maxAgeInSeconds,omitempty"`
}

// Result is the outcome of one validator.
type Result struct {
	IsValid bool
	Reason  *Reason
}

// Valid is the passing Result.
var Valid = Result{IsValid: true}

func invalid(r Reason) Result { return Result{Reason: &r} }

// Validator checks one aspect of a payload.
type Validator interface {
	ID() string

	// Claim is the claim whose value this validator reads, used to refetch
	// it. Nil for validators that do not depend on a single claim.
	Claim() Claim

	// ShouldRefetch reports whether the claim should be rebuilt before Validate.
	ShouldRefetch(payload map[string]any, now time.Time) bool

	Validate(payload map[string]any, now time.Time) Result
}

// ValidationFailure pairs a failing validator id with its reason.
type ValidationFailure struct {
	ID     string  `json:"id"`
	Reason *Reason `json:"reason,omitempty"`
}

// Assert runs every validator against payload and collects all failures in
// validator order. Nil means every validator passed.
func Assert(payload map[string]any, validators []Validator, now time.Time) []ValidationFailure {
	var failures []ValidationFailure
	for _, v := range validators {
		res := v.Validate(payload, now)
		if !res.IsValid {
			failures = append(failures, ValidationFailure{ID: v.ID(), Reason: res.Reason})
		}
	}
	return failures
}

// Custom is a Validator assembled from functions.
type Custom struct {
	IDValue     string
	ClaimValue  Claim
	RefetchFunc func(payload map[string]any, now time.Time) bool
	CheckFunc   func(payload map[string]any, now time.Time) Result
}

func (c Custom) ID() string   { return c.IDValue }
func (c Custom) Claim() Claim { return c.ClaimValue }

func (c Custom) ShouldRefetch(payload map[string]any, now time.Time) bool {
	if c.RefetchFunc == nil {
		return false
	}
	return c.RefetchFunc(payload, now)
}

func (c Custom) Validate(payload map[string]any, now time.Time) Result {
	if c.CheckFunc == nil {
		return Valid
	}
	return c.CheckFunc(payload, now)
}

// Option configures a claim.
type Option func(*options)

type options struct {
	now           func() time.Time
	defaultMaxAge *int64
}

// WithNow overrides the clock used to stamp fetched values.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDefaultMaxAge sets the max age validators use when none is given.
// Zero makes every value older than the current instant stale.
func WithDefaultMaxAge(seconds int64) Option {
	return func(o *options) { o.defaultMaxAge = &seconds }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidatorOption configures a single validator.
type ValidatorOption func(*validatorOptions)

// maxAge is nil when no max age applies: values never expire.
type validatorOptions struct {
	id     string
	maxAge *int64
}

// WithMaxAge makes the validator reject and refetch values older than seconds.
// WithMaxAge(0) treats any value that is not brand new as expired; omit the
// option for values that never expire.
func WithMaxAge(seconds int64) ValidatorOption {
	return func(o *validatorOptions) { o.maxAge = &seconds }
}

// WithID overrides the validator id, which defaults to the claim key.
func WithID(id string) ValidatorOption {
	return func(o *validatorOptions) { o.id = id }
}

func buildValidatorOptions(key string, defaultMaxAge *int64, opts []ValidatorOption) validatorOptions {
	o := validatorOptions{id: key, maxAge: defaultMaxAge}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// entry is the raw {"v","t"} object for key, if present.
func entry(payload map[string]any, key string) (map[string]any, bool) {
	e, ok := payload[key].(map[string]any)
	if !ok {
		return nil, false
	}
	if _, ok := e[valueField]; !ok {
		return nil, false
	}
	return e, true
}

func lastRefetch(payload map[string]any, key string) (time.Time, bool) {
	e, ok := entry(payload, key)
	if !ok {
		return time.Time{}, false
	}
	var ms int64
	switch t := e[timeField].(type) {
	case float64:
		ms = int64(t)
	case int64:
		ms = t
	case int:
		ms = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		ms = n
	default:
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// ageCheck returns an "expired" Result when the value is older than maxAge.
// A nil maxAge never expires.
func ageCheck(payload map[string]any, key string, maxAge *int64, now time.Time) (Result, bool) {
	if maxAge == nil {
		return Valid, true
	}
	t, ok := lastRefetch(payload, key)
	if !ok {
		return invalid(Reason{Message: MsgExpired, MaxAgeInSeconds: *maxAge}), false
	}
	if tooOld(t, *maxAge, now) {
		age := int64(now.Sub(t) / time.Second)
		return invalid(Reason{Message: MsgExpired, AgeInSeconds: age, MaxAgeInSeconds: *maxAge}), false
	}
	return Valid, true
}

func isStale(payload map[string]any, key string, maxAge *int64, now time.Time) bool {
	if _, ok := entry(payload, key); !ok {
		return true
	}
	if maxAge == nil {
		return false
	}
	t, ok := lastRefetch(payload, key)
	return !ok || tooOld(t, *maxAge, now)
}

func tooOld(fetched time.Time, maxAge int64, now time.Time) bool {
	return now.Sub(fetched) > time.Duration(maxAge)*time.Second
}

// normalize round trips v through JSON so values built in memory compare
// equal to values read back from a token.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("claims: encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("claims: decode value: %w", err)
	}
	return out, nil
}

// decode converts a raw payload value into T.
func decode[T any](raw any) (T, bool) {
	var out T
	if raw == nil {
		return out, false
	}
	if v, ok := raw.(T); ok {
		return v, true
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}

func withEntry(payload map[string]any, key string, value any, now time.Time) (map[string]any, error) {
	norm, err := normalize(value)
	if err != nil {
		return nil, err
	}
	out := maps.Clone(payload)
	if out == nil {
		out = map[string]any{}
	}
	out[key] = map[string]any{valueField: norm, timeField: now.UnixMilli()}
	return out, nil
}

func without(payload map[string]any, key string) map[string]any {
	out := maps.Clone(payload)
	if out == nil {
		out = map[string]any{}
	}
	delete(out, key)
	return out
}

func nulled(payload map[string]any, key string) map[string]any {
	out := maps.Clone(payload)
	if out == nil {
		out = map[string]any{}
	}
	out[key] = nil
	return out
}
