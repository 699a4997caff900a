package tracker

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"

	"github.com/guileen/dbtrack/logger"
)

var (
	// ErrAlreadyRegistered is returned when a root name is registered twice.
	ErrAlreadyRegistered = errors.New("root already registered")
	// ErrNotRegistered is returned when a root name is unknown to the registrar.
	ErrNotRegistered = errors.New("root not registered")
)

// AggregateError carries every failure collected while closing or releasing a
// group of resources. The first failure is the primary cause; the rest are
// secondary. errors.Is and errors.As see all of them.
type AggregateError struct {
	Op   string
	Kind Kind
	errs []error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%s %s: %v (and %d more)", e.Kind, e.Op, e.errs[0], len(e.errs)-1)
}

// Primary returns the first failure.
func (e *AggregateError) Primary() error {
	return e.errs[0]
}

// Secondary returns every failure after the first.
func (e *AggregateError) Secondary() []error {
	return append([]error(nil), e.errs[1:]...)
}

// Errors returns all failures in the order they happened.
func (e *AggregateError) Errors() []error {
	return append([]error(nil), e.errs...)
}

func (e *AggregateError) Unwrap() []error {
	return e.errs
}

// Causes flattens err into its individual failures. A nil error has none; an
// error that is not an *AggregateError is its own single cause.
func Causes(err error) []error {
	if err == nil {
		return nil
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Errors()
	}
	return []error{err}
}

// aggregate turns the failures accumulated with multierr.Append into the
// error returned to the caller: nil, the lone failure unchanged, or an
// *AggregateError.
func aggregate(op string, kind Kind, errs error) error {
	list := multierr.Errors(errs)
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	default:
		return &AggregateError{Op: op, Kind: kind, errs: list}
	}
}

// violated reports a broken internal invariant: fatal in builds tagged
// dbtrack_debug, logged otherwise.
func (o *Options) violated(err error) {
	if assertionsFatal {
		panic(err)
	}
	o.logger().Error("tracker invariant violated", logger.ErrorField(err))
}
