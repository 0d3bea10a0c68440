// Package domain holds the core data types and error taxonomy shared by the
// panel, feature, portfolio and sweep packages. It has no infrastructure
// dependencies.
package domain

import "fmt"

// ConfigurationError reports an invalid hyperparameter or grid value.
// Configuration errors are fatal: the sweep refuses to start.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// AlignmentError reports a row-count mismatch between a day's feature matrix
// and its return vectors.
type AlignmentError struct {
	Rows    int
	Returns int
	Next    int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("row alignment broken: %d feature rows, %d returns, %d next returns", e.Rows, e.Returns, e.Next)
}

// SingularSystemError reports that the ridge-regularized covariance matrix is
// not positive definite and the Cholesky factorization failed.
type SingularSystemError struct {
	Dim    int
	Lambda float64
}

func (e *SingularSystemError) Error() string {
	return fmt.Sprintf("regularized covariance (dim=%d, lambda=%g) is not positive definite", e.Dim, e.Lambda)
}

// FitError reports that the dimensionality reducer could not be fitted.
type FitError struct {
	Reason string
}

func (e *FitError) Error() string {
	return fmt.Sprintf("reducer fit failed: %s", e.Reason)
}

// InsufficientDataError reports a trading day with no usable assets.
// Per-day insufficiencies are recorded as skipped days, never as zeros.
type InsufficientDataError struct {
	Day string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("no usable assets on %s", e.Day)
}
