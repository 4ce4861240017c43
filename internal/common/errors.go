package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/samber/lo"
)

// Error taxonomy shared by every stage of a run
var (
	ErrNetwork                = errors.New("network error")
	ErrTimeout                = errors.New("timeout")
	ErrParse                  = errors.New("malformed metadata")
	ErrDecode                 = errors.New("malformed tile image")
	ErrIO                     = errors.New("i/o error")
	ErrUnsupportedEnvironment = errors.New("unsupported desktop environment")

	// ErrRateLimited is always reported together with ErrNetwork
	ErrRateLimited = errors.New("rate limited")

	ErrInvalidConfig = errors.New("invalid configuration")
)

// TileError records why one tile could not be fetched or decoded
type TileError struct {
	Coord TileCoordinate
	Err   error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %s: %v", e.Coord, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }

// AssemblyError lists every tile that failed during one assembly run
type AssemblyError struct {
	Total  int
	Failed []*TileError
}

func (e *AssemblyError) Error() string {
	coords := lo.Map(e.Failed, func(te *TileError, _ int) string {
		return te.Coord.String()
	})
	if len(e.Failed) == 1 {
		return fmt.Sprintf("assembly failed: %v", e.Failed[0])
	}
	first := "none"
	if len(e.Failed) > 0 {
		first = e.Failed[0].Err.Error()
	}
	return fmt.Sprintf("assembly failed: %d/%d tiles failed %s, first: %s",
		len(e.Failed), e.Total, strings.Join(coords, " "), first)
}

// Unwrap exposes every tile error so errors.Is matches any of them
func (e *AssemblyError) Unwrap() []error {
	return lo.Map(e.Failed, func(te *TileError, _ int) error { return te })
}

// Coordinates returns the failed coordinates in report order
func (e *AssemblyError) Coordinates() []TileCoordinate {
	return lo.Map(e.Failed, func(te *TileError, _ int) TileCoordinate { return te.Coord })
}

// ClassifyTransport maps an HTTP client error onto ErrTimeout or ErrNetwork.
// Cancellation by the caller is passed through untouched.
func ClassifyTransport(err error, parent context.Context) error {
	if err == nil {
		return nil
	}
	if parent != nil && errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Classify returns a short kind name for logs and telemetry
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrUnsupportedEnvironment):
		return "unsupported_environment"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	default:
		return "unknown"
	}
}
