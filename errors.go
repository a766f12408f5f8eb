package jel

import "fmt"

// Code identifies a class of failure from the embed/extract core. Every
// Code maps to exactly one taxonomy entry of the legacy jel_error_enum.
type Code int

const (
    _ Code = iota
    ErrJpeg                 // underlying coefficient provider failed
    ErrNoSuchProp           // unknown property id
    ErrBadDims              // channel dimensions invalid
    ErrNoMessage            // empty or missing payload / density out of range
    ErrMessageOverflow      // payload cannot fit in image capacity
    ErrCreateMcu            // selection table allocation failed
    ErrEcc                  // ECC encode/decode failed
    ErrChecksum             // header checksum mismatch in extract
    ErrNotEnoughFrequencies // quant table does not expose enough usable positions
)

func (c Code) String() string {
    switch c {
    case ErrJpeg:                 return "JpegError"
    case ErrNoSuchProp:           return "NoSuchProp"
    case ErrBadDims:              return "BadDims"
    case ErrNoMessage:            return "NoMessage"
    case ErrMessageOverflow:      return "MessageOverflow"
    case ErrCreateMcu:            return "CreateMcu"
    case ErrEcc:                  return "Ecc"
    case ErrChecksum:             return "Checksum"
    case ErrNotEnoughFrequencies: return "NotEnoughFrequencies"
    }
    return "Unknown"
}

// Error is the single result-or-error sum type for the core: every failure
// path returns one of these, tagged with the operation and channel that
// produced it.
type Error struct {
    Op      string // operation that failed, e.g. "embed", "extract"
    Channel int    // -1 if not channel-specific
    Code    Code
    Err     error  // wrapped cause, if any (e.g. an upstream jpeg error)
}

func (e *Error) Error() string {
    if e.Channel >= 0 {
        if e.Err != nil {
            return fmt.Sprintf( "%s: channel %d: %s: %v", e.Op, e.Channel, e.Code, e.Err )
        }
        return fmt.Sprintf( "%s: channel %d: %s", e.Op, e.Channel, e.Code )
    }
    if e.Err != nil {
        return fmt.Sprintf( "%s: %s: %v", e.Op, e.Code, e.Err )
    }
    return fmt.Sprintf( "%s: %s", e.Op, e.Code )
}

func (e *Error) Unwrap() error { return e.Err }

func newError( op string, channel int, code Code, err error ) *Error {
    return &Error{ Op: op, Channel: channel, Code: code, Err: err }
}
