package jel

import "github.com/rs/zerolog"

// Logger is the injected logging sink every Config may carry. A nil Logger
// is a silent no-op: the core never reaches for a global logger.
type Logger interface {
    Debug( msg string, kv ...interface{} )
    Info( msg string, kv ...interface{} )
    Warn( msg string, kv ...interface{} )
    Error( msg string, kv ...interface{} )
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface. kv pairs
// are (key string, value interface{}) alternating; an odd trailing key is
// logged under "extra".
type ZerologLogger struct {
    L zerolog.Logger
}

func NewZerologLogger( l zerolog.Logger ) *ZerologLogger {
    return &ZerologLogger{ L: l }
}

func withFields( e *zerolog.Event, kv []interface{} ) *zerolog.Event {
    for i := 0; i+1 < len(kv); i += 2 {
        key, ok := kv[i].(string)
        if !ok {
            continue
        }
        e = e.Interface( key, kv[i+1] )
    }
    if len(kv) % 2 == 1 {
        e = e.Interface( "extra", kv[len(kv)-1] )
    }
    return e
}

func (z *ZerologLogger) Debug( msg string, kv ...interface{} ) {
    withFields( z.L.Debug(), kv ).Msg( msg )
}
func (z *ZerologLogger) Info( msg string, kv ...interface{} ) {
    withFields( z.L.Info(), kv ).Msg( msg )
}
func (z *ZerologLogger) Warn( msg string, kv ...interface{} ) {
    withFields( z.L.Warn(), kv ).Msg( msg )
}
func (z *ZerologLogger) Error( msg string, kv ...interface{} ) {
    withFields( z.L.Error(), kv ).Msg( msg )
}

func logDebug( l Logger, msg string, kv ...interface{} ) {
    if l != nil { l.Debug( msg, kv... ) }
}
func logWarn( l Logger, msg string, kv ...interface{} ) {
    if l != nil { l.Warn( msg, kv... ) }
}
