package jel

// Channel identifies one of the three color components a Config may embed
// into or extract from.
type Channel int

const (
    Y Channel = iota
    U
    V
)

func (c Channel) String() string {
    switch c {
    case Y: return "Y"
    case U: return "U"
    case V: return "V"
    }
    return "?"
}

const autoDensity = -1

// Config holds every tunable for one embed or extract operation. It is
// built once per operation and passed explicitly everywhere it is needed;
// there is no global state (Design Notes §9).
type Config struct {
    Seed         uint32
    NLevels      int
    NFreqs       int
    MaxFreqs     int
    BitsPerFreq  int
    McuDensity   int // 1..100, or autoDensity for "auto"
    EccMethod    EccMethod
    EccBlockLen  int
    EmbedHeader  bool
    EmbedLength  bool // legacy flag retained for header-less mode
    SetDc        int  // -1 (off) or 0..255
    ClearAc      bool
    Normalize    bool
    Compress     bool // not read by Embed/Extract: any compression is done by the caller
    Components   []Channel

    Logger Logger
}

// NewConfig returns a Config with the defaults the legacy peer used:
// 4 candidate frequencies, 1 bit per frequency, full density, no ECC, a
// framed header, and Y as the only enabled channel.
func NewConfig( nLevels int ) *Config {
    if nLevels < 1 {
        nLevels = 8
    }
    return &Config{
        Seed:        0,
        NLevels:     nLevels,
        NFreqs:      1,
        MaxFreqs:    4,
        BitsPerFreq: 1,
        McuDensity:  100,
        EccMethod:   EccNone,
        EccBlockLen: 32,
        EmbedHeader: true,
        EmbedLength: true,
        SetDc:       -1,
        ClearAc:     false,
        Normalize:   false,
        Components:  []Channel{ Y },
    }
}

// SetComponents sets the ordered, de-duplicated list of channels to use.
func (c *Config) SetComponents( chans ...Channel ) {
    seen := make( map[Channel]bool, len(chans) )
    out := make( []Channel, 0, len(chans) )
    for _, ch := range chans {
        if seen[ch] {
            continue
        }
        seen[ch] = true
        out = append( out, ch )
    }
    c.Components = out
}

func (c *Config) SetSeed( seed uint32 ) {
    c.Seed = seed
}

func (c *Config) SetNLevels( n int ) {
    c.NLevels = n
}

func (c *Config) SetNFreqs( n int ) {
    c.NFreqs = n
}

func (c *Config) SetMaxFreqs( n int ) {
    c.MaxFreqs = n
}

func (c *Config) SetBitsPerFreq( n int ) {
    c.BitsPerFreq = n
}

func (c *Config) SetMcuDensity( d int ) {
    c.McuDensity = d
}

func (c *Config) SetEccMethod( m EccMethod ) {
    c.EccMethod = m
}

func (c *Config) SetEccBlockLen( n int ) {
    c.EccBlockLen = n
}

func (c *Config) SetEmbedHeader( b bool ) {
    c.EmbedHeader = b
}

func (c *Config) codec() eccCodec {
    switch c.EccMethod {
    case EccRSCode:
        return newRSCodec( c.EccBlockLen )
    default:
        return noneCodec{}
    }
}
