package jpeg

import "fmt"

// Channel is a minimal, borrowed view over one scan component's decoded
// coefficient blocks: a flat, row-major sequence of 8x8 blocks in zig-zag
// position order, plus the quantization table that produced them. It
// satisfies the "abstract JPEG coefficient provider" a higher-level
// steganographic core depends on, without exposing any entropy-decode or
// dequantization machinery.
//
// The view does not outlive the Desc it was obtained from; callers must
// not retain it past one embed/extract operation.
type Channel struct {
    comp      *scanComp
    quant     [64]uint16
    nUnitsRow uint
    total     int
}

// Channel returns the index-th scan component (0=Y, 1=Cb, 2=Cr in
// appearance order) of the first baseline-sequential frame in the image.
// Progressive or arithmetic-coded frames are rejected with an error, since
// this accessor assumes one scan covers every component exactly once.
func (jpg *Desc) Channel( index int ) (*Channel, error) {
    f, err := jpg.firstBaselineFrame()
    if err != nil {
        return nil, err
    }
    if len(f.scans) == 0 {
        return nil, fmt.Errorf( "Channel: no scan data available\n" )
    }
    sc := f.scans[0]
    if index < 0 || index >= len(sc.sComps) {
        return nil, fmt.Errorf( "Channel: component index %d out of range\n", index )
    }
    cmp := &sc.sComps[index]

    var quant [64]uint16
    if int(cmp.quId) < len(jpg.qdefs) {
        quant = jpg.qdefs[cmp.quId].values
    }

    total := 0
    for _, row := range cmp.iDCTdata {
        total += len(row)
    }

    return &Channel{
        comp:      cmp,
        quant:     quant,
        nUnitsRow: cmp.nUnitsRow,
        total:     total,
    }, nil
}

func (jpg *Desc) firstBaselineFrame() (*frame, error) {
    for _, s := range jpg.segments {
        f, ok := s.(*frame)
        if !ok {
            continue
        }
        switch f.encoding {
        case HuffmanBaselineSequential, HuffmanExtendedSequential:
            return f, nil
        default:
            return nil, fmt.Errorf( "firstBaselineFrame: unsupported encoding %s\n",
                                     encodingString( f.encoding ) )
        }
    }
    return nil, fmt.Errorf( "firstBaselineFrame: no frame segment found\n" )
}

// QuantTable returns the 64 zig-zag-ordered quantization divisors that
// produced this channel's coefficients.
func (c *Channel) QuantTable() [64]uint16 {
    return c.quant
}

// MaxMCUs returns the total number of 8x8 blocks in this channel: blocks
// wide x blocks tall (the legacy library's "MCU" count is per component,
// not the multi-component frame MCU).
func (c *Channel) MaxMCUs() int {
    return c.total
}

// Block returns a mutable view of the i-th block in row-major order, with
// coefficients still in zig-zag position order (index 0 is DC, 1..63 AC),
// prior to dequantization. Writes through the returned pointer are visible
// to subsequent JPEG re-serialization.
func (c *Channel) Block( i int ) (*[64]int16, error) {
    if i < 0 || i >= c.total || c.nUnitsRow == 0 {
        return nil, fmt.Errorf( "Block: index %d out of range (0..%d)\n", i, c.total )
    }
    row := i / int(c.nUnitsRow)
    col := i % int(c.nUnitsRow)
    if row >= len(c.comp.iDCTdata) || col >= len(c.comp.iDCTdata[row]) {
        return nil, fmt.Errorf( "Block: index %d not present in component grid\n", i )
    }
    du := &c.comp.iDCTdata[row][col]
    return (*[64]int16)(du), nil
}
