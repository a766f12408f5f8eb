package jpeg

// Baseline sequential entropy coding: the teacher's segment parser builds
// Huffman trees (buildTree) and MCU/component geometry (startOfFrame,
// setScan) but stops short of actually walking the entropy-coded bit
// stream. This file supplies that missing bit-level layer, both ways:
// decode into the already-allocated iDCTdata grids, and re-encode from
// them so that coefficient edits made through Channel.Block are reflected
// in a subsequently generated file.

import "fmt"

// bitReader walks a byte-stuffed entropy-coded segment one bit at a time,
// MSB first, stopping (without consuming) at the first real marker.
type bitReader struct {
    data  []byte
    pos   uint
    cur   byte
    nbits uint
}

var errEcsMarker = fmt.Errorf( "entropy: marker encountered in coded segment\n" )

func newBitReader( data []byte, pos uint ) *bitReader {
    return &bitReader{ data: data, pos: pos }
}

func (br *bitReader) fill() error {
    if br.pos >= uint(len(br.data)) {
        return errEcsMarker
    }
    b := br.data[br.pos]
    if b == 0xff {
        if br.pos+1 >= uint(len(br.data)) {
            return errEcsMarker
        }
        if br.data[br.pos+1] != 0x00 {
            return errEcsMarker     // real marker: leave pos right on the 0xff
        }
        br.pos += 2
        br.cur = 0xff
        br.nbits = 8
        return nil
    }
    br.pos++
    br.cur = b
    br.nbits = 8
    return nil
}

func (br *bitReader) bit() ( int, error ) {
    if br.nbits == 0 {
        if err := br.fill(); err != nil {
            return 0, err
        }
    }
    br.nbits--
    return int( ( br.cur >> br.nbits ) & 1 ), nil
}

func (br *bitReader) bits( n uint8 ) ( int, error ) {
    v := 0
    for i := uint8(0); i < n; i++ {
        b, err := br.bit()
        if err != nil {
            return 0, err
        }
        v = ( v << 1 ) | b
    }
    return v, nil
}

// decodeHuffman walks root one bit at a time: 0 goes right, 1 goes left,
// matching the convention buildTree assembles its tree with.
func decodeHuffman( root *hcnode, br *bitReader ) ( uint8, error ) {
    node := root
    for node.left != nil || node.right != nil {
        b, err := br.bit()
        if err != nil {
            return 0, err
        }
        if b == 0 {
            if node.right == nil {
                return 0, fmt.Errorf( "entropy: invalid Huffman code\n" )
            }
            node = node.right
        } else {
            if node.left == nil {
                return 0, fmt.Errorf( "entropy: invalid Huffman code\n" )
            }
            node = node.left
        }
    }
    return node.symbol, nil
}

// extend recovers the signed value (JPEG Annex F.2.2.1) of an s-bit
// magnitude/sign-coded quantity bits, the inverse of sizeCategory.
func extend( bits int, s uint8 ) int {
    if s == 0 {
        return 0
    }
    vt := 1 << ( s - 1 )
    if bits < vt {
        return bits - ( 1 << s ) + 1
    }
    return bits
}

// sizeCategory returns the Huffman size category and the bits that
// represent v in that category (JPEG Annex F.1.2.1), the inverse of extend.
func sizeCategory( v int ) ( uint8, uint32 ) {
    av := v
    if av < 0 {
        av = -av
    }
    var s uint8
    for t := av; t > 0; t >>= 1 {
        s++
    }
    if v < 0 {
        return s, uint32( v + ( 1 << s ) - 1 )
    }
    return s, uint32( v )
}

// decodeDataUnit decodes one 8x8 block of quantized, zig-zag-ordered
// coefficients for comp, updating its DC predictor in place.
func decodeDataUnit( comp *scanComp, br *bitReader ) ( *dataUnit, error ) {
    var du dataUnit

    s, err := decodeHuffman( comp.hDC, br )
    if err != nil {
        return nil, err
    }
    diff := 0
    if s > 0 {
        bits, err := br.bits( s )
        if err != nil {
            return nil, err
        }
        diff = extend( bits, s )
    }
    dc := int( comp.previousDC ) + diff
    comp.previousDC = int16( dc )
    du[0] = int16( dc )

    for k := 1; k < 64; {
        rs, err := decodeHuffman( comp.hAC, br )
        if err != nil {
            return nil, err
        }
        run := rs >> 4
        size := rs & 0x0f
        if size == 0 {
            if run != 15 {
                break  // EOB: remaining coefficients stay zero
            }
            k += 16    // ZRL: 16 zero coefficients
            continue
        }
        k += int( run )
        if k >= 64 {
            return nil, fmt.Errorf( "entropy: AC run overruns data unit\n" )
        }
        bits, err := br.bits( size )
        if err != nil {
            return nil, err
        }
        du[k] = int16( extend( bits, size ) )
        k++
    }
    return &du, nil
}

// frameMcuGrid returns the number of MCUs per line and per column for frm,
// following the same ceiling-division formulas startOfFrame pre-allocates
// iDCTdata with.
func frameMcuGrid( frm *frame ) ( uint, uint ) {
    hUnit := uint16( frm.resolution.mhSF ) * 8
    vUnit := uint16( frm.resolution.mvSF ) * 8
    if hUnit == 0 || vUnit == 0 {
        return 0, 0
    }
    perLine := uint( ( frm.resolution.nSamplesLine + hUnit - 1 ) / hUnit )
    perCol  := uint( ( frm.resolution.nLines + vUnit - 1 ) / vUnit )
    return perLine, perCol
}

// processSequentialEcs decodes as many MCUs of an interleaved baseline
// sequential scan (one with both DC and AC Huffman tables) as the entropy
// stream holds before the next restart or end-of-scan marker, writing
// quantized coefficients into each component's iDCTdata grid. It is the
// function getEcsFct wires up for BaselineSequential frames; the caller
// (processScan) re-invokes it after stepping over each restart marker.
func (jpg *Desc) processSequentialEcs( nMCUs uint, sc *scan ) ( uint, error ) {
    frm := jpg.getCurrentFrame()
    if frm == nil {
        return nMCUs, fmt.Errorf( "processSequentialEcs: no current frame\n" )
    }
    if len( sc.sComps ) < 2 {
        return nMCUs, fmt.Errorf( "processSequentialEcs: non-interleaved scans are not supported\n" )
    }
    mcusPerLine, mcusPerCol := frameMcuGrid( frm )
    total := mcusPerLine * mcusPerCol
    if total == 0 {
        return nMCUs, fmt.Errorf( "processSequentialEcs: empty frame geometry\n" )
    }

    for i := range sc.sComps {          // DC prediction restarts at every
        sc.sComps[i].previousDC = 0     // entry, i.e. at every restart marker
    }

    br := newBitReader( jpg.data, jpg.offset )
    for nMCUs < total {
        mcuRow := nMCUs / mcusPerLine
        mcuCol := nMCUs % mcusPerLine
        for ci := range sc.sComps {
            comp := &sc.sComps[ci]
            if comp.hDC == nil || comp.hAC == nil {
                jpg.offset = br.pos
                return nMCUs, fmt.Errorf( "processSequentialEcs: missing Huffman table for component %d\n", ci )
            }
            for dy := uint(0); dy < comp.VSF; dy++ {
                for dx := uint(0); dx < comp.HSF; dx++ {
                    du, err := decodeDataUnit( comp, br )
                    if err != nil {
                        jpg.offset = br.pos
                        if err == errEcsMarker {
                            return nMCUs, nil
                        }
                        return nMCUs, jpgForwardError( "processSequentialEcs", err )
                    }
                    rowIdx := mcuRow*comp.VSF + dy
                    colIdx := mcuCol*comp.HSF + dx
                    if int(rowIdx) < len(comp.iDCTdata) && int(colIdx) < len(comp.iDCTdata[rowIdx]) {
                        comp.iDCTdata[rowIdx][colIdx] = *du
                    }
                }
            }
        }
        nMCUs++
    }
    jpg.offset = br.pos
    return nMCUs, nil
}

// Progressive scans (multi-pass DC refinement and spectral-selection AC
// passes) are out of scope: getEcsFct only reaches these for
// ExtendedProgressive frames, which firstBaselineFrame already rejects
// before a Channel is ever handed out.
func (jpg *Desc) processRefiningDcEcs( nMCUs uint, sc *scan ) ( uint, error ) {
    return nMCUs, fmt.Errorf( "processRefiningDcEcs: progressive DC refinement is not supported\n" )
}

func (jpg *Desc) processInitialAcEcs( nMCUs uint, sc *scan ) ( uint, error ) {
    return nMCUs, fmt.Errorf( "processInitialAcEcs: progressive AC scans are not supported\n" )
}

func (jpg *Desc) processRefiningAcEcs( nMCUs uint, sc *scan ) ( uint, error ) {
    return nMCUs, fmt.Errorf( "processRefiningAcEcs: progressive AC scans are not supported\n" )
}

// ---------------- re-encoding: iDCTdata -> entropy-coded bytes ----------

// bitWriter is the mirror of bitReader: MSB-first, byte-stuffed output.
type bitWriter struct {
    buf   []byte
    cur   byte
    nbits uint
}

func (bw *bitWriter) putBits( value uint32, n uint ) {
    for i := n; i > 0; i-- {
        bit := byte( ( value >> ( i - 1 ) ) & 1 )
        bw.cur = ( bw.cur << 1 ) | bit
        bw.nbits++
        if bw.nbits == 8 {
            bw.buf = append( bw.buf, bw.cur )
            if bw.cur == 0xff {
                bw.buf = append( bw.buf, 0x00 )
            }
            bw.cur, bw.nbits = 0, 0
        }
    }
}

// flush pads the last partial byte with 1 bits, matching how a baseline
// encoder terminates a scan or restart interval before a marker.
func (bw *bitWriter) flush() {
    if bw.nbits == 0 {
        return
    }
    for bw.nbits < 8 {
        bw.cur = ( bw.cur << 1 ) | 1
        bw.nbits++
    }
    bw.buf = append( bw.buf, bw.cur )
    if bw.cur == 0xff {
        bw.buf = append( bw.buf, 0x00 )
    }
    bw.cur, bw.nbits = 0, 0
}

type huffCode struct {
    length uint8
    code   uint16
}

// buildCodes assigns canonical Huffman codes to the symbols in values,
// grouped by code length exactly as DHT lists them (JPEG Annex C,
// generate_codes): the same table buildTree consumes to grow its decode
// tree, read here to derive the matching encode-side (length, code) pairs.
func buildCodes( values [16][]uint8 ) map[uint8]huffCode {
    codes := make( map[uint8]huffCode )
    code := uint16(0)
    for length := 1; length <= 16; length++ {
        for _, sym := range values[length-1] {
            codes[sym] = huffCode{ length: uint8(length), code: code }
            code++
        }
        code <<= 1
    }
    return codes
}

// encodeDataUnit writes one 8x8 block of quantized, zig-zag-ordered
// coefficients, DC-predicted against prevDC, the inverse of decodeDataUnit.
func encodeDataUnit( bw *bitWriter, du *dataUnit, dcCodes, acCodes map[uint8]huffCode, prevDC *int16 ) error {
    diff := int( du[0] ) - int( *prevDC )
    *prevDC = du[0]

    s, bits := sizeCategory( diff )
    hc, ok := dcCodes[s]
    if !ok {
        return fmt.Errorf( "encodeDataUnit: no DC Huffman code for size %d\n", s )
    }
    bw.putBits( uint32(hc.code), uint(hc.length) )
    if s > 0 {
        bw.putBits( bits, uint(s) )
    }

    run := 0
    for k := 1; k < 64; k++ {
        v := int( du[k] )
        if v == 0 {
            run++
            continue
        }
        for run > 15 {
            hc, ok := acCodes[0xf0]         // ZRL
            if !ok {
                return fmt.Errorf( "encodeDataUnit: no AC Huffman code for ZRL\n" )
            }
            bw.putBits( uint32(hc.code), uint(hc.length) )
            run -= 16
        }
        s, bits := sizeCategory( v )
        rs := uint8(run<<4) | s
        hc, ok := acCodes[rs]
        if !ok {
            return fmt.Errorf( "encodeDataUnit: no AC Huffman code for run/size %#x\n", rs )
        }
        bw.putBits( uint32(hc.code), uint(hc.length) )
        bw.putBits( bits, uint(s) )
        run = 0
    }
    if run > 0 {
        hc, ok := acCodes[0x00]             // EOB
        if !ok {
            return fmt.Errorf( "encodeDataUnit: no AC Huffman code for EOB\n" )
        }
        bw.putBits( uint32(hc.code), uint(hc.length) )
    }
    return nil
}

// reEncodeScan rebuilds sc.ECSs from its components' current iDCTdata,
// inserting restart markers at the same cadence the original scan used.
func (jpg *Desc) reEncodeScan( frm *frame, sc *scan ) error {
    if len( sc.sComps ) == 0 {
        return nil
    }
    if len( sc.sComps ) < 2 {
        return fmt.Errorf( "reEncodeScan: non-interleaved scans are not supported\n" )
    }

    mcusPerLine, mcusPerCol := frameMcuGrid( frm )
    total := mcusPerLine * mcusPerCol
    if total == 0 {
        return fmt.Errorf( "reEncodeScan: empty frame geometry\n" )
    }

    type compCodes struct {
        dc, ac map[uint8]huffCode
        prevDC int16
    }
    codes := make( []compCodes, len(sc.sComps) )
    for i := range sc.sComps {
        cs := &sc.sComps[i]
        if int(2*cs.dcId) >= len(jpg.hdefs) || int(2*cs.acId+1) >= len(jpg.hdefs) {
            return fmt.Errorf( "reEncodeScan: missing Huffman table for component %d\n", i )
        }
        codes[i].dc = buildCodes( jpg.hdefs[2*cs.dcId].values )
        codes[i].ac = buildCodes( jpg.hdefs[2*cs.acId+1].values )
    }

    bw := &bitWriter{}
    rst := uint(0)
    for m := uint(0); m < total; m++ {
        if sc.rstInterval > 0 && m > 0 && m % sc.rstInterval == 0 {
            bw.flush()
            bw.buf = append( bw.buf, 0xff, byte(0xd0 + rst%8) )
            rst++
            for i := range codes {
                codes[i].prevDC = 0
            }
        }

        mcuRow := m / mcusPerLine
        mcuCol := m % mcusPerLine
        for ci := range sc.sComps {
            comp := &sc.sComps[ci]
            for dy := uint(0); dy < comp.VSF; dy++ {
                for dx := uint(0); dx < comp.HSF; dx++ {
                    rowIdx := mcuRow*comp.VSF + dy
                    colIdx := mcuCol*comp.HSF + dx
                    if int(rowIdx) >= len(comp.iDCTdata) || int(colIdx) >= len(comp.iDCTdata[rowIdx]) {
                        continue
                    }
                    du := &comp.iDCTdata[rowIdx][colIdx]
                    if err := encodeDataUnit( bw, du, codes[ci].dc, codes[ci].ac, &codes[ci].prevDC ); err != nil {
                        return err
                    }
                }
            }
        }
    }
    bw.flush()
    sc.ECSs = bw.buf
    return nil
}

// ReEncodeScans regenerates every baseline-sequential scan's entropy-coded
// bytes from its (possibly just-modified) coefficient grids. Serialize
// callers must invoke this before Generate/Write whenever coefficients may
// have been written through a Channel's Block accessor; without it,
// serialize keeps emitting the scan's original, unmodified ECSs verbatim.
func (jpg *Desc) ReEncodeScans() error {
    for fi := range jpg.frames {
        frm := &jpg.frames[fi]
        if frm.encodingMode() != BaselineSequential {
            continue
        }
        for si := range frm.scans {
            if err := jpg.reEncodeScan( frm, &frm.scans[si] ); err != nil {
                return jpgForwardError( "ReEncodeScans", err )
            }
        }
    }
    return nil
}
