package jpeg

import "testing"

func TestSizeCategoryExtendRoundTrip( t *testing.T ) {
    for v := -255; v <= 255; v++ {
        s, bits := sizeCategory( v )
        got := extend( int(bits), s )
        if got != v {
            t.Fatalf( "extend(sizeCategory(%d)) = %d, want %d", v, got, v )
        }
    }
}

func TestBuildCodesCanonicalAssignment( t *testing.T ) {
    var values [16][]uint8
    values[1] = []uint8{ 0, 1, 2, 3 } // four symbols at length 2, a complete code
    codes := buildCodes( values )

    want := map[uint8]huffCode{
        0: { length: 2, code: 0 },
        1: { length: 2, code: 1 },
        2: { length: 2, code: 2 },
        3: { length: 2, code: 3 },
    }
    for sym, w := range want {
        got, ok := codes[sym]
        if !ok || got != w {
            t.Errorf( "codes[%d] = %v, want %v", sym, got, w )
        }
    }
}

func TestBitWriterReaderRoundTripWithStuffing( t *testing.T ) {
    bw := &bitWriter{}
    bw.putBits( 0xff, 8 )  // forces a stuffed 0x00 byte in the output
    bw.putBits( 0x05, 4 )
    bw.flush()

    br := newBitReader( bw.buf, 0 )
    v, err := br.bits( 8 )
    if err != nil || v != 0xff {
        t.Fatalf( "bits(8) = %d, %v, want 0xff, nil", v, err )
    }
    v, err = br.bits( 4 )
    if err != nil || v != 0x05 {
        t.Fatalf( "bits(4) = %d, %v, want 5, nil", v, err )
    }
}

func TestDecodeEncodeDataUnitRoundTrip( t *testing.T ) {
    var dcValues, acValues [16][]uint8
    dcValues[1] = []uint8{ 0, 1, 2, 3 }
    acValues[1] = []uint8{ 0x00, 0x01, 0x11, 0xf0 } // EOB, (0,1), (1,1), ZRL

    dcRoot := buildTree( dcValues )
    acRoot := buildTree( acValues )
    dcCodes := buildCodes( dcValues )
    acCodes := buildCodes( acValues )

    var du dataUnit
    du[0] = -1 // DC value; diff against prevDC==0 has size 1 (symbol 1)
    du[1] = 1  // run 0, size 1 (symbol 0x01), then implicit EOB

    bw := &bitWriter{}
    var encPrevDC int16
    if err := encodeDataUnit( bw, &du, dcCodes, acCodes, &encPrevDC ); err != nil {
        t.Fatalf( "encodeDataUnit: %v", err )
    }
    bw.flush()

    comp := &scanComp{ hDC: dcRoot, hAC: acRoot }
    br := newBitReader( bw.buf, 0 )
    decoded, err := decodeDataUnit( comp, br )
    if err != nil {
        t.Fatalf( "decodeDataUnit: %v", err )
    }
    if decoded[0] != -1 || decoded[1] != 1 {
        t.Fatalf( "decoded = %v, want [-1 1 0...]", decoded[:2] )
    }
    for k := 2; k < 64; k++ {
        if decoded[k] != 0 {
            t.Fatalf( "decoded[%d] = %d, want 0", k, decoded[k] )
        }
    }
    if comp.previousDC != -1 {
        t.Fatalf( "previousDC = %d, want -1", comp.previousDC )
    }
}

func TestFrameMcuGrid( t *testing.T ) {
    frm := &frame{
        resolution: sampling{
            nLines:       17,
            nSamplesLine: 20,
            mhSF:         2,
            mvSF:         2,
        },
    }
    perLine, perCol := frameMcuGrid( frm )
    if perLine != 2 { // ceil(20/16)
        t.Errorf( "perLine = %d, want 2", perLine )
    }
    if perCol != 2 { // ceil(17/16)
        t.Errorf( "perCol = %d, want 2", perCol )
    }
}
