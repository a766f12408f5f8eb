package jel

import (
    "github.com/jrm-1535/jel/jpeg"
)

// coeffProvider is the abstract JPEG coefficient provider the core depends
// on (spec §1's "out of scope: JPEG entropy decoding/encoding, DCT,
// quantization tables"). jpeg.Channel satisfies this structurally; nothing
// in this package imports jpeg beyond this file and Image below.
type coeffProvider interface {
    QuantTable() [64]uint16
    MaxMCUs() int
    Block( i int ) (*[64]int16, error)
}

// Image is a parsed baseline JPEG cover/stego file. It borrows coefficient
// arrays from the underlying jpeg.Desc for the duration of one embed or
// extract call; callers must not retain a Channel past that call.
type Image struct {
    desc *jpeg.Desc
}

// OpenImage parses raw JPEG bytes into an Image ready for embed/extract.
func OpenImage( data []byte ) (*Image, error) {
    desc, err := jpeg.Parse( data, &jpeg.Control{} )
    if err != nil {
        return nil, newError( "OpenImage", -1, ErrJpeg, err )
    }
    return &Image{ desc: desc }, nil
}

// Serialize writes the (possibly modified) image back out in JPEG form.
// Any coefficient edits made through a channel's Block accessor since
// OpenImage only reach the output once ReEncodeScans rebuilds the
// entropy-coded bytes they live in.
func (img *Image) Serialize() ( []byte, error ) {
    if err := img.desc.ReEncodeScans(); err != nil {
        return nil, newError( "Serialize", -1, ErrJpeg, err )
    }
    data, err := img.desc.Generate()
    if err != nil {
        return nil, newError( "Serialize", -1, ErrJpeg, err )
    }
    return data, nil
}

func (img *Image) channel( ch Channel ) (coeffProvider, error) {
    c, err := img.desc.Channel( int(ch) )
    if err != nil {
        return nil, newError( "channel", int(ch), ErrJpeg, err )
    }
    return c, nil
}
