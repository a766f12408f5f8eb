package jel

// candidateFreqs scans quant table positions 63 down to 1 and collects at
// most maxFreqs indices j with floor(255/quant[j]) >= nLevels, preserving
// descending order.
func candidateFreqs( quant [64]uint16, maxFreqs, nLevels int ) []int {
    freqs := make( []int, 0, maxFreqs )
    for j := 63; j >= 1 && len(freqs) < maxFreqs; j-- {
        q := quant[j]
        if q == 0 {
            continue
        }
        levels := 255 / int(q)
        if levels >= nLevels {
            freqs = append( freqs, j )
        }
    }
    return freqs
}

// levelsAt returns floor(255/quant[j]), the number of distinct values a
// coefficient at position j can represent.
func levelsAt( quant [64]uint16, j int ) int {
    if quant[j] == 0 {
        return 0
    }
    return 255 / int(quant[j])
}

// freqPool is the mutable, per-channel working copy of the candidate
// frequency list, reshuffled on every visited MCU when seed != 0.
type freqPool struct {
    freqs  []int // the original candidate order, never mutated
    inUse  []int // working copy, shuffled in place
}

func newFreqPool( freqs []int ) *freqPool {
    fp := &freqPool{
        freqs: freqs,
        inUse: make( []int, len(freqs) ),
    }
    fp.reset()
    return fp
}

func (fp *freqPool) reset() {
    copy( fp.inUse, fp.freqs )
}

// shuffle performs a Fisher-Yates permutation of inUse using prng.next() %
// (i+1), with the standard "no move when j==0 at i==0" tie-break used for
// frequency ordering (distinct from the MCU selector's tie-break at i==1,
// see mcu.go).
func (fp *freqPool) shuffle( prng *prngCache ) {
    n := len(fp.inUse)
    for i := 0; i < n; i++ {
        var j int
        if i == 0 {
            j = 0
        } else {
            j = int(uint32(prng.next())) % (i + 1)
        }
        fp.inUse[i], fp.inUse[j] = fp.inUse[j], fp.inUse[i]
    }
}
