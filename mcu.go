package jel

// mcuSelection holds a channel's block traversal order and active mask for
// one embed or extract pass. order is a permutation of [0,M). With a seed,
// active has max(1, U) ones, where U = floor(density*M/100); without one it
// marks every floor(100/density)-th index (see unseededActiveMask).
type mcuSelection struct {
    order  []int
    active []bool
}

// mcuOrder builds the traversal permutation for maxMcus blocks, using prng
// (nil when seed == 0). It consumes prng draws but has no notion of
// density: the same order results regardless of the density ultimately
// applied, so extract can reconstruct it before the density byte is known.
func mcuOrder( maxMcus int, prng *prngCache ) []int {
    order := make( []int, maxMcus )
    for i := range order {
        order[i] = i
    }
    if prng == nil || maxMcus == 0 {
        return order
    }
    // index 0 is pinned; 1..maxMcus-1 are Fisher-Yates shuffled, with the
    // same "no draw, no move" tie-break at the first shuffled position
    // (i==1) that freqPool.shuffle uses at i==0 -- see Open Question (a).
    for i := 1; i < maxMcus; i++ {
        var j int
        if i == 1 {
            j = 1
        } else {
            j = 1 + int(uint32(prng.next())) % i
        }
        order[i], order[j] = order[j], order[i]
    }
    return order
}

// activeMask marks which blocks of order are active at the given density
// (1..100), for the seeded (prng != nil) traversal: index 0 always active,
// plus the next floor(maxMcus*density/100)-1 positions of order.
func activeMask( order []int, maxMcus, density int ) []bool {
    active := make( []bool, maxMcus )
    if maxMcus == 0 {
        return active
    }
    used := maxMcus * density / 100
    active[ order[0] ] = true
    for i := 1; i < used && i < maxMcus; i++ {
        active[ order[i] ] = true
    }
    return active
}

// unseededActiveMask is the seed==0 variant: identity order, active every
// floor(100/density)-th index, computed from an explicitly cleared mask
// (§9 Open Question (d): resolved in favor of spec.md's stated behavior
// over the legacy implementation's apparent never-clear latent bug).
func unseededActiveMask( maxMcus, density int ) []bool {
    active := make( []bool, maxMcus )
    if density <= 0 {
        return active
    }
    stride := 100 / density
    if stride <= 0 {
        stride = 1
    }
    for i := 0; i < maxMcus; i++ {
        if i % stride == 0 {
            active[i] = true
        }
    }
    return active
}

// selectMCUs builds the traversal order and active mask for maxMcus blocks
// at the given density (1..100), using prng (nil when seed == 0).
func selectMCUs( maxMcus, density int, prng *prngCache ) *mcuSelection {
    order := mcuOrder( maxMcus, prng )
    var active []bool
    if prng == nil {
        active = unseededActiveMask( maxMcus, density )
    } else {
        active = activeMask( order, maxMcus, density )
    }
    return &mcuSelection{ order: order, active: active }
}
