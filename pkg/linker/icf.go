package linker

import (
	"bytes"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/govld/govld/pkg/utils"
)

// icfRange is a half-open index interval into the sorted section slice
// a segregator task owns; all sections in it share a class id when the
// task starts working on it.
type icfRange struct {
	begin, end int
}

// icfState is the shared state a sweep's worker pool operates on. nextID
// and ranges are the only contended values; both are guarded by mu, and
// the lock is never held while a predicate runs.
type icfState struct {
	sections []*InputSection
	mu       sync.Mutex
	nextID   uint32
	ranges   []*icfRange
	verbose  bool
}

func (st *icfState) allocID() uint32 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextID++
	return st.nextID
}

func (st *icfState) pushRange(r *icfRange) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ranges = append(st.ranges, r)
}

// hashSection computes the cheap initial class id from flags, size and
// relocation count, with the high bit forced to 1 so it can never
// collide with a serial id handed out by the segregator.
func hashSection(s *InputSection) uint32 {
	h := uint32(2166136261)
	mix := func(v uint32) {
		h ^= v
		h *= 16777619
	}
	mix(uint32(s.Shdr().Flags))
	mix(uint32(s.Shdr().Flags >> 32))
	mix(s.ShSize)
	mix(uint32(s.NumRelocations()))
	return h | 0x8000_0000
}

func equalsConstant(a, b *InputSection) bool {
	if a.Shdr().Flags != b.Shdr().Flags {
		return false
	}
	if a.ShSize != b.ShSize {
		return false
	}
	if a.NumRelocations() != b.NumRelocations() {
		return false
	}
	relsA, relsB := a.GetRels(), b.GetRels()
	if !bytes.Equal(a.Contents, b.Contents) {
		return false
	}
	for i := range relsA {
		ra, rb := relsA[i], relsB[i]
		if ra.Offset != rb.Offset || ra.Type != rb.Type || ra.Addend != rb.Addend {
			return false
		}
	}
	return true
}

// equalsVariable assumes its two arguments already passed
// equalsConstant in an earlier pass; it only has to decide whether
// their relocations point at equivalent places. It reads class ids
// from readSlot and never writes anything, so it is safe to call from
// any number of concurrent segregator tasks.
func equalsVariable(a, b *InputSection, readSlot int) bool {
	relsA, relsB := a.GetRels(), b.GetRels()
	for i := range relsA {
		symA := a.File.Symbols[relsA[i].Sym]
		symB := b.File.Symbols[relsB[i].Sym]
		if symA == symB {
			continue
		}
		if !symA.IsDefinedRegular() || !symB.IsDefinedRegular() {
			return false
		}
		if symA.Value != symB.Value {
			return false
		}
		secA, secB := symA.Section(), symB.Section()
		if secA == nil || secB == nil {
			return false
		}
		ca, cb := secA.ClassID[readSlot], secB.ClassID[readSlot]
		if ca == 0 || ca != cb {
			return false
		}
	}
	return true
}

// segregate peels the tail of r that doesn't match r's first element
// (the pivot) off into a freshly-classed range, then returns. The
// peeled-off tail may still mix several distinct classes if they only
// collided on the pivot's hash (or, before the constant pass has run
// to a fixed point, on the pivot's constant-equality class); the
// driver re-segregates it in a later sweep once it becomes its own
// range with its own pivot.
func segregate(st *icfState, r *icfRange, useConstant bool, readSlot, writeSlot int) {
	for r.end-r.begin > 1 {
		pivot := st.sections[r.begin]
		rest := st.sections[r.begin+1 : r.end]

		matched := make([]*InputSection, 0, len(rest))
		unmatched := make([]*InputSection, 0, len(rest))
		for _, s := range rest {
			var eq bool
			if useConstant {
				eq = equalsConstant(pivot, s)
			} else {
				eq = equalsVariable(pivot, s, readSlot)
			}
			if eq {
				matched = append(matched, s)
			} else {
				unmatched = append(unmatched, s)
			}
		}

		mid := r.begin + 1 + len(matched)
		if mid == r.end {
			return
		}

		copy(st.sections[r.begin+1:], matched)
		copy(st.sections[mid:], unmatched)

		newID := st.allocID()
		for i := mid; i < r.end; i++ {
			st.sections[i].ClassID[writeSlot] = newID
		}
		st.pushRange(&icfRange{begin: mid, end: r.end})
		r.end = mid
	}
}

// runSweep processes the ranges already known at the start of the
// sweep and reports how many new ranges were appended while doing so.
func runSweep(st *icfState, pool *ants.Pool, useConstant bool, readSlot, writeSlot int) int {
	before := len(st.ranges)
	batch := st.ranges[:before]

	if pool == nil {
		for _, r := range batch {
			segregate(st, r, useConstant, readSlot, writeSlot)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(batch))
		for _, r := range batch {
			r := r
			utils.MustNo(pool.Submit(func() {
				defer wg.Done()
				segregate(st, r, useConstant, readSlot, writeSlot)
			}))
		}
		wg.Wait()
	}

	added := st.ranges[before:]
	for _, r := range added {
		for i := r.begin; i < r.end; i++ {
			st.sections[i].ClassID[readSlot] = st.sections[i].ClassID[writeSlot]
		}
	}
	return len(added)
}

func buildInitialRanges(sections []*InputSection) []*icfRange {
	var ranges []*icfRange
	i := 0
	for i < len(sections) {
		j := i + 1
		for j < len(sections) && sections[j].ClassID[0] == sections[i].ClassID[0] {
			j++
		}
		if j-i > 1 {
			ranges = append(ranges, &icfRange{begin: i, end: j})
		}
		i = j
	}
	return ranges
}

// Run partitions the given sections into identical-code-folding classes
// and redirects each non-representative member's Replaceable pointer at
// its class representative. Apart from the ClassID slots it uses as
// scratch space, it touches no other state: IsAlive,
// OutputSection assignment and everything else about a folded section
// is left exactly as it was found, so a downstream pass that still
// wants the section's file offset or name can have it.
func Run(sections []*InputSection, threads bool, verbose bool) {
	eligible := make([]*InputSection, 0, len(sections))
	for _, s := range sections {
		if !s.Eligible() {
			continue
		}
		utils.Assert(s.Replaceable == s)
		eligible = append(eligible, s)
	}
	if len(eligible) < 2 {
		return
	}

	for _, s := range eligible {
		h := hashSection(s)
		s.ClassID[0] = h
		s.ClassID[1] = h
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.ClassID[0] != b.ClassID[0] {
			return a.ClassID[0] < b.ClassID[0]
		}
		return a.Alignment() > b.Alignment()
	})

	st := &icfState{sections: eligible, verbose: verbose}
	st.ranges = buildInitialRanges(eligible)

	var pool *ants.Pool
	if threads {
		p, err := ants.NewPool(len(st.ranges) + 1)
		utils.MustNo(err)
		pool = p
		defer pool.Release()
	}

	readSlot, writeSlot := 0, 1
	iterations := 1
	runSweep(st, pool, true, readSlot, writeSlot)
	readSlot, writeSlot = writeSlot, readSlot

	// A hash collision can group sections that are constant-unequal
	// into the same initial range; one constant sweep only peels off
	// the pivot's complement, so the complement itself may still mix
	// distinct classes. Keep re-segregating with equalsConstant until
	// a sweep adds nothing new before switching to equalsVariable,
	// otherwise the variable predicate (which never looks at bytes,
	// size, or reloc shape) can fold sections that were never equal.
	for {
		added := runSweep(st, pool, true, readSlot, writeSlot)
		iterations++
		readSlot, writeSlot = writeSlot, readSlot
		if added == 0 {
			break
		}
	}

	for {
		added := runSweep(st, pool, false, readSlot, writeSlot)
		iterations++
		readSlot, writeSlot = writeSlot, readSlot
		if added == 0 {
			break
		}
	}

	utils.Verbosef(verbose, "ICF needed %d iterations\n", iterations)

	replace(st, verbose)
}

// replace assigns the highest-alignment member of every multi-section
// class as its representative and points every other member's
// Replaceable at it.
func replace(st *icfState, verbose bool) {
	for _, r := range st.ranges {
		if r.end-r.begin < 2 {
			continue
		}

		rep := st.sections[r.begin]
		utils.Verbosef(verbose, "selected %s\n", rep.Name())
		for i := r.begin + 1; i < r.end; i++ {
			member := st.sections[i]
			member.Replaceable = rep
			utils.Verbosef(verbose, "  removed %s\n", member.Name())
		}
	}
}

// RunICF gathers every section from every live object file and hands
// them to Run, driven by the context's ICF flags.
func RunICF(ctx *Context) {
	var all []*InputSection
	for _, obj := range ctx.Objs {
		for _, isec := range obj.Sections {
			if isec != nil {
				all = append(all, isec)
			}
		}
	}

	Run(all, ctx.Args.ICFThreads > 1, ctx.Args.ICFVerbose)
}
