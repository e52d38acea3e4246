package usecase

import (
	"sort"
	"strings"
)

// chunkAssembler reassembles per-chunk transcripts by ordinal so an utterance
// reads in spoken order even when later chunks decode first. Owned by the
// session loop; not safe for concurrent use.
type chunkAssembler struct {
	texts  map[int]string
	sealed bool
	count  int
}

func newChunkAssembler() *chunkAssembler {
	return &chunkAssembler{texts: make(map[int]string)}
}

// Put records the terminal text for one ordinal. Failed chunks are recorded
// as empty so completion accounting still closes.
func (a *chunkAssembler) Put(ordinal int, text string) {
	a.texts[ordinal] = strings.TrimSpace(text)
}

// Seal fixes the total chunk count once no further chunks will be submitted.
func (a *chunkAssembler) Seal(count int) {
	a.sealed = true
	a.count = count
}

// Complete reports whether every sealed ordinal has a terminal outcome.
func (a *chunkAssembler) Complete() bool {
	if !a.sealed {
		return false
	}
	for i := 0; i < a.count; i++ {
		if _, ok := a.texts[i]; !ok {
			return false
		}
	}
	return true
}

// Text joins the non-empty chunk texts in ordinal order.
func (a *chunkAssembler) Text() string {
	ordinals := make([]int, 0, len(a.texts))
	for ordinal := range a.texts {
		ordinals = append(ordinals, ordinal)
	}
	sort.Ints(ordinals)

	parts := make([]string, 0, len(ordinals))
	for _, ordinal := range ordinals {
		if text := a.texts[ordinal]; text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
