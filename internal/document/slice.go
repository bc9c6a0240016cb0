package document

import (
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/lsp-ai-go/lsp-ai-go/internal/position"
)

// SliceMode selects how a cursor-relative slice is shaped for a prompt.
type SliceMode int

const (
	// PrefixOnly returns only the text before the cursor, for plain
	// completion framing.
	PrefixOnly SliceMode = iota
	// FIM returns prefix and suffix separately, for fill-in-the-middle
	// framing that places its own sentinel tokens around them.
	FIM
	// Chat returns a single string with the prefix and suffix joined by a
	// literal <CURSOR> sentinel, for chat framing that substitutes one
	// {CODE} field.
	Chat
)

// Slice is the result of a budgeted, cursor-relative cut of a snapshot's
// text.
type Slice struct {
	Prefix   string
	Suffix   string
	Combined string // populated only for Chat mode
}

const cursorSentinel = "<CURSOR>"

// Cut extracts the prefix/suffix around pos from snap, trimmed from the
// outside in to fit within budgetChars characters combined, preserving the
// text nearest the cursor (§4.1). When the combined text must be trimmed
// and the remaining budget is odd, the extra character goes to the prefix.
func Cut(snap *Snapshot, pos lsp.Position, budgetChars int, mode SliceMode) (Slice, error) {
	full := []byte(snap.Text())
	offset, err := position.ToOffset(full, pos)
	if err != nil {
		return Slice{}, err
	}

	prefixRunes := []rune(string(full[:offset]))
	var suffixRunes []rune
	if mode != PrefixOnly {
		suffixRunes = []rune(string(full[offset:]))
	}

	pBudget, sBudget := splitBudget(len(prefixRunes), len(suffixRunes), budgetChars)
	trimmedPrefix := string(prefixRunes[len(prefixRunes)-pBudget:])
	trimmedSuffix := string(suffixRunes[:sBudget])

	out := Slice{Prefix: trimmedPrefix, Suffix: trimmedSuffix}
	if mode == Chat {
		out.Combined = trimmedPrefix + cursorSentinel + trimmedSuffix
	}
	return out, nil
}

// splitBudget divides budget between a prefix and suffix of the given
// lengths, trimming from the outside in. A side that already fits within
// its fair half-share keeps its full length; the unused half goes to the
// other side. When budget is odd and both sides overflow, the prefix gets
// the extra character.
func splitBudget(prefixLen, suffixLen, budget int) (pBudget, sBudget int) {
	if budget < 0 {
		budget = 0
	}
	if prefixLen+suffixLen <= budget {
		return prefixLen, suffixLen
	}

	pShare := budget/2 + budget%2
	sShare := budget / 2

	switch {
	case prefixLen <= pShare:
		pBudget = prefixLen
		sBudget = budget - pBudget
	case suffixLen <= sShare:
		sBudget = suffixLen
		pBudget = budget - sBudget
	default:
		pBudget = pShare
		sBudget = sShare
	}
	return pBudget, sBudget
}
