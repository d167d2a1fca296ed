package autopilot

import "errors"

var (
	// ErrDuplicateProposal is returned by ProposalStore.Create when a
	// non-terminal proposal with the same (owner, dedupeKey) already
	// exists. Detection treats it as a benign skip: the unique index is
	// the authoritative dedupe backstop.
	ErrDuplicateProposal = errors.New("duplicate proposal")

	// ErrNotFoundOrProcessed is returned by guarded status updates when no
	// document matched the (id, owner, expected status) filter — either
	// the proposal does not exist or a concurrent actor already moved it.
	// Callers report it to the user and never retry blindly.
	ErrNotFoundOrProcessed = errors.New("proposal not found or already processed")
)
