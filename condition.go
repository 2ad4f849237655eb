package hrana

// CondKind discriminates the variant held by a Condition.
type CondKind int

const (
	CondOk CondKind = iota
	CondError
	CondNot
	CondAnd
	CondOr
	CondIsAutocommit
)

// Condition is a boolean expression over the outcomes of earlier batch
// steps. Build one with Ok, Err, Not, And, Or, or IsAutocommit.
type Condition struct {
	kind     CondKind
	step     int // valid for CondOk / CondError
	inner    *Condition
	children []Condition
}

// Ok is true when the referenced step completed without error.
func Ok(step int) Condition { return Condition{kind: CondOk, step: step} }

// Err is true when the referenced step failed.
func Err(step int) Condition { return Condition{kind: CondError, step: step} }

// Not negates c.
func Not(c Condition) Condition { return Condition{kind: CondNot, inner: &c} }

// And is true when every child condition is true. And() with no
// children is true (the empty conjunction).
func And(cs ...Condition) Condition { return Condition{kind: CondAnd, children: cs} }

// Or is true when any child condition is true. Or() with no children is
// false (the empty disjunction).
func Or(cs ...Condition) Condition { return Condition{kind: CondOr, children: cs} }

// IsAutocommit is true when the stream's SQL connection is not inside an
// explicit transaction. Requires protocol version >= 3.
func IsAutocommit() Condition { return Condition{kind: CondIsAutocommit} }

// maxStepRef returns the highest step index this condition (or any
// descendant) refers to, or -1 if it refers to none.
func (c Condition) maxStepRef() int {
	switch c.kind {
	case CondOk, CondError:
		return c.step
	case CondNot:
		return c.inner.maxStepRef()
	case CondAnd, CondOr:
		max := -1
		for _, ch := range c.children {
			if m := ch.maxStepRef(); m > max {
				max = m
			}
		}
		return max
	case CondIsAutocommit:
		return -1
	default:
		return -1
	}
}

// usesAutocommit reports whether c (or a descendant) is IsAutocommit,
// used to enforce the protocol version >= 3 requirement.
func (c Condition) usesAutocommit() bool {
	switch c.kind {
	case CondIsAutocommit:
		return true
	case CondNot:
		return c.inner.usesAutocommit()
	case CondAnd, CondOr:
		for _, ch := range c.children {
			if ch.usesAutocommit() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// stepOutcome is the realized outcome of one batch step, known only
// after the batch executes; it is what conditions are evaluated
// against.
type stepOutcome struct {
	ran       bool // false if the step was itself skipped
	succeeded bool
}

// evalCtx bundles everything a condition may read: outcomes of earlier
// steps, and the connection's current autocommit status at the point
// the condition is being evaluated.
type evalCtx struct {
	outcomes   []stepOutcome
	autocommit bool
}

// eval evaluates c against ctx. A referenced step that did not run (was
// itself skipped) counts as neither ok nor error, so both Ok(k) and
// Err(k) are false for a skipped step k.
func (c Condition) eval(ctx evalCtx) bool {
	switch c.kind {
	case CondOk:
		o := ctx.outcomes[c.step]
		return o.ran && o.succeeded
	case CondError:
		o := ctx.outcomes[c.step]
		return o.ran && !o.succeeded
	case CondNot:
		return !c.inner.eval(ctx)
	case CondAnd:
		for _, ch := range c.children {
			if !ch.eval(ctx) {
				return false
			}
		}
		return true
	case CondOr:
		for _, ch := range c.children {
			if ch.eval(ctx) {
				return true
			}
		}
		return false
	case CondIsAutocommit:
		return ctx.autocommit
	default:
		return false
	}
}
