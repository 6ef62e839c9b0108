package engine

const maxAppliedDeltas = 256

type appliedDelta struct {
	seq    int64
	amount float64
}

// counter is the confirmed side of one counter: the last absolute value seen
// and the deltas that arrived after it.
type counter struct {
	base    float64
	baseSeq int64
	applied []appliedDelta

	// rebaseSeq is the sequence of the last absolute value. compact may move
	// baseSeq past it.
	rebaseSeq int64
}

func (c *counter) confirmed() float64 {
	v := c.base
	for _, d := range c.applied {
		v += d.amount
	}
	return v
}

// rebase replaces the baseline with an absolute value current as of seq.
// Deltas newer than seq are kept. It reports false for stale values.
func (c *counter) rebase(value float64, seq int64) bool {
	if seq < c.baseSeq {
		return false
	}
	c.base = value
	c.baseSeq = seq
	c.rebaseSeq = seq
	kept := c.applied[:0]
	for _, d := range c.applied {
		if d.seq > seq {
			kept = append(kept, d)
		}
	}
	c.applied = kept
	return true
}

// fold adds a delta unless the baseline already includes it or it was
// folded before.
func (c *counter) fold(seq int64, amount float64) bool {
	if seq <= c.baseSeq {
		return false
	}
	for _, d := range c.applied {
		if d.seq == seq {
			return false
		}
	}
	c.applied = append(c.applied, appliedDelta{seq: seq, amount: amount})
	if len(c.applied) > maxAppliedDeltas {
		c.compact()
	}
	return true
}

// compacted reports whether a delta at seq was refused only because compact
// raised the baseline past it. Such a delta was never counted.
func (c *counter) compacted(seq int64) bool {
	return seq > c.rebaseSeq && seq <= c.baseSeq
}

// compact moves the oldest delta into the baseline. Deltas that arrive later
// with a sequence below it are refused; see compacted.
func (c *counter) compact() {
	oldest := 0
	for i, d := range c.applied {
		if d.seq < c.applied[oldest].seq {
			oldest = i
		}
	}
	d := c.applied[oldest]
	c.base += d.amount
	c.baseSeq = d.seq
	c.applied = append(c.applied[:oldest], c.applied[oldest+1:]...)
}
