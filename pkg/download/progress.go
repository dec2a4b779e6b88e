package download

// reporter turns byte counts into monotone Progress reports for one transfer.
type reporter struct {
	id    string
	total int64
	fn    ProgressFunc
	last  float64
}

func newReporter(id string, total int64, fn ProgressFunc) *reporter {
	if total <= 0 {
		total = -1
	}
	return &reporter{id: id, total: total, fn: fn}
}

func (r *reporter) chunk(written int64) {
	if r.fn == nil {
		return
	}
	if r.total < 0 {
		r.fn(Progress{ItemID: r.id, Bytes: written, Total: -1, Percent: r.last, Indeterminate: true})
		return
	}
	pct := float64(written) * 100 / float64(r.total)
	if pct > 100 {
		pct = 100
	}
	if pct < r.last {
		pct = r.last
	}
	r.last = pct
	r.fn(Progress{ItemID: r.id, Bytes: written, Total: r.total, Percent: pct})
}

func (r *reporter) done(written int64) {
	if r.fn == nil {
		return
	}
	r.last = 100
	r.fn(Progress{ItemID: r.id, Bytes: written, Total: r.total, Percent: 100, Done: true})
}
