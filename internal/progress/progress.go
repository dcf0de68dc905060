package progress

// Fraction returns current/total clamped to [0,1], or 0 when total is not positive.
func Fraction(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(current) / float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Reporter receives every progress change. visible is false once the
// transfer has finished or been reset and the indicator should be hidden.
type Reporter func(fraction float64, visible bool)

// Tracker keeps the progress of one session and forwards it to a Reporter.
type Tracker struct {
	value    float64
	visible  bool
	reporter Reporter
}

func NewTracker(r Reporter) *Tracker {
	return &Tracker{reporter: r}
}

// Show displays the indicator at 0%.
func (t *Tracker) Show() {
	t.value = 0
	t.visible = true
	t.report()
}

func (t *Tracker) Update(current, total int) float64 {
	t.value = Fraction(current, total)
	t.visible = true
	t.report()
	return t.value
}

// Reset returns progress to zero and hides the indicator.
func (t *Tracker) Reset() {
	t.value = 0
	t.visible = false
	t.report()
}

func (t *Tracker) Value() float64 {
	return t.value
}

func (t *Tracker) Visible() bool {
	return t.visible
}

func (t *Tracker) report() {
	if t.reporter != nil {
		t.reporter(t.value, t.visible)
	}
}
