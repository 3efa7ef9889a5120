package animate

// Window is the sampled time range [Start, End) in seconds from midnight,
// taken every Step seconds.
type Window struct {
	Start int
	End   int
	Step  int
}

// Len is the number of frames in the window.
func (w Window) Len() int {
	if w.Step <= 0 || w.End <= w.Start {
		return 0
	}
	return (w.End - w.Start + w.Step - 1) / w.Step
}

// Times lists every sampled time in order.
func (w Window) Times() []int {
	times := make([]int, 0, w.Len())
	for i := 0; i < w.Len(); i++ {
		times = append(times, w.Start+i*w.Step)
	}
	return times
}
