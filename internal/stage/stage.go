package stage

// Name identifies one step of the per-item media pipeline. Names are
// persisted in the ledger and surfaced in logs, so they must stay stable.
type Name string

const (
	ProbeDuration   Name = "PROBE_DURATION"
	MergeAudio      Name = "MERGE_AUDIO"
	FadeAndTrim     Name = "FADE_AND_TRIM"
	Transcribe      Name = "TRANSCRIBE"
	EncodeSubtitles Name = "ENCODE_SUBTITLES"
	BurnSubtitles   Name = "BURN_SUBTITLES"
	Done            Name = "DONE"
	Failed          Name = "FAILED"
)

var order = []Name{
	ProbeDuration,
	MergeAudio,
	FadeAndTrim,
	Transcribe,
	EncodeSubtitles,
	BurnSubtitles,
}

// Order returns the working stages in strict forward order. Done and Failed
// are terminal states and are not included.
func Order() []Name {
	out := make([]Name, len(order))
	copy(out, order)
	return out
}

// Index reports the position of n in Order, or -1 for terminal and unknown names.
func Index(n Name) int {
	for i, candidate := range order {
		if candidate == n {
			return i
		}
	}
	return -1
}

// Terminal reports whether n ends an item's lifecycle.
func Terminal(n Name) bool {
	return n == Done || n == Failed
}

func (n Name) String() string {
	return string(n)
}
