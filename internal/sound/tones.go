package sound

import (
	"math"
	"sync"
)

const (
	toneRate    = 16000
	toneVolume  = 0.18
	noteGapMS   = 22
	fadeSamples = toneRate / 200 // 5ms
)

// note is one sine segment of a cue.
type note struct {
	hz float64
	ms int
}

// Rising for start and save, falling for stop, low for failure.
var cuePatterns = map[Cue][]note{
	CueClipSaved:        {{988, 60}, {1319, 90}},
	CueRecordingStarted: {{660, 70}, {880, 70}, {1175, 90}},
	CueRecordingStopped: {{1175, 70}, {880, 70}, {660, 90}},
	CueFailed:           {{480, 90}, {320, 140}},
}

// cuePCM renders every pattern once, on first use.
var cuePCM = sync.OnceValue(func() map[Cue][]int16 {
	out := make(map[Cue][]int16, len(cuePatterns))
	for cue, notes := range cuePatterns {
		out[cue] = render(notes, toneVolume)
	}
	return out
})

// render joins notes with short silences.
func render(notes []note, volume float64) []int16 {
	gap := make([]int16, msToSamples(noteGapMS))
	var pcm []int16
	for i, n := range notes {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, renderNote(n, volume)...)
	}
	return pcm
}

// renderNote returns a sine burst with raised-cosine edges, so it starts and
// ends at zero and does not click.
func renderNote(n note, volume float64) []int16 {
	count := msToSamples(n.ms)
	if count <= 0 || n.hz <= 0 || volume <= 0 {
		return nil
	}
	fade := min(fadeSamples, count/4)

	pcm := make([]int16, count)
	step := 2 * math.Pi * n.hz / toneRate
	for i := range pcm {
		gain := volume
		if edge := min(i, count-1-i); edge < fade {
			gain *= 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(fade))
		}
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * gain * math.MaxInt16))
	}
	return pcm
}

func msToSamples(ms int) int {
	if ms <= 0 {
		return 0
	}
	return ms * toneRate / 1000
}
