package probe

import "strings"

// CanPassthroughAAC reports whether an AAC stream can be copied without
// re-encoding for the given output format. targetChannels <= 0 means any
// channel count is acceptable; an unknown source channel count (0) also passes.
func CanPassthroughAAC(info StreamInfo, targetRate, targetChannels int) bool {
	if !strings.EqualFold(info.Codec, "aac") {
		return false
	}
	if info.SampleRate != targetRate {
		return false
	}
	if targetChannels > 0 && info.Channels != 0 && info.Channels != targetChannels {
		return false
	}
	return true
}
