package audio

import (
	"fmt"
	"strings"
)

// ChannelPolicy selects how a multichannel buffer is reduced before analysis.
type ChannelPolicy int

const (
	// ChannelMix averages all channels into one.
	ChannelMix ChannelPolicy = iota
	// ChannelLeft keeps only the first channel.
	ChannelLeft
	// ChannelKeep keeps every channel.
	ChannelKeep
)

var channelPolicyNames = map[ChannelPolicy]string{
	ChannelMix:  "mix",
	ChannelLeft: "left",
	ChannelKeep: "keep",
}

// ParseChannelPolicy parses "mix", "left" or "keep".
func ParseChannelPolicy(s string) (ChannelPolicy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range channelPolicyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: channel policy %q", ErrInvalidArgument, s)
}

func (p ChannelPolicy) String() string {
	if n, ok := channelPolicyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("ChannelPolicy(%d)", int(p))
}

// Valid reports whether p is one of the defined policies.
func (p ChannelPolicy) Valid() bool {
	_, ok := channelPolicyNames[p]
	return ok
}

func (p ChannelPolicy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: channel policy %d", ErrInvalidArgument, int(p))
	}
	return []byte(p.String()), nil
}

func (p *ChannelPolicy) UnmarshalText(text []byte) error {
	v, err := ParseChannelPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MixChannels applies policy to buf. ChannelKeep and single-channel input
// return buf unchanged.
func MixChannels(buf *Buffer, policy ChannelPolicy) (*Buffer, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: channel policy %d", ErrInvalidArgument, int(policy))
	}
	if policy == ChannelKeep || buf.NumChannels() == 1 {
		return buf, nil
	}

	if policy == ChannelLeft {
		left := make([]float32, buf.Len())
		copy(left, buf.Channels[0])
		return &Buffer{Channels: [][]float32{left}, SampleRate: buf.SampleRate}, nil
	}

	n := buf.Len()
	mono := make([]float32, n)
	scale := 1 / float32(buf.NumChannels())
	for i := range n {
		var sum float32
		for _, ch := range buf.Channels {
			sum += ch[i]
		}
		mono[i] = sum * scale
	}
	return &Buffer{Channels: [][]float32{mono}, SampleRate: buf.SampleRate}, nil
}
