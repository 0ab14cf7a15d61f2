package render

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// WriteWAV writes a rendered mix to path as 16-bit stereo PCM.
func WriteWAV(path string, r *Rendered) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer out.Close()

	enc := wav.NewEncoder(out, r.Rate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: r.Rate},
		Data:           make([]int, 0, len(r.Frames)*2),
		SourceBitDepth: 16,
	}
	for _, fr := range r.Frames {
		buf.Data = append(buf.Data, clip16(fr[0]), clip16(fr[1]))
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "writing samples")
	}
	return errors.Wrap(enc.Close(), "finalizing wav")
}

// clip16 converts a float sample to clamped 16-bit PCM.
func clip16(v float32) int {
	s := int(v * 32767)
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return s
}
