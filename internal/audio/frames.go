package audio

// Framer walks PCM one whole frame at a time. A trailing partial frame
// is never returned.
type Framer struct {
	pcm []byte
	pos int
}

// NewFramer creates a framer over pcm.
func NewFramer(pcm []byte) *Framer {
	return &Framer{pcm: pcm}
}

// Next returns the next frame, or false once less than a frame remains.
func (f *Framer) Next() ([]byte, bool) {
	end := f.pos + FrameBytes
	if end > len(f.pcm) {
		return nil, false
	}
	frame := f.pcm[f.pos:end]
	f.pos = end
	return frame, true
}

// Len returns the number of whole frames not yet returned.
func (f *Framer) Len() int {
	return (len(f.pcm) - f.pos) / FrameBytes
}
