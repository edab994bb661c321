package looper

import (
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/looper-go/pcm"
)

// Layer is one aligned, loop-length buffer produced from an overdub.
// Its buffer length always equals the master's, which is what keeps all
// layers phase-locked without per-layer offset bookkeeping.
type Layer struct {
	ID     string
	Buffer *pcm.Buffer
}

func newLayer(buf *pcm.Buffer) Layer {
	id, err := nanoid.New()
	if err != nil {
		panic(err)
	}
	return Layer{ID: id, Buffer: buf}
}

// layerStack is the ordered undo stack. Insertion order is recording
// order is playback order; undo pops LIFO. The two-tier policy (pop on
// an empty stack clears the master instead) is coordinated by the
// engine, which owns the master.
type layerStack struct {
	layers []Layer
}

func (s *layerStack) push(l Layer) {
	s.layers = append(s.layers, l)
}

func (s *layerStack) pop() (Layer, bool) {
	if len(s.layers) == 0 {
		return Layer{}, false
	}
	l := s.layers[len(s.layers)-1]
	s.layers = s.layers[:len(s.layers)-1]
	return l, true
}

func (s *layerStack) clear() {
	s.layers = nil
}

func (s *layerStack) len() int {
	return len(s.layers)
}

func (s *layerStack) all() []Layer {
	return s.layers
}
