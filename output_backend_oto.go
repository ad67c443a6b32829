//go:build !headless

package mixengine

import (
	"math"

	"github.com/ebitengine/oto/v3"
)

// OtoDevice adapts ebitengine/oto's pull-based Read([]byte) callback to
// the push-based, blocking DeviceStream.Write contract: Write hands its
// block to the player over a rendezvous channel and blocks until Read
// has drained it, so the mixer never races ahead of the sound card.
type OtoDevice struct {
	ctx     *oto.Context
	player  *oto.Player
	handoff chan []byte
}

// NewOtoDevice opens the platform's default audio output at the given
// stereo sample rate.
func NewOtoDevice(sampleRate int) (*OtoDevice, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	})
	if err != nil {
		return nil, &ErrAudio{Msg: "open oto context", Err: err}
	}
	<-ready

	d := &OtoDevice{ctx: ctx, handoff: make(chan []byte)}
	d.player = ctx.NewPlayer(d)
	d.player.Play()
	return d, nil
}

// Read implements io.Reader for oto's player: it blocks for the next
// handed-off block and copies as much of it as fits in p.
func (d *OtoDevice) Read(p []byte) (int, error) {
	buf, ok := <-d.handoff
	if !ok {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, buf)
	return n, nil
}

// Write blocks until the player's Read call has consumed the block.
func (d *OtoDevice) Write(interleaved []float32) error {
	buf := float32SliceToBytes(interleaved)
	d.handoff <- buf
	return nil
}

func (d *OtoDevice) Close() error {
	close(d.handoff)
	d.player.Close()
	return nil
}

func float32SliceToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		bits := math.Float32bits(s)
		buf[4*i] = byte(bits)
		buf[4*i+1] = byte(bits >> 8)
		buf[4*i+2] = byte(bits >> 16)
		buf[4*i+3] = byte(bits >> 24)
	}
	return buf
}
