//go:build headless

package mixengine

// HeadlessDevice discards every block. It satisfies DeviceStream for
// test environments and CI where no sound card is available.
type HeadlessDevice struct{}

func NewHeadlessDevice(sampleRate int) (*HeadlessDevice, error) {
	return &HeadlessDevice{}, nil
}

func (d *HeadlessDevice) Write(interleaved []float32) error { return nil }

func (d *HeadlessDevice) Close() error { return nil }
