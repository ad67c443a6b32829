package mixengine

import "context"

// DeviceStream is the external "device output" collaborator of
// spec.md §6: a blocking, interleaved-stereo-float32 sink. Write may
// block until the device is ready for more data; a non-nil error is
// treated as transient and counted as an underrun rather than fatal.
type DeviceStream interface {
	Write(interleaved []float32) error
	Close() error
}

// outputLoop drains the handoff queue and pushes each block to the
// attached device, counting transient write failures as underruns
// rather than stopping the pipeline (spec.md §4.5).
func (s *System) outputLoop(ctx context.Context) error {
	interleaved := make([]float32, s.period*2)

	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-s.queue:
			for i := 0; i < s.period; i++ {
				interleaved[2*i] = b.L[i]
				interleaved[2*i+1] = b.R[i]
			}
			if err := s.device.Write(interleaved); err != nil {
				s.metrics.recordUnderrun()
				s.logger.Warn("device write failed", "err", err)
			}
			select {
			case s.free <- b:
			default:
			}
		}
	}
}
