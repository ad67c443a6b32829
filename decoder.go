package mixengine

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	gowav "github.com/go-audio/wav"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// decodedStream is the narrow external "audio file decoder" contract
// of spec.md §6: open, read up to N frames, seek, and report the
// stream's native sample rate / channel count / total length. Each
// format's ebiten decoder is wrapped to satisfy it; the engine never
// touches the compressed bitstream directly.
type decodedStream interface {
	SampleRate() int
	Channels() int
	TotalFrames() int64
	ReadFrames(n int) (left, right []float32, err error)
	Seek(frame int64) error
	io.Closer
}

const bytesPerFrame = 4 // 16-bit signed PCM, 2 channels

type pcmStream struct {
	r          io.ReadSeeker
	c          io.Closer
	sampleRate int
	total      int64 // frames
}

func (p *pcmStream) SampleRate() int    { return p.sampleRate }
func (p *pcmStream) Channels() int      { return 2 }
func (p *pcmStream) TotalFrames() int64 { return p.total }
func (p *pcmStream) Close() error {
	if p.c != nil {
		return p.c.Close()
	}
	return nil
}

func (p *pcmStream) Seek(frame int64) error {
	_, err := p.r.Seek(frame*bytesPerFrame, io.SeekStart)
	return err
}

func (p *pcmStream) ReadFrames(n int) (left, right []float32, err error) {
	buf := make([]byte, n*bytesPerFrame)
	read, rerr := io.ReadFull(p.r, buf)
	frames := read / bytesPerFrame
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		r := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
		left[i] = float32(l) / 32768.0
		right[i] = float32(r) / 32768.0
	}
	if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
		return left, right, io.EOF
	}
	return left, right, rerr
}

// probeNativeRate opens its own handle to path and reads just enough of
// the container/bitstream header to report the file's native sample
// rate, without decoding or resampling any audio. Each format uses the
// plain decoding library ebiten's own audio/{wav,vorbis,mp3} wraps
// internally, called directly here specifically because those wrappers
// force a DecodeWithSampleRate, which would silently resample instead
// of exposing the native rate.
func probeNativeRate(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &ErrFileNotFound{Path: path}
		}
		return 0, &ErrAudio{Msg: "open source file for rate probe", Err: err}
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		d := gowav.NewDecoder(f)
		if !d.IsValidFile() {
			return 0, &ErrAudio{Msg: "invalid wav file"}
		}
		d.ReadInfo()
		return int(d.SampleRate), nil
	case ".ogg":
		r, err := oggvorbis.NewReader(f)
		if err != nil {
			return 0, &ErrAudio{Msg: "probe ogg sample rate", Err: err}
		}
		return r.SampleRate(), nil
	case ".mp3":
		d, err := gomp3.NewDecoder(f)
		if err != nil {
			return 0, &ErrAudio{Msg: "probe mp3 sample rate", Err: err}
		}
		return d.SampleRate(), nil
	default:
		return 0, &ErrUnsupportedFormat{Ext: ext}
	}
}

// openDecodedStream dispatches on file extension to the matching
// ebiten decoder (all three are plain io.Reader adapters with no
// dependency on the ebiten game loop, unlike the rest of that module).
// It first probes the file's native sample rate and refuses the source
// if it differs from the engine rate (spec.md §3, §9): this engine
// assumes all sources share the device rate and treats a mismatch as a
// configuration error rather than an implicit resample.
func openDecodedStream(path string, engineRate int) (decodedStream, error) {
	native, err := probeNativeRate(path)
	if err != nil {
		return nil, err
	}
	if native != engineRate {
		return nil, &ErrSampleRateMismatch{Path: path, Native: native, Engine: engineRate}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrFileNotFound{Path: path}
		}
		return nil, &ErrAudio{Msg: "open source file", Err: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	var rs io.ReadSeeker
	var length int64

	switch ext {
	case ".wav":
		s, derr := wav.DecodeWithSampleRate(engineRate, f)
		if derr != nil {
			_ = f.Close()
			return nil, &ErrAudio{Msg: "decode wav", Err: derr}
		}
		rs, length = s, s.Length()
	case ".ogg":
		s, derr := vorbis.DecodeWithSampleRate(engineRate, f)
		if derr != nil {
			_ = f.Close()
			return nil, &ErrAudio{Msg: "decode ogg", Err: derr}
		}
		rs, length = s, s.Length()
	case ".mp3":
		s, derr := mp3.DecodeWithSampleRate(engineRate, f)
		if derr != nil {
			_ = f.Close()
			return nil, &ErrAudio{Msg: "decode mp3", Err: derr}
		}
		rs, length = s, s.Length()
	default:
		_ = f.Close()
		return nil, &ErrUnsupportedFormat{Ext: ext}
	}

	return &pcmStream{
		r:          rs,
		c:          f,
		sampleRate: engineRate,
		total:      length / bytesPerFrame,
	}, nil
}

// loadFull decodes an entire file into stereo float32 frame buffers.
// There is no separate downmix step: ReadFrames already yields a left
// and a right channel (the ebiten decoders emit 2-channel PCM). Peak
// normalization is left to newInMemorySource.
func loadFull(path string, engineRate int) (left, right []float32, err error) {
	s, err := openDecodedStream(path, engineRate)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	left, right, rerr := s.ReadFrames(int(s.TotalFrames()))
	if rerr != nil && rerr != io.EOF {
		return nil, nil, &ErrAudio{Msg: "read source frames", Err: rerr}
	}
	return left, right, nil
}
