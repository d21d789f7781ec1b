package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/multierr"
)

const wavFormatPCM = 1

// LoadWav reads an integer PCM wav file. Samples of any bit depth are
// rescaled to the 16-bit range.
func LoadWav(path string) (signal *Signal, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav file failed: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported wav format %d in %s: only integer PCM is read", decoder.WavAudioFormat, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav file failed: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("decode wav file failed: no PCM data in %s", path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 {
		return nil, fmt.Errorf("unknown source bit depth in %s", path)
	}

	scale := math.Pow(2, float64(16-bitDepth))
	offset := 0.0
	if bitDepth == 8 {
		// 8-bit PCM is unsigned
		offset = 128
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = (float64(v) - offset) * scale
	}
	return NewSignal(samples, buf.Format.SampleRate, buf.Format.NumChannels)
}

// SaveWav writes the signal as a 16-bit PCM wav file
func (s *Signal) SaveWav(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file failed: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	data := make([]int, len(s.samples))
	for i, v := range s.samples {
		data[i] = int(math.Round(clamp(v)))
	}

	encoder := wav.NewEncoder(file, s.sampleRate, 16, s.channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("encode wav file failed: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav file failed: %w", err)
	}
	return nil
}
