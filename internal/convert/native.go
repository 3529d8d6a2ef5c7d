package convert

import (
	"context"
	"errors"
	"fmt"

	"audio-converter/internal/domain"
)

// ErrLayoutUnsupported is returned by a NativeCodec that cannot write the
// requested sample layout directly.
var ErrLayoutUnsupported = errors.New("sample layout not supported")

// PCMLayout describes a target PCM layout. Zero fields keep the source value.
type PCMLayout struct {
	SampleRateHz int
	Channels     int
	BitDepth     int
}

// intermediateLayout is 16-bit PCM at the source rate and channel count.
var intermediateLayout = PCMLayout{BitDepth: 16}

// NativeCodec converts simple uncompressed formats without a subprocess.
type NativeCodec interface {
	Supports(source string, format domain.OutputFormat) bool
	Convert(ctx context.Context, source, output string, format domain.OutputFormat, layout PCMLayout) error
}

// layoutFor maps conversion settings onto a PCM layout.
func layoutFor(settings domain.ConversionSettings) PCMLayout {
	if !settings.Custom {
		return PCMLayout{}
	}
	return PCMLayout{
		SampleRateHz: settings.SampleRateHz,
		Channels:     settings.Channels.Count(),
		BitDepth:     settings.BitDepth,
	}
}

// convertNative runs a direct conversion and, when the codec rejects the
// layout, retries through a 16-bit PCM intermediate file.
func convertNative(ctx context.Context, codec NativeCodec, job domain.AudioJob, settings domain.ConversionSettings, remove func(string) error) error {
	layout := layoutFor(settings)
	err := codec.Convert(ctx, job.SourcePath, job.OutputPath, settings.Format, layout)
	if err == nil || !errors.Is(err, ErrLayoutUnsupported) {
		return err
	}

	intermediate := job.OutputPath + ".pcm16.wav"
	defer func() { _ = remove(intermediate) }()

	if err := codec.Convert(ctx, job.SourcePath, intermediate, domain.FormatWAV, intermediateLayout); err != nil {
		return fmt.Errorf("%w: intermediate PCM: %v", ErrFormatNegotiation, err)
	}
	if err := codec.Convert(ctx, intermediate, job.OutputPath, settings.Format, layout); err != nil {
		return fmt.Errorf("%w: final conversion: %v", ErrFormatNegotiation, err)
	}
	return nil
}
