package convert

import (
	"fmt"
	"strconv"

	"audio-converter/internal/domain"
)

// BuildArgs builds the transcoder argument vector for one job. Custom
// parameters are only emitted when custom settings are enabled.
func BuildArgs(source, output string, settings domain.ConversionSettings) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", source,
	}

	if settings.Custom {
		if settings.BitrateKbps > 0 {
			args = append(args, "-b:a", fmt.Sprintf("%dk", settings.BitrateKbps))
		}
		if settings.SampleRateHz > 0 {
			args = append(args, "-ar", strconv.Itoa(settings.SampleRateHz))
		}
		if n := settings.Channels.Count(); n > 0 {
			args = append(args, "-ac", strconv.Itoa(n))
		}
		if settings.VolumePercent != domain.DefaultVolumePercent {
			args = append(args, "-filter:a", fmt.Sprintf("volume=%.2f", float64(settings.VolumePercent)/100))
		}
		if codec := pcmCodec(settings.Format, settings.BitDepth); codec != "" {
			args = append(args, "-c:a", codec)
		}
	}

	return append(args, "-vn", "-y", output)
}

// pcmCodec maps a PCM container and bit depth to an ffmpeg codec name.
func pcmCodec(format domain.OutputFormat, bitDepth int) string {
	switch format {
	case domain.FormatWAV:
		switch bitDepth {
		case 8:
			return "pcm_u8"
		case 16:
			return "pcm_s16le"
		case 24:
			return "pcm_s24le"
		case 32:
			return "pcm_s32le"
		}
	case domain.FormatAIFF, domain.FormatAU:
		switch bitDepth {
		case 8:
			return "pcm_s8"
		case 16:
			return "pcm_s16be"
		case 24:
			return "pcm_s24be"
		case 32:
			return "pcm_s32be"
		}
	}
	return ""
}
