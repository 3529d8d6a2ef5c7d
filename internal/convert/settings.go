package convert

import (
	"strconv"
	"strings"

	"audio-converter/internal/domain"
)

// Sample rate and volume bounds accepted for custom settings.
const (
	MinSampleRateHz = 8000
	MaxSampleRateHz = 192000
	MaxVolume       = 200
)

var bitDepths = map[int]struct{}{8: {}, 16: {}, 24: {}, 32: {}}

// ParseSettings validates raw UI settings into an immutable snapshot.
// Bitrate, sample rate, bit depth and volume are only read when custom
// settings are enabled.
func ParseSettings(raw domain.Settings) (domain.ConversionSettings, error) {
	format, ok := domain.ParseOutputFormat(raw.OutputFormat)
	if !ok {
		return domain.ConversionSettings{}, &SettingsError{Field: "format", Value: raw.OutputFormat, Reason: "unsupported output format"}
	}

	channels, err := parseChannels(raw.Channels)
	if err != nil {
		return domain.ConversionSettings{}, err
	}

	out := domain.ConversionSettings{
		Format:        format,
		Channels:      channels,
		VolumePercent: domain.DefaultVolumePercent,
	}
	if !raw.CustomEnabled {
		out.Channels = domain.ChannelsOriginal
		return out, nil
	}
	out.Custom = true

	if out.BitrateKbps, err = parseBitrate(raw.Bitrate); err != nil {
		return domain.ConversionSettings{}, err
	}
	if out.SampleRateHz, err = parseSampleRate(raw.SampleRate); err != nil {
		return domain.ConversionSettings{}, err
	}
	if out.BitDepth, err = parseBitDepth(raw.BitDepth); err != nil {
		return domain.ConversionSettings{}, err
	}
	if out.VolumePercent, err = parseVolume(raw.Volume); err != nil {
		return domain.ConversionSettings{}, err
	}

	return out, nil
}

// parseBitrate accepts "192", "192k" and "192kbps". Empty means unset.
func parseBitrate(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, &SettingsError{Field: "bitrate", Value: raw, Reason: "use a positive kbps value, e.g. 192"}
	}
	return n, nil
}

// parseSampleRate accepts a plain Hz value. Empty means unset.
func parseSampleRate(raw string) (int, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "hz"))
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, &SettingsError{Field: "sample rate", Value: raw, Reason: "use a positive Hz value, e.g. 44100"}
	}
	if n < MinSampleRateHz || n > MaxSampleRateHz {
		return 0, &SettingsError{Field: "sample rate", Value: raw, Reason: "must be between 8000 and 192000 Hz"}
	}
	return n, nil
}

func parseBitDepth(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if _, ok := bitDepths[n]; err != nil || !ok {
		return 0, &SettingsError{Field: "bit depth", Value: raw, Reason: "must be one of 8, 16, 24, 32"}
	}
	return n, nil
}

// parseVolume accepts "120" or "120%". Empty means 100.
func parseVolume(raw string) (int, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return domain.DefaultVolumePercent, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxVolume {
		return 0, &SettingsError{Field: "volume", Value: raw, Reason: "must be between 0 and 200 percent"}
	}
	return n, nil
}

func parseChannels(raw string) (domain.ChannelMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(domain.ChannelsOriginal):
		return domain.ChannelsOriginal, nil
	case string(domain.ChannelsMono), "1":
		return domain.ChannelsMono, nil
	case string(domain.ChannelsStereo), "2":
		return domain.ChannelsStereo, nil
	default:
		return "", &SettingsError{Field: "channels", Value: raw, Reason: "must be original, mono or stereo"}
	}
}
