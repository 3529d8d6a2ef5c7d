package domain

import (
	"path/filepath"
	"sort"
	"strings"
)

// OutputFormat is a target container/codec selectable for a batch.
type OutputFormat string

const (
	FormatMP3  OutputFormat = "mp3"
	FormatM4A  OutputFormat = "m4a"
	FormatAAC  OutputFormat = "aac"
	FormatFLAC OutputFormat = "flac"
	FormatOGG  OutputFormat = "ogg"
	FormatOpus OutputFormat = "opus"
	FormatWAV  OutputFormat = "wav"
	FormatAIFF OutputFormat = "aiff"
	FormatAU   OutputFormat = "au"
)

var outputFormats = []OutputFormat{
	FormatMP3, FormatM4A, FormatAAC, FormatFLAC, FormatOGG,
	FormatOpus, FormatWAV, FormatAIFF, FormatAU,
}

// OutputFormats lists every supported output format in display order.
func OutputFormats() []OutputFormat {
	return append([]OutputFormat(nil), outputFormats...)
}

// ParseOutputFormat maps user input such as "MP3" or ".wav" to a format.
func ParseOutputFormat(raw string) (OutputFormat, bool) {
	value := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), ".")
	if value == "aif" {
		value = string(FormatAIFF)
	}
	for _, format := range outputFormats {
		if string(format) == value {
			return format, true
		}
	}
	return "", false
}

// Extension returns the file extension without the leading dot.
func (f OutputFormat) Extension() string {
	return string(f)
}

// IsPCM reports whether the format stores uncompressed PCM samples.
func (f OutputFormat) IsPCM() bool {
	switch f {
	case FormatWAV, FormatAIFF, FormatAU:
		return true
	default:
		return false
	}
}

// ChannelMode selects the output channel layout.
type ChannelMode string

const (
	ChannelsOriginal ChannelMode = "original"
	ChannelsMono     ChannelMode = "mono"
	ChannelsStereo   ChannelMode = "stereo"
)

// Count returns the forced channel count, or 0 to keep the source layout.
func (c ChannelMode) Count() int {
	switch c {
	case ChannelsMono:
		return 1
	case ChannelsStereo:
		return 2
	default:
		return 0
	}
}

// DefaultVolumePercent leaves the signal level untouched.
const DefaultVolumePercent = 100

// ConversionSettings is the validated, immutable snapshot shared by a batch.
// Zero numeric values mean "not set".
type ConversionSettings struct {
	Format        OutputFormat `json:"format"`
	Custom        bool         `json:"custom"`
	BitrateKbps   int          `json:"bitrateKbps,omitempty"`
	SampleRateHz  int          `json:"sampleRateHz,omitempty"`
	Channels      ChannelMode  `json:"channels"`
	BitDepth      int          `json:"bitDepth,omitempty"`
	VolumePercent int          `json:"volumePercent"`
}

var supportedInputs = map[string]struct{}{
	".wav":  {},
	".aiff": {},
	".aif":  {},
	".au":   {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".oga":  {},
	".m4a":  {},
	".aac":  {},
	".wma":  {},
	".opus": {},
}

// IsSupportedInput checks a source path against the input extension allow-list.
func IsSupportedInput(path string) bool {
	_, ok := supportedInputs[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedInputPatterns returns glob patterns for file dialogs.
func SupportedInputPatterns() []string {
	out := make([]string, 0, len(supportedInputs))
	for ext := range supportedInputs {
		out = append(out, "*"+ext)
	}
	sort.Strings(out)
	return out
}
