package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"audio-converter/internal/config"
	"audio-converter/internal/convert"
	"audio-converter/internal/domain"
)

// errUsage marks command-line mistakes that map to the invalid input exit code.
var errUsage = errors.New("invalid usage")

// cliOptions holds parsed flags. Conversion flags are applied on top of
// persisted settings only when given explicitly.
type cliOptions struct {
	settingsPath string
	envPath      string
	logPath      string
	verbose      bool
	checkOnly    bool
	killOnCancel bool
	marker       string
	files        []string

	overrides func(*domain.Settings)
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("audioconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: audioconv [flags] FILE...\n\nConverts audio files with ffmpeg.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	opts := cliOptions{}
	fs.StringVar(&opts.settingsPath, "settings", config.DefaultSettingsPath(), "settings file")
	fs.StringVar(&opts.envPath, "env", ".env", "dotenv file with AUDIOCONV_* overrides")
	fs.StringVar(&opts.logPath, "log", config.DefaultLogPath(), "developer log file (empty disables)")
	fs.BoolVar(&opts.verbose, "verbose", false, "debug output on the console")
	fs.BoolVar(&opts.checkOnly, "check", false, "run diagnostics and exit")
	fs.BoolVar(&opts.killOnCancel, "kill-on-cancel", false, "terminate running transcoders on the first interrupt")
	fs.StringVar(&opts.marker, "marker", convert.DefaultMarker, "suffix appended to output file names")

	format := fs.String("format", "", "output format: "+strings.Join(formatNames(), ", "))
	custom := fs.Bool("custom", false, "apply custom bitrate, sample rate, channels, bit depth and volume")
	bitrate := fs.String("bitrate", "", "bitrate in kbps (e.g. 192)")
	sampleRate := fs.String("samplerate", "", "sample rate in Hz (e.g. 44100)")
	channels := fs.String("channels", "", "original, mono or stereo")
	bitDepth := fs.String("bitdepth", "", "PCM bit depth: 8, 16, 24 or 32")
	volume := fs.String("volume", "", "volume percent 0-200")
	outDir := fs.String("out", "", "output directory")
	sibling := fs.Bool("sibling", false, "write outputs next to their sources")
	transcoder := fs.String("transcoder", "", "path to the ffmpeg executable")
	workers := fs.Int("workers", 0, "parallel conversions (1-16)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cliOptions{}, err
		}
		return cliOptions{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts.files = fs.Args()
	opts.overrides = func(s *domain.Settings) {
		if set["format"] {
			s.OutputFormat = *format
		}
		if set["custom"] {
			s.CustomEnabled = *custom
		}
		if set["bitrate"] {
			s.Bitrate = *bitrate
		}
		if set["samplerate"] {
			s.SampleRate = *sampleRate
		}
		if set["channels"] {
			s.Channels = *channels
		}
		if set["bitdepth"] {
			s.BitDepth = *bitDepth
		}
		if set["volume"] {
			s.Volume = *volume
		}
		if set["out"] {
			s.OutputDir = *outDir
			s.SiblingOutput = false
		}
		if set["sibling"] {
			s.SiblingOutput = *sibling
		}
		if set["transcoder"] {
			s.TranscoderPath = *transcoder
		}
		if set["workers"] {
			s.Workers = *workers
		}
	}
	return opts, nil
}

func formatNames() []string {
	return lo.Map(domain.OutputFormats(), func(f domain.OutputFormat, _ int) string {
		return string(f)
	})
}
