package process

import (
	"strconv"
	"strings"
	"time"

	"tracktap/internal/config"
)

// PCM frame format shared by the sink (writer) and the encoder (reader).
const (
	PCMFormat     = "s16le"
	PCMSampleRate = 44100
	PCMChannels   = 2
)

// WindowSeconds rounds a capture window to the whole seconds passed to -t.
func WindowSeconds(window time.Duration) int64 {
	if window <= 0 {
		return 0
	}
	secs := int64(window / time.Second)
	if window%time.Second != 0 {
		secs++
	}
	return secs
}

// EncoderArgs builds the encoder argument list reading raw PCM from pipePath
// and writing at most window of audio to outputPath.
func EncoderArgs(enc config.Encoder, pipePath, outputPath string, window time.Duration) []string {
	sampleRate := enc.SampleRate
	if sampleRate <= 0 {
		sampleRate = PCMSampleRate
	}
	channels := enc.Channels
	if channels <= 0 {
		channels = PCMChannels
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", PCMFormat,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", pipePath,
	}
	if secs := WindowSeconds(window); secs > 0 {
		args = append(args, "-t", strconv.FormatInt(secs, 10))
	}
	if codec := strings.TrimSpace(enc.Codec); codec != "" {
		args = append(args, "-c:a", codec)
	}
	if bitrate := strings.TrimSpace(enc.Bitrate); bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	return append(args, outputPath)
}

// SinkArgs builds the playback-sink argument list registering deviceName and
// writing decoded PCM into pipePath.
func SinkArgs(sink config.Librespot, deviceName, pipePath string) []string {
	backend := strings.TrimSpace(sink.Backend)
	if backend == "" {
		backend = "pipe"
	}
	bitrate := sink.Bitrate
	if bitrate <= 0 {
		bitrate = 320
	}
	args := []string{
		"--name", deviceName,
		"--backend", backend,
		"--device", pipePath,
		"--bitrate", strconv.Itoa(bitrate),
		"--format", "S16",
		"--initial-volume", "100",
	}
	if cache := strings.TrimSpace(sink.CacheDir); cache != "" {
		args = append(args, "--cache", cache)
	}
	for _, extra := range sink.ExtraArgs {
		if extra = strings.TrimSpace(extra); extra != "" {
			args = append(args, extra)
		}
	}
	return args
}
