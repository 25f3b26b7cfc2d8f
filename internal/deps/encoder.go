package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const checkTimeout = 5 * time.Second

// CheckEncoderCodec reports whether the ffmpeg binary lists codec among its
// encoders. A build without libmp3lame starts fine but fails every capture,
// so presence on PATH alone is not enough.
func CheckEncoderCodec(ctx context.Context, binary, codec string) Status {
	binary = strings.TrimSpace(binary)
	codec = strings.TrimSpace(codec)
	result := Status{
		Name:        "Encoder codec",
		Command:     binary,
		Description: fmt.Sprintf("%s support in %s", codec, binary),
	}
	if binary == "" || codec == "" {
		result.Detail = "encoder binary or codec not configured"
		return result
	}
	resolved, detail := resolve(binary)
	if resolved == "" {
		result.Detail = detail
		return result
	}
	result.Path = resolved

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	out, err := exec.CommandContext(checkCtx, resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !listsEncoder(out, codec) {
		result.Detail = fmt.Sprintf("%s not compiled into %s", codec, binary)
		return result
	}
	result.Available = true
	result.Detail = codec + " encoder present"
	return result
}

// listsEncoder scans `ffmpeg -encoders` output, whose rows look like
// " A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3)".
func listsEncoder(output []byte, codec string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == codec {
			return true
		}
	}
	return false
}

// Version returns the first line printed by `binary flag`, or "" when the
// binary cannot be run.
func Version(ctx context.Context, binary, flag string) string {
	if strings.TrimSpace(binary) == "" {
		return ""
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	out, err := exec.CommandContext(checkCtx, binary, flag).CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
