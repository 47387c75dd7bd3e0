package openai

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// Decoder reassembles a chunked event stream into the concatenated delta content.
// Feed it arbitrary byte chunks with Write. A data line whose JSON does not parse is
// kept and retried once when the next chunk arrives, then dropped.
type Decoder struct {
	buf       string
	text      strings.Builder
	done      bool
	retrying  bool
	malformed int
}

// Write consumes one chunk. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.done {
		return len(p), nil
	}
	d.buf += string(p)
	d.drain(false)
	return len(p), nil
}

// Close processes whatever is left in the buffer as complete lines.
func (d *Decoder) Close() error {
	if !d.done {
		d.buf += "\n"
		d.drain(true)
	}
	return nil
}

// Done reports whether the terminating [DONE] line was seen.
func (d *Decoder) Done() bool { return d.done }

// Malformed counts data lines that were dropped after their retry also failed.
func (d *Decoder) Malformed() int { return d.malformed }

// Text returns the content accumulated so far.
func (d *Decoder) Text() string { return d.text.String() }

func (d *Decoder) drain(final bool) {
	for !d.done {
		idx := strings.IndexByte(d.buf, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimSuffix(d.buf[:idx], "\r")
		d.buf = d.buf[idx+1:]

		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneMarker {
			d.done = true
			d.buf = ""
			return
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			if final || d.retrying {
				d.retrying = false
				d.malformed++
				continue
			}
			// put the line back and retry once more bytes have arrived
			d.buf = line + "\n" + d.buf
			d.retrying = true
			return
		}
		d.retrying = false
		if len(chunk.Choices) > 0 {
			d.text.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
}

// DecodeStream reads r to the end (or [DONE]) and returns the accumulated text.
func DecodeStream(r io.Reader) (string, error) {
	var d Decoder
	buf := make([]byte, 4096)
	for !d.Done() {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = d.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return d.Text(), err
		}
	}
	_ = d.Close()
	return d.Text(), nil
}
