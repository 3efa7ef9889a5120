package marker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"

	"journey-animator/internal/clock"
)

// Frame is every marker for one sampled time.
type Frame struct {
	Time    int // seconds from midnight
	LabelAt orb.Point
	Markers []Marker
}

func (f Frame) Label() string { return clock.Label(f.Time) }

const frameHeader = "$VERSION:VERSNR;FILETYPE;LANGUAGE;UNIT\n10;Net;ENG;KM\n" +
	"$COUNTLOCATION:NO;CODE;NAME;LINKNO;FROMNODENO;TONODENO;RELPOS;VOLUME\n"

// WriteFrame writes f as a net file: one count location per marker.
func WriteFrame(w io.Writer, f Frame) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "$VISION\n* Time: %s\n* Label: %s;%s\n", f.Label(), ftoa(f.LabelAt[0]), ftoa(f.LabelAt[1]))
	bw.WriteString(frameHeader)
	for _, m := range f.Markers {
		fmt.Fprintf(bw, "%d;%s;%s;%d;%d;%d;%s;%s\n",
			m.TripNo, m.Code, m.Name, m.LinkNo, m.From, m.To, ftoa(m.RelPos), volume(m.Volume))
	}
	return bw.Flush()
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func volume(v *float64) string {
	if v == nil {
		return ""
	}
	return ftoa(*v)
}

// DirSink writes each frame to its own file, <dir>/<base><HHMMSS>.net.
type DirSink struct {
	dir  string
	base string
}

func NewDirSink(dir, base string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{dir: dir, base: base}, nil
}

func (s *DirSink) Path(t int) string {
	return filepath.Join(s.dir, s.base+clock.Stamp(t)+".net")
}

// WriteFrame replaces the frame's file atomically so readers never see a
// partial frame.
func (s *DirSink) WriteFrame(f Frame) (err error) {
	tmp, err := os.CreateTemp(s.dir, ".frame-*.net")
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = WriteFrame(tmp, f); err != nil {
		return fmt.Errorf("write frame %s: %w", f.Label(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close frame file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.Path(f.Time)); err != nil {
		return fmt.Errorf("publish frame file: %w", err)
	}
	return nil
}
