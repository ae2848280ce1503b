// Package formatters renders log records into the pipe-delimited text
// line shared by every back-end:
//
//	20240102-15:04:05.000123|INFO|ident|main.go:42|message
//
// Each prefix segment is optional and controlled by Options.
package formatters

import (
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// FormatMessage renders info into buf and returns the number of bytes the
// full line needs. When buf is too small the returned error is
// types.ErrBufferTooSmall; buf then holds the leading len(buf) bytes of
// the line, so the caller may either use the truncated line or retry with
// a buffer of at least n bytes.
func FormatMessage(buf []byte, opts Options, ts time.Time, info *types.MsgInfo) (int, error) {
	out := AppendMessage(buf[:0:len(buf)], opts, ts, info)
	n := len(out)
	if n > len(buf) {
		copy(buf, out)
		return n, types.ErrBufferTooSmall
	}
	return n, nil
}

// AppendMessage appends the rendered line for info to dst.
func AppendMessage(dst []byte, opts Options, ts time.Time, info *types.MsgInfo) []byte {
	dst = appendPrefix(dst, opts, ts, info.Level, info.Ident(), &info.Location)
	dst = info.AppendText(dst)
	if opts.NewLine {
		dst = append(dst, '\n')
	}
	return dst
}

// AppendRecord appends a line whose body has already been rendered. It is
// used when the prefix is added after the body was captured, for example
// by the writer goroutine of a back-end that defers formatting.
func AppendRecord(dst []byte, opts Options, ts time.Time, level types.Level, ident string, loc *types.Location, body []byte) []byte {
	dst = appendPrefix(dst, opts, ts, level, ident, loc)
	dst = append(dst, body...)
	if opts.NewLine {
		dst = append(dst, '\n')
	}
	return dst
}

func appendPrefix(dst []byte, opts Options, ts time.Time, level types.Level, ident string, loc *types.Location) []byte {
	if opts.Timestamp {
		dst = ts.AppendFormat(dst, TimestampLayout)
		dst = append(dst, Separator)
	}
	if opts.ShowLevel {
		dst = append(dst, level.String()...)
		dst = append(dst, Separator)
	}
	if opts.ShowIdent {
		dst = append(dst, ident...)
		dst = append(dst, Separator)
	}
	if opts.ShowLocation {
		if loc != nil {
			dst = loc.AppendTo(dst)
		}
		dst = append(dst, Separator)
	}
	return dst
}
