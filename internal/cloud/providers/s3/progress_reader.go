package s3

import "io"

// uploadProgressReader reports bytes read from an upload body in chunks of
// at least threshold. The SDK may rewind the body to retry or to compute a
// checksum; Seek rolls back what was reported past the new position so
// retried bytes are not counted twice.
type uploadProgressReader struct {
	reader    io.ReadSeeker
	callback  func(n int64) // receives deltas; negative after a rewind
	threshold int64
	pending   int64 // read but not yet reported
	reported  int64 // reported since the last rewind
}

func (r *uploadProgressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.pending += int64(n)
		if r.pending >= r.threshold {
			r.flush()
		}
	}
	if err == io.EOF {
		r.flush()
	}
	return n, err
}

func (r *uploadProgressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.reader.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	switch {
	case pos < r.reported:
		r.callback(pos - r.reported)
		r.reported = pos
		r.pending = 0
	case pos <= r.reported+r.pending:
		r.pending = pos - r.reported
	default:
		// Seeking past what was read (to measure length) reports nothing;
		// only bytes actually read count.
	}
	return pos, nil
}

func (r *uploadProgressReader) flush() {
	if r.pending == 0 {
		return
	}
	r.callback(r.pending)
	r.reported += r.pending
	r.pending = 0
}
