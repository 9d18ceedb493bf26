package zipflow

import "context"

// ProgressFunc receives a monotonically increasing (done, total) tuple after
// each window Copy moves. total is the caller-supplied length; done never
// exceeds it. A nil ProgressFunc is a valid no-op.
type ProgressFunc func(done, total int64)

// Copy is the chunked data mover: it reads length bytes from src starting
// at offset, threads each window through stage, and writes the
// stage's output windows to sink in order. On the final window it also
// drives stage.Flush, appends the flush tail to sink, and returns the
// resulting signature together with n, the number of bytes read from src
// (on the Deflate direction, the entry's uncompressed size). n does not
// count the bytes written to sink: a stage's output and flush tail may be
// longer or shorter than its input.
//
// The window size is read from the process-wide configuration
// (CurrentConfig) at each call, not from a Reader's or Writer's snapshot.
func Copy(ctx context.Context, src Source, offset, length int64, stage Stage, sink Sink, progress ProgressFunc) (signature uint32, n int64, err error) {
	chunkSize := int64(CurrentConfig().ChunkSize)
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}

	var done int64
	for done < length {
		if err := ctx.Err(); err != nil {
			return 0, done, err
		}

		want := chunkSize
		if remaining := length - done; want > remaining {
			want = remaining
		}

		window, readErr := src.ReadWindow(ctx, offset+done, want)
		if readErr != nil {
			return 0, done, readErr
		}

		out, appendErr := stage.Append(window)
		if appendErr != nil {
			return 0, done, appendErr
		}
		if len(out) > 0 {
			if writeErr := sink.WriteWindow(ctx, out); writeErr != nil {
				return 0, done, writeErr
			}
		}

		done += int64(len(window))
		n += int64(len(window))
		if progress != nil {
			progress(done, length)
		}
	}

	tail, sig, flushErr := stage.Flush()
	if flushErr != nil {
		return sig, n, flushErr
	}
	if len(tail) > 0 {
		if writeErr := sink.WriteWindow(ctx, tail); writeErr != nil {
			return sig, n, writeErr
		}
	}
	return sig, n, nil
}
