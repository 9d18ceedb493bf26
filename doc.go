// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package zipflow implements streaming readers and writers for the ZIP
archive format, including ZIP64 and WinZip-AES (AE-2) encrypted entries.

Unlike archive/zip, zipflow is built around an explicit codec pipeline:
every entry's payload is threaded through an ordered chain of stages
(decrypt, inflate, CRC) on read and (CRC, deflate, encrypt) on write, and
the heavier stages can be dispatched to a bounded pool of off-thread
workers (see internal/workerpool) instead of running on the caller's
goroutine.

See https://www.pkware.com/appnote for the format description. This
package does not support disk spanning.
*/
package zipflow
