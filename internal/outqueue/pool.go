package outqueue

import (
	"sync"

	"github.com/ptrow/rawhidhub/internal/constants"
)

// readBufPool hands out scratch buffers sized for one raw-HID report.
// The report-ID prefix byte some transports carry on the wire is stripped
// by the Endpoint implementation before Read returns, so this buffer
// holds only the 32-byte payload the protocol engine cares about. Pooling
// it keeps the dispatch worker's per-pass, per-session read loop
// allocation-free.
var readBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, constants.ReportSize)
		return &b
	},
}

// GetReadBuf returns a pooled scratch buffer for one report read.
// Callers must call PutReadBuf when done.
func GetReadBuf() []byte {
	return *readBufPool.Get().(*[]byte)
}

// PutReadBuf returns a scratch buffer obtained from GetReadBuf to the pool.
func PutReadBuf(buf []byte) {
	if cap(buf) != constants.ReportSize {
		return
	}
	buf = buf[:constants.ReportSize]
	readBufPool.Put(&buf)
}
