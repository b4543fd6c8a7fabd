package local

import "time"

func (b *Backend) SetNow(now func() time.Time) {
	b.now = now
}
