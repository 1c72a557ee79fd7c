package sync

import "context"

// PipeConn is an in-process Conn backed by buffered channels, used to
// connect two RunSession calls directly in tests without a real
// transport. Production embeddings bridge Conn to an actual channel
// (direct socket, or a transport.Transport pair).
type PipeConn struct {
	out chan<- []byte
	in  <-chan []byte
}

// NewPipe returns two connected PipeConn ends: a's sends arrive on b's
// receives, and vice versa.
func NewPipe() (a, b *PipeConn) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	return &PipeConn{out: ab, in: ba}, &PipeConn{out: ba, in: ab}
}

func (p *PipeConn) SendFrame(data []byte) error {
	p.out <- data
	return nil
}

func (p *PipeConn) ReceiveFrame(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
