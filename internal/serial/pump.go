package serial

import (
	"errors"
	"sync"
)

// DefaultDepth is the number of pending chunks the pump buffers.
const DefaultDepth = 64

const readSize = 256

// ErrPumpClosed is returned by Err after Close.
var ErrPumpClosed = errors.New("serial pump closed")

// Pump copies bytes from a port into a bounded channel on its own goroutine.
// The run loop drains it without blocking.
type Pump struct {
	port   Port
	chunks chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// NewPump starts reading from port. depth <= 0 selects DefaultDepth.
func NewPump(port Port, depth int) *Pump {
	if depth <= 0 {
		depth = DefaultDepth
	}
	p := &Pump{
		port:   port,
		chunks: make(chan []byte, depth),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Pump) run() {
	defer p.wg.Done()
	buf := make([]byte, readSize)
	for {
		n, err := p.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.chunks <- chunk:
			case <-p.done:
				return
			}
		}
		if err != nil {
			select {
			case <-p.done:
			default:
				p.setErr(err)
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}

// Drain returns every byte received since the last call, or nil.
func (p *Pump) Drain() []byte {
	var out []byte
	for {
		select {
		case chunk := <-p.chunks:
			out = append(out, chunk...)
		default:
			return out
		}
	}
}

// Err returns the error that stopped the reader, if any.
func (p *Pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pump) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Close stops the reader and closes the port.
func (p *Pump) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.port.Close()
		p.wg.Wait()
		p.mu.Lock()
		if p.err == nil {
			p.err = ErrPumpClosed
		}
		p.mu.Unlock()
	})
	return err
}
