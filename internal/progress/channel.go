package progress

import "sync"

// ChannelSink hands updates to an in-process consumer. When the consumer lags
// the oldest pending update is dropped.
type ChannelSink struct {
	mu   sync.Mutex
	ch   chan Update
	last *Update
}

// NewChannelSink returns a sink whose channel buffers size updates.
func NewChannelSink(size int) *ChannelSink {
	if size < 1 {
		size = 1
	}
	return &ChannelSink{ch: make(chan Update, size)}
}

// Updates is the receive side.
func (c *ChannelSink) Updates() <-chan Update { return c.ch }

func (c *ChannelSink) Write(u Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &u
	for {
		select {
		case c.ch <- u:
			return nil
		default:
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

func (c *ChannelSink) Read() (Update, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Update{}, false, nil
	}
	return *c.last, true, nil
}

func (c *ChannelSink) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
	return nil
}
