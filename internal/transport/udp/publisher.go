// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	applog "dspctl/internal/log"
)

var pubLog = applog.Named("status")

// EngineStatus is a point-in-time view of the remote engine.
type EngineStatus struct {
	PID         int32
	SampleRate  int32
	CommitCount int32
	Hashes      []int32 // readback hashes in commit slot order
}

// StatusSource is polled once per interval.
type StatusSource interface {
	EngineStatus(ctx context.Context) (EngineStatus, error)
}

// PacketSink receives encoded datagrams. *Sender implements it.
type PacketSink interface {
	Send(data []byte) error
}

// Publisher periodically polls a StatusSource and sends the result as a
// datagram.
type Publisher struct {
	sink     PacketSink
	source   StatusSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan

	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to one second.
func NewPublisher(interval time.Duration, sink PacketSink, source StatusSource) (*Publisher, error) {
	if sink == nil {
		return nil, fmt.Errorf("status publisher: sink cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("status publisher: source cannot be nil")
	}
	if interval <= 0 {
		interval = time.Second
		pubLog.Warnf("invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{
		sink:         sink,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		pubLog.Warnf("start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		pubLog.Debugf("publisher started (interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), p.interval)
				p.publish(ctx)
				cancel()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	pubLog.Debugf("publisher stopped")
	return nil
}

/*
Status Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| PID               | int32          | 4            | Engine process id       |
| Sample Rate       | int32          | 4            | Hz                      |
| Commit Count      | int32          | 4            | Parameter commits       |
| Hash Count        | uint16         | 2            | Number of hashes (N)    |
| Hashes            | []int32        | N * 4        | Buffer readback hashes  |
+-----------------------------------------------------------------------------+
*/

// publish polls the source once and sends the packet.
func (p *Publisher) publish(ctx context.Context) {
	st, err := p.source.EngineStatus(ctx)
	if err != nil {
		pubLog.Debugf("skipping packet: %v", err)
		return
	}
	p.sequenceNum++
	packet, err := encodePacket(p.packetBuffer, p.sequenceNum, time.Now(), st)
	if err != nil {
		pubLog.Errorf("error packing status: %v", err)
		return
	}
	if err := p.sink.Send(packet); err == nil {
		pubLog.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	}
}

func encodePacket(buf *bytes.Buffer, seq uint32, ts time.Time, st EngineStatus) ([]byte, error) {
	if len(st.Hashes) > math.MaxUint16 {
		return nil, fmt.Errorf("too many hashes: %d", len(st.Hashes))
	}
	buf.Reset()
	fields := []any{
		seq,
		ts.UnixNano(),
		st.PID,
		st.SampleRate,
		st.CommitCount,
		uint16(len(st.Hashes)),
		st.Hashes,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
